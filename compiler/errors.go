package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Lex and parse errors
// ---------------------------------------------------------------------------

// ErrorKind enumerates every error the front end can produce.
type ErrorKind int

const (
	// Lexer errors
	ErrInvalidNumber ErrorKind = iota
	ErrUnexpectedEof
	ErrInvalidEscapeChar
	ErrInvalidChar

	// Parser errors
	ErrExpectedEol
	ErrInvalidExpression
	ErrInvalidTokenKind
	ErrInvalidNodeKind
	ErrInvalidAssignee
	ErrInvalidFunctionParameter
	ErrInvalidRange
)

// Error is a lex or parse failure with the source range it covers.
// Only the payload fields relevant to Kind are set.
type Error struct {
	Kind  ErrorKind
	Range Range

	Text          string   // ErrInvalidNumber: the raw text that failed to parse
	Char          rune     // ErrInvalidEscapeChar, ErrInvalidChar
	Token         Token    // ErrInvalidExpression, ErrExpectedEol
	ExpectedToken TokenKind // ErrInvalidTokenKind
	GotToken      TokenKind // ErrInvalidTokenKind
	ExpectedNode  NodeKind  // ErrInvalidNodeKind
	GotNode       NodeKind  // ErrInvalidNodeKind
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrInvalidNumber:
		return fmt.Sprintf("invalid number: %s", e.Text)
	case ErrUnexpectedEof:
		return "unexpected end of file"
	case ErrInvalidEscapeChar:
		return fmt.Sprintf("invalid escape char '%c'", e.Char)
	case ErrInvalidChar:
		return fmt.Sprintf("invalid char '%c'", e.Char)
	case ErrExpectedEol:
		return fmt.Sprintf("expected end of line, got %s", e.Token)
	case ErrInvalidExpression:
		return fmt.Sprintf("invalid expression: %s", e.Token)
	case ErrInvalidTokenKind:
		return fmt.Sprintf("invalid token: expected %s, got %s", e.ExpectedToken, e.GotToken)
	case ErrInvalidNodeKind:
		return fmt.Sprintf("invalid node: expected %s, got %s", e.ExpectedNode, e.GotNode)
	case ErrInvalidAssignee:
		return "invalid assignment target"
	case ErrInvalidFunctionParameter:
		return "function parameters must be identifiers"
	case ErrInvalidRange:
		return "for loop header must have exactly three parts"
	}
	return fmt.Sprintf("unknown error (%d)", int(e.Kind))
}
