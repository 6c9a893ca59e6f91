package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token kinds
// ---------------------------------------------------------------------------

// TokenKind identifies the lexical class of a token.
type TokenKind int

const (
	// Literals and names
	TokenIdent TokenKind = iota
	TokenInt             // 42
	TokenFloat           // 4.2
	TokenString          // "foo"
	TokenChar            // 'a'
	TokenTrue
	TokenFalse

	// Delimiters
	TokenLSquare  // [
	TokenRSquare  // ]
	TokenLBracket // (
	TokenRBracket // )
	TokenLCurly   // {
	TokenRCurly   // }

	// Operators
	TokenLe     // <
	TokenLeq    // <=
	TokenGe     // >
	TokenGeq    // >=
	TokenEq     // ==
	TokenNeq    // !=
	TokenPlus   // +
	TokenMinus  // -
	TokenMult   // *
	TokenDiv    // /
	TokenModulo // %
	TokenAnd    // &
	TokenOr     // |
	TokenBang   // !
	TokenAssign // =

	// Punctuation
	TokenColon     // :
	TokenSemicolon // ;
	TokenComma     // ,
	TokenDot       // .

	// Keywords
	TokenIf
	TokenElse
	TokenWhile
	TokenFor
	TokenBreak
	TokenContinue
	TokenReturn
	TokenFn
	TokenUse
	TokenNull

	// Statement terminator: newlines are significant
	TokenEol

	// Line comment, text trimmed
	TokenComment

	// End of input
	TokenEof
)

var tokenNames = map[TokenKind]string{
	TokenIdent:     "IDENT",
	TokenInt:       "INT",
	TokenFloat:     "FLOAT",
	TokenString:    "STRING",
	TokenChar:      "CHAR",
	TokenTrue:      "true",
	TokenFalse:     "false",
	TokenLSquare:   "[",
	TokenRSquare:   "]",
	TokenLBracket:  "(",
	TokenRBracket:  ")",
	TokenLCurly:    "{",
	TokenRCurly:    "}",
	TokenLe:        "<",
	TokenLeq:       "<=",
	TokenGe:        ">",
	TokenGeq:       ">=",
	TokenEq:        "==",
	TokenNeq:       "!=",
	TokenPlus:      "+",
	TokenMinus:     "-",
	TokenMult:      "*",
	TokenDiv:       "/",
	TokenModulo:    "%",
	TokenAnd:       "&",
	TokenOr:        "|",
	TokenBang:      "!",
	TokenAssign:    "=",
	TokenColon:     ":",
	TokenSemicolon: ";",
	TokenComma:     ",",
	TokenDot:       ".",
	TokenIf:        "if",
	TokenElse:      "else",
	TokenWhile:     "while",
	TokenFor:       "for",
	TokenBreak:     "break",
	TokenContinue:  "continue",
	TokenReturn:    "return",
	TokenFn:        "fn",
	TokenUse:       "use",
	TokenNull:      "null",
	TokenEol:       "EOL",
	TokenComment:   "COMMENT",
}

func (k TokenKind) String() string {
	if name, ok := tokenNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", int(k))
}

// Token is a lexical token with its source range. Literal holds the
// processed text (unescaped strings, trimmed comments). Numeric and char
// payloads are parsed by the lexer.
type Token struct {
	Kind    TokenKind
	Literal string
	Int     int64
	Float   float64
	Char    byte
	Range   Range
}

func (t Token) String() string {
	switch t.Kind {
	case TokenIdent, TokenInt, TokenFloat, TokenString, TokenChar, TokenComment:
		return fmt.Sprintf("%s(%q)", t.Kind, t.Literal)
	}
	return t.Kind.String()
}

// Reserved words mapped to their token kinds.
var reservedWords = map[string]TokenKind{
	"true":     TokenTrue,
	"false":    TokenFalse,
	"null":     TokenNull,
	"if":       TokenIf,
	"else":     TokenElse,
	"while":    TokenWhile,
	"for":      TokenFor,
	"break":    TokenBreak,
	"continue": TokenContinue,
	"return":   TokenReturn,
	"fn":       TokenFn,
	"use":      TokenUse,
}

// IsInfix reports whether the token kind can start an infix production:
// binary operators, assignment, call, index and member access.
func (k TokenKind) IsInfix() bool {
	switch k {
	case TokenLSquare, TokenLBracket,
		TokenLe, TokenLeq, TokenGe, TokenGeq, TokenEq, TokenNeq,
		TokenPlus, TokenMinus, TokenMult, TokenDiv, TokenModulo,
		TokenAnd, TokenOr, TokenAssign, TokenDot:
		return true
	}
	return false
}
