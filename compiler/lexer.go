package compiler

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer
// ---------------------------------------------------------------------------

// Lexer turns source text into tokens. Newlines are significant and emitted
// as Eol tokens. Column positions count UTF-16 code units so token ranges
// can be handed to editor tooling unchanged.
type Lexer struct {
	input string
	pos   int // byte offset of the next rune

	position Position
}

// NewLexer creates a lexer over input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Next returns the next token. At the end of input it returns a TokenEof
// token with an empty range, forever.
func (l *Lexer) Next() (Token, *Error) {
	l.skipWhitespace()

	start := l.position
	startByte := l.pos
	ch, ok := l.advance()
	if !ok {
		return Token{Kind: TokenEof, Range: Range{Start: start, End: start}}, nil
	}

	var tok Token

	switch {
	case ch == '[':
		tok.Kind = TokenLSquare
	case ch == ']':
		tok.Kind = TokenRSquare
	case ch == '(':
		tok.Kind = TokenLBracket
	case ch == ')':
		tok.Kind = TokenRBracket
	case ch == '{':
		tok.Kind = TokenLCurly
	case ch == '}':
		tok.Kind = TokenRCurly
	case ch == '+':
		tok.Kind = TokenPlus
	case ch == '-':
		tok.Kind = TokenMinus
	case ch == '*':
		tok.Kind = TokenMult
	case ch == '%':
		tok.Kind = TokenModulo
	case ch == '&':
		tok.Kind = TokenAnd
	case ch == '|':
		tok.Kind = TokenOr
	case ch == ':':
		tok.Kind = TokenColon
	case ch == ';':
		tok.Kind = TokenSemicolon
	case ch == ',':
		tok.Kind = TokenComma
	case ch == '.':
		tok.Kind = TokenDot
	case ch == '\n':
		l.position.Line++
		l.position.Character = 0
		tok.Kind = TokenEol
	case ch == '<':
		tok.Kind = l.peekParse('=', TokenLeq, TokenLe)
	case ch == '>':
		tok.Kind = l.peekParse('=', TokenGeq, TokenGe)
	case ch == '=':
		tok.Kind = l.peekParse('=', TokenEq, TokenAssign)
	case ch == '!':
		tok.Kind = l.peekParse('=', TokenNeq, TokenBang)
	case ch == '/':
		if l.peek() == '/' {
			l.advance()
			tok.Kind = TokenComment
			tok.Literal = l.readComment()
		} else {
			tok.Kind = TokenDiv
		}
	case ch == '"':
		str, err := l.readString(start)
		if err != nil {
			return Token{}, err
		}
		tok.Kind = TokenString
		tok.Literal = str
	case ch == '\'':
		c, err := l.readChar(start)
		if err != nil {
			return Token{}, err
		}
		tok.Kind = TokenChar
		tok.Char = c
		tok.Literal = string(rune(c))
	case isDigit(ch):
		var err *Error
		tok, err = l.readNumber(start, startByte)
		if err != nil {
			return Token{}, err
		}
	case unicode.IsLetter(ch):
		tok = l.readIdent(startByte)
	default:
		return Token{}, &Error{
			Kind:  ErrInvalidChar,
			Char:  ch,
			Range: Range{Start: start, End: l.position},
		}
	}

	tok.Range = Range{Start: start, End: l.position}
	return tok, nil
}

// skipWhitespace consumes whitespace except \n, which is a token.
func (l *Lexer) skipWhitespace() {
	for {
		ch := l.peek()
		if ch == 0 || ch == '\n' || !unicode.IsSpace(ch) {
			return
		}
		l.advance()
	}
}

// peek returns the next rune without consuming it, or 0 at end of input.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

// advance consumes the next rune and moves the position one column forward.
// Line bookkeeping for \n is done by the caller.
func (l *Lexer) advance() (rune, bool) {
	if l.pos >= len(l.input) {
		return 0, false
	}
	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size
	l.position.Character += utf16Len(r)
	return r, true
}

// peekParse consumes the next rune and returns matched if it equals
// expected, otherwise leaves it in place and returns fallback.
func (l *Lexer) peekParse(expected rune, matched, fallback TokenKind) TokenKind {
	if l.peek() == expected {
		l.advance()
		return matched
	}
	return fallback
}

// readComment consumes everything up to (not including) the next \n and
// returns the trimmed comment text. The leading `//` is already consumed.
func (l *Lexer) readComment() string {
	start := l.pos
	for l.pos < len(l.input) && l.peek() != '\n' {
		l.advance()
	}
	return strings.TrimSpace(l.input[start:l.pos])
}

// readNumber scans a number starting at the already consumed first digit.
func (l *Lexer) readNumber(start Position, startByte int) (Token, *Error) {
	for {
		ch := l.peek()
		if !isDigit(ch) && ch != '.' {
			break
		}
		l.advance()
	}

	text := l.input[startByte:l.pos]
	errRange := Range{Start: start, End: l.position}

	if strings.Contains(text, ".") {
		flt, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Token{}, &Error{Kind: ErrInvalidNumber, Text: text, Range: errRange}
		}
		return Token{Kind: TokenFloat, Literal: text, Float: flt}, nil
	}

	integer, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return Token{}, &Error{Kind: ErrInvalidNumber, Text: text, Range: errRange}
	}
	return Token{Kind: TokenInt, Literal: text, Int: integer}, nil
}

// readIdent scans an identifier or keyword starting at the already consumed
// first letter.
func (l *Lexer) readIdent(startByte int) Token {
	for {
		ch := l.peek()
		if !unicode.IsLetter(ch) && !isDigit(ch) && ch != '_' {
			break
		}
		l.advance()
	}

	ident := l.input[startByte:l.pos]
	if kind, ok := reservedWords[ident]; ok {
		return Token{Kind: kind, Literal: ident}
	}
	return Token{Kind: TokenIdent, Literal: ident}
}

// readString scans a string literal. The opening quote is already consumed;
// start is its position, so errors cover the whole unfinished literal.
func (l *Lexer) readString(start Position) (string, *Error) {
	var sb strings.Builder

	for {
		ch, ok := l.advance()
		if !ok {
			return "", &Error{
				Kind:  ErrUnexpectedEof,
				Range: Range{Start: start, End: l.position},
			}
		}

		if ch == '"' {
			return sb.String(), nil
		}

		if ch != '\\' {
			sb.WriteRune(ch)
			continue
		}

		escaped, err := l.readEscape(start, '"')
		if err != nil {
			return "", err
		}
		sb.WriteRune(escaped)
	}
}

// readChar scans a char literal. The opening quote is already consumed;
// start is its position. Chars are single bytes; a rune above 255 is invalid.
func (l *Lexer) readChar(start Position) (byte, *Error) {
	chStart := l.position
	ch, ok := l.advance()
	if !ok {
		return 0, &Error{
			Kind:  ErrUnexpectedEof,
			Range: Range{Start: start, End: l.position},
		}
	}

	if ch == '\\' {
		escaped, err := l.readEscape(start, '\'')
		if err != nil {
			return 0, err
		}
		ch = escaped
	} else if ch > 255 {
		return 0, &Error{
			Kind:  ErrInvalidChar,
			Char:  ch,
			Range: Range{Start: chStart, End: l.position},
		}
	}

	closeStart := l.position
	closing, ok := l.advance()
	if !ok {
		return 0, &Error{
			Kind:  ErrUnexpectedEof,
			Range: Range{Start: start, End: l.position},
		}
	}
	if closing != '\'' {
		return 0, &Error{
			Kind:  ErrInvalidChar,
			Char:  closing,
			Range: Range{Start: closeStart, End: l.position},
		}
	}

	return byte(ch), nil
}

// readEscape scans the rune after a backslash. start is the position of the
// enclosing literal's opening quote; quote is its quote style, which escapes
// itself.
func (l *Lexer) readEscape(start Position, quote rune) (rune, *Error) {
	escStart := l.position
	ch, ok := l.advance()
	if !ok {
		return 0, &Error{
			Kind:  ErrUnexpectedEof,
			Range: Range{Start: start, End: l.position},
		}
	}

	switch ch {
	case 'n':
		return '\n', nil
	case 't':
		return '\t', nil
	case '\\':
		return '\\', nil
	case quote:
		return quote, nil
	}

	return 0, &Error{
		Kind:  ErrInvalidEscapeChar,
		Char:  ch,
		Range: Range{Start: escStart, End: l.position},
	}
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

// utf16Len is the number of UTF-16 code units needed to encode r.
func utf16Len(r rune) int {
	if r > 0xFFFF {
		return 2
	}
	return 1
}
