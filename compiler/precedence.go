package compiler

// ---------------------------------------------------------------------------
// Operator precedence
// ---------------------------------------------------------------------------

type precedence int

const (
	precLowest precedence = iota
	precAssign
	precOr
	precAnd
	precEquals
	precLessGreater
	precSum
	precProduct
	precPrefix
	precCallIndex
)

// tokenPrecedence is the precedence of the infix production the token kind
// starts, or precLowest if it starts none.
func tokenPrecedence(kind TokenKind) precedence {
	switch kind {
	case TokenAssign:
		return precAssign
	case TokenOr:
		return precOr
	case TokenAnd:
		return precAnd
	case TokenEq, TokenNeq:
		return precEquals
	case TokenLe, TokenLeq, TokenGe, TokenGeq:
		return precLessGreater
	case TokenPlus, TokenMinus:
		return precSum
	case TokenMult, TokenDiv, TokenModulo:
		return precProduct
	case TokenLBracket, TokenDot, TokenLSquare:
		return precCallIndex
	}
	return precLowest
}
