package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Parser
// ---------------------------------------------------------------------------

// Parse parses source text into a Program. The returned error is always a
// *Error carrying the source range of the failure.
func Parse(input string) (*Program, error) {
	p := &parser{lexer: NewLexer(input)}
	program, err := p.parseProgram()
	if err != nil {
		return nil, err
	}
	return program, nil
}

// parser is a recursive descent parser with a single raw token of
// lookahead. Comments are collected on the side as they are skipped.
type parser struct {
	lexer *Lexer

	buf    *Token // raw lookahead buffer
	bufErr *Error

	comments []Comment
	end      Position // end of the last consumed token
}

// fill loads the lookahead buffer if it is empty.
func (p *parser) fill() {
	if p.buf != nil || p.bufErr != nil {
		return
	}
	tok, err := p.lexer.Next()
	if err != nil {
		p.bufErr = err
		return
	}
	p.buf = &tok
}

// rawNext returns the next token, including Eol, Comment and the TokenEof
// sentinel.
func (p *parser) rawNext() (Token, *Error) {
	p.fill()
	if p.bufErr != nil {
		err := p.bufErr
		p.bufErr = nil
		return Token{}, err
	}

	tok := *p.buf
	p.buf = nil
	if tok.Kind != TokenEof {
		p.end = tok.Range.End
	}
	return tok, nil
}

// next returns the next meaningful token. Comments are recorded and
// skipped; end of input is an UnexpectedEof error.
func (p *parser) next() (Token, *Error) {
	for {
		tok, err := p.rawNext()
		if err != nil {
			return Token{}, err
		}

		switch tok.Kind {
		case TokenEof:
			return Token{}, p.eofError()
		case TokenComment:
			p.recordComment(tok)
		default:
			return tok, nil
		}
	}
}

// peekIs reports whether the next meaningful token satisfies check without
// consuming it. Comments are recorded and skipped. At end of input eof is
// reported instead.
func (p *parser) peekIs(check func(Token) bool) (matched, eof bool, err *Error) {
	for {
		p.fill()
		if p.bufErr != nil {
			err := p.bufErr
			p.bufErr = nil
			return false, false, err
		}

		switch p.buf.Kind {
		case TokenEof:
			return false, true, nil
		case TokenComment:
			p.recordComment(*p.buf)
			p.buf = nil
		default:
			return check(*p.buf), false, nil
		}
	}
}

// skipEol consumes Eol tokens while they last.
func (p *parser) skipEol() *Error {
	for {
		matched, eof, err := p.peekIs(isEol)
		if err != nil {
			return err
		}
		if eof || !matched {
			return nil
		}
		if _, err := p.next(); err != nil {
			return err
		}
	}
}

func (p *parser) recordComment(tok Token) {
	p.comments = append(p.comments, Comment{Text: tok.Literal, Range: tok.Range})
}

func (p *parser) eofError() *Error {
	return &Error{
		Kind: ErrUnexpectedEof,
		Range: Range{
			Start: p.end,
			End:   Position{Line: p.end.Line + 1, Character: 0},
		},
	}
}

func isEol(tok Token) bool {
	return tok.Kind == TokenEol
}

// ---------------------------------------------------------------------------
// Program structure
// ---------------------------------------------------------------------------

// parseProgram parses statements one per line. A standalone comment line is
// kept as a statement so editor tooling can see it in document order.
func (p *parser) parseProgram() (*Program, *Error) {
	statements := []Node{}

	for {
		tok, err := p.rawNext()
		if err != nil {
			return nil, err
		}

		switch tok.Kind {
		case TokenEof:
			return &Program{Statements: statements, Comments: p.comments}, nil
		case TokenEol:
			continue
		case TokenComment:
			p.recordComment(tok)
			statements = append(statements, Node{
				Value: Comment{Text: tok.Literal, Range: tok.Range},
				Range: tok.Range,
			})
			continue
		}

		stmt, err := p.parseNode(tok, precLowest)
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmt)

		// After a statement the line must end.
		matched, eof, err := p.peekIs(isEol)
		if err != nil {
			return nil, err
		}
		if eof {
			return &Program{Statements: statements, Comments: p.comments}, nil
		}
		if !matched {
			tok, err := p.next()
			if err != nil {
				return nil, err
			}
			return nil, &Error{Kind: ErrExpectedEol, Token: tok, Range: tok.Range}
		}
	}
}

// ---------------------------------------------------------------------------
// Pratt core
// ---------------------------------------------------------------------------

// parseNode parses one node with recursive descent. The caller provides the
// first token, which keeps end of input errors at the caller where the
// surrounding range is known.
func (p *parser) parseNode(startToken Token, prec precedence) (Node, *Error) {
	left, err := p.parsePrefix(startToken)
	if err != nil {
		return Node{}, err
	}

	for {
		stop, eof, err := p.peekIs(func(t Token) bool {
			return t.Kind == TokenEol || prec >= tokenPrecedence(t.Kind) || !t.Kind.IsInfix()
		})
		if err != nil {
			return Node{}, err
		}
		if eof || stop {
			break
		}

		tok, err := p.next()
		if err != nil {
			return Node{}, err
		}
		left, err = p.parseInfix(tok, left)
		if err != nil {
			return Node{}, err
		}
	}

	return left, nil
}

func (p *parser) parsePrefix(startToken Token) (Node, *Error) {
	rng := startToken.Range

	var value NodeValue
	end := rng.End

	switch startToken.Kind {
	case TokenNull:
		value = Null{}
	case TokenIdent:
		value = Identifier(startToken.Literal)
	case TokenInt:
		value = IntegerLiteral(startToken.Int)
	case TokenFloat:
		value = FloatLiteral(startToken.Float)
	case TokenChar:
		value = CharLiteral(startToken.Char)
	case TokenTrue:
		value = BoolLiteral(true)
	case TokenFalse:
		value = BoolLiteral(false)
	case TokenString:
		value = StringLiteral(startToken.Literal)
	case TokenBreak:
		value = Break{}
	case TokenContinue:
		value = Continue{}

	case TokenBang, TokenMinus:
		v, e, err := p.parsePrefixOperator(startToken)
		if err != nil {
			return Node{}, err
		}
		value, end = v, e
	case TokenLBracket:
		v, e, err := p.parseGrouped()
		if err != nil {
			return Node{}, err
		}
		value, end = v, e
	case TokenLSquare:
		v, e, err := p.parseArrayLiteral()
		if err != nil {
			return Node{}, err
		}
		value, end = v, e
	case TokenLCurly:
		v, e, err := p.parseHashLiteral()
		if err != nil {
			return Node{}, err
		}
		value, end = v, e
	case TokenIf:
		ifNode, e, err := p.parseIf()
		if err != nil {
			return Node{}, err
		}
		value, end = ifNode, e
	case TokenWhile:
		v, e, err := p.parseWhile()
		if err != nil {
			return Node{}, err
		}
		value, end = v, e
	case TokenFor:
		v, e, err := p.parseFor()
		if err != nil {
			return Node{}, err
		}
		value, end = v, e
	case TokenReturn:
		tok, err := p.next()
		if err != nil {
			return Node{}, err
		}
		node, err := p.parseNode(tok, precLowest)
		if err != nil {
			return Node{}, err
		}
		if err := validateNodeKind(node, NodeExpression); err != nil {
			return Node{}, err
		}
		value, end = Return{Value: &node}, node.Range.End
	case TokenFn:
		v, e, err := p.parseFunctionLiteral()
		if err != nil {
			return Node{}, err
		}
		value, end = v, e
	case TokenUse:
		tok, err := p.next()
		if err != nil {
			return Node{}, err
		}
		if tok.Kind != TokenString {
			return Node{}, &Error{
				Kind:          ErrInvalidTokenKind,
				ExpectedToken: TokenString,
				GotToken:      tok.Kind,
				Range:         tok.Range,
			}
		}
		value, end = Use(tok.Literal), tok.Range.End

	default:
		return Node{}, &Error{Kind: ErrInvalidExpression, Token: startToken, Range: rng}
	}

	return Node{Value: value, Range: Range{Start: rng.Start, End: end}}, nil
}

func (p *parser) parseInfix(startToken Token, left Node) (Node, *Error) {
	start := left.Range.Start

	var value NodeValue
	var end Position

	switch startToken.Kind {
	case TokenLe, TokenLeq, TokenGe, TokenGeq, TokenEq, TokenNeq,
		TokenPlus, TokenMinus, TokenMult, TokenDiv, TokenModulo,
		TokenAnd, TokenOr:
		v, e, err := p.parseInfixOperation(startToken, left)
		if err != nil {
			return Node{}, err
		}
		value, end = v, e
	case TokenLSquare:
		v, e, err := p.parseIndex(left)
		if err != nil {
			return Node{}, err
		}
		value, end = v, e
	case TokenDot:
		v, e, err := p.parseDotIndex(left)
		if err != nil {
			return Node{}, err
		}
		value, end = v, e
	case TokenLBracket:
		v, e, err := p.parseFunctionCall(left)
		if err != nil {
			return Node{}, err
		}
		value, end = v, e
	case TokenAssign:
		v, e, err := p.parseAssign(left)
		if err != nil {
			return Node{}, err
		}
		value, end = v, e

	default:
		return left, nil
	}

	return Node{Value: value, Range: Range{Start: start, End: end}}, nil
}

// ---------------------------------------------------------------------------
// Productions
// ---------------------------------------------------------------------------

func (p *parser) parsePrefixOperator(startToken Token) (NodeValue, Position, *Error) {
	rightToken, err := p.next()
	if err != nil {
		return nil, Position{}, err
	}
	right, err := p.parseNode(rightToken, precPrefix)
	if err != nil {
		return nil, Position{}, err
	}
	if err := validateNodeKind(right, NodeExpression); err != nil {
		return nil, Position{}, err
	}

	return PrefixOperator{
		Operator: tokenToPrefixOperator(startToken.Kind),
		Right:    &right,
	}, right.Range.End, nil
}

func (p *parser) parseInfixOperation(startToken Token, left Node) (NodeValue, Position, *Error) {
	prec := tokenPrecedence(startToken.Kind)
	operator := tokenToInfixOperator(startToken.Kind)

	rightToken, err := p.next()
	if err != nil {
		return nil, Position{}, err
	}
	right, err := p.parseNode(rightToken, prec)
	if err != nil {
		return nil, Position{}, err
	}

	if err := validateNodeKind(left, NodeExpression); err != nil {
		return nil, Position{}, err
	}
	if err := validateNodeKind(right, NodeExpression); err != nil {
		return nil, Position{}, err
	}

	return InfixOperator{
		Operator: operator,
		Left:     &left,
		Right:    &right,
	}, right.Range.End, nil
}

// parseGrouped parses `(expr)`. The inner node keeps its value but its
// range grows to include the parentheses.
func (p *parser) parseGrouped() (NodeValue, Position, *Error) {
	tok, err := p.next()
	if err != nil {
		return nil, Position{}, err
	}
	node, err := p.parseNode(tok, precLowest)
	if err != nil {
		return nil, Position{}, err
	}
	if err := validateNodeKind(node, NodeExpression); err != nil {
		return nil, Position{}, err
	}

	closing, err := p.next()
	if err != nil {
		return nil, Position{}, err
	}
	if err := validateTokenKind(closing, TokenRBracket); err != nil {
		return nil, Position{}, err
	}

	return node.Value, closing.Range.End, nil
}

func (p *parser) parseArrayLiteral() (NodeValue, Position, *Error) {
	items, end, err := parseMultiple(p, TokenRSquare, TokenComma,
		func(p *parser, tok Token) (Node, *Error) {
			return p.parseNode(tok, precLowest)
		})
	if err != nil {
		return nil, Position{}, err
	}

	if err := validateArrayLiteral(items); err != nil {
		return nil, Position{}, err
	}
	return ArrayLiteral(items), end, nil
}

func (p *parser) parseHashLiteral() (NodeValue, Position, *Error) {
	pairs, end, err := parseMultiple(p, TokenRCurly, TokenComma,
		func(p *parser, tok Token) (HashPair, *Error) {
			key, err := p.parseNode(tok, precLowest)
			if err != nil {
				return HashPair{}, err
			}

			colon, err := p.next()
			if err != nil {
				return HashPair{}, err
			}
			if err := validateTokenKind(colon, TokenColon); err != nil {
				return HashPair{}, err
			}

			valueToken, err := p.next()
			if err != nil {
				return HashPair{}, err
			}
			value, err := p.parseNode(valueToken, precLowest)
			if err != nil {
				return HashPair{}, err
			}

			return HashPair{Key: key, Value: value}, nil
		})
	if err != nil {
		return nil, Position{}, err
	}

	if err := validateHashLiteral(pairs); err != nil {
		return nil, Position{}, err
	}
	return HashLiteral(pairs), end, nil
}

func (p *parser) parseAssign(left Node) (NodeValue, Position, *Error) {
	tok, err := p.next()
	if err != nil {
		return nil, Position{}, err
	}

	right, err := p.parseNode(tok, precLowest)
	if err != nil {
		return nil, Position{}, err
	}
	if err := validateNodeKind(right, NodeExpression); err != nil {
		return nil, Position{}, err
	}
	if err := validateAssignee(left); err != nil {
		return nil, Position{}, err
	}

	// A function literal assigned to a plain identifier takes its name,
	// which is what allows recursive calls.
	if ident, ok := left.Value.(Identifier); ok {
		if fn, ok := right.Value.(FunctionLiteral); ok {
			fn.Name = string(ident)
			right.Value = fn
		}
	}

	return Assign{Ident: &left, Value: &right}, right.Range.End, nil
}

// parseIndex parses `left[index]`.
func (p *parser) parseIndex(left Node) (NodeValue, Position, *Error) {
	tok, err := p.next()
	if err != nil {
		return nil, Position{}, err
	}
	index, err := p.parseNode(tok, precLowest)
	if err != nil {
		return nil, Position{}, err
	}

	closing, err := p.next()
	if err != nil {
		return nil, Position{}, err
	}
	if err := validateTokenKind(closing, TokenRSquare); err != nil {
		return nil, Position{}, err
	}

	if err := validateNodeKind(left, NodeExpression); err != nil {
		return nil, Position{}, err
	}
	if err := validateNodeKind(index, NodeExpression); err != nil {
		return nil, Position{}, err
	}

	return Index{Left: &left, Index: &index}, closing.Range.End, nil
}

// parseDotIndex parses `left.name` as indexing with a string key.
func (p *parser) parseDotIndex(left Node) (NodeValue, Position, *Error) {
	index, err := p.next()
	if err != nil {
		return nil, Position{}, err
	}
	if index.Kind != TokenIdent {
		return nil, Position{}, &Error{
			Kind:          ErrInvalidTokenKind,
			ExpectedToken: TokenIdent,
			GotToken:      index.Kind,
			Range:         index.Range,
		}
	}

	if err := validateNodeKind(left, NodeExpression); err != nil {
		return nil, Position{}, err
	}

	return Index{
		Left: &left,
		Index: &Node{
			Value: StringLiteral(index.Literal),
			Range: index.Range,
		},
	}, index.Range.End, nil
}

func (p *parser) parseIf() (If, Position, *Error) {
	tok, err := p.next()
	if err != nil {
		return If{}, Position{}, err
	}
	if err := validateTokenKind(tok, TokenLBracket); err != nil {
		return If{}, Position{}, err
	}

	condToken, err := p.next()
	if err != nil {
		return If{}, Position{}, err
	}
	condition, err := p.parseNode(condToken, precLowest)
	if err != nil {
		return If{}, Position{}, err
	}
	if err := validateNodeKind(condition, NodeExpression); err != nil {
		return If{}, Position{}, err
	}

	tok, err = p.next()
	if err != nil {
		return If{}, Position{}, err
	}
	if err := validateTokenKind(tok, TokenRBracket); err != nil {
		return If{}, Position{}, err
	}

	blockToken, err := p.next()
	if err != nil {
		return If{}, Position{}, err
	}
	consequence, consEnd, err := p.parseBlock(blockToken)
	if err != nil {
		return If{}, Position{}, err
	}

	ifNode := If{Condition: &condition, Consequence: consequence}

	// An else branch must start on the same line as the closing brace.
	matched, eof, err := p.peekIs(isEol)
	if err != nil {
		return If{}, Position{}, err
	}
	if eof || matched {
		return ifNode, consEnd, nil
	}

	elseToken, err := p.next()
	if err != nil {
		return If{}, Position{}, err
	}
	if err := validateTokenKind(elseToken, TokenElse); err != nil {
		return If{}, Position{}, err
	}

	tok, err = p.next()
	if err != nil {
		return If{}, Position{}, err
	}
	if tok.Kind == TokenIf {
		// `else if` nests as an alternative block with a single node.
		alternative, altEnd, err := p.parseIf()
		if err != nil {
			return If{}, Position{}, err
		}

		rng := Range{Start: tok.Range.Start, End: altEnd}
		ifNode.Alternative = &Block{
			Statements: []Node{{Value: alternative, Range: rng}},
			Range:      rng,
		}
		return ifNode, altEnd, nil
	}

	alternative, altEnd, err := p.parseBlock(tok)
	if err != nil {
		return If{}, Position{}, err
	}
	ifNode.Alternative = &alternative
	return ifNode, altEnd, nil
}

func (p *parser) parseWhile() (NodeValue, Position, *Error) {
	tok, err := p.next()
	if err != nil {
		return nil, Position{}, err
	}
	if err := validateTokenKind(tok, TokenLBracket); err != nil {
		return nil, Position{}, err
	}

	condToken, err := p.next()
	if err != nil {
		return nil, Position{}, err
	}
	condition, err := p.parseNode(condToken, precLowest)
	if err != nil {
		return nil, Position{}, err
	}
	if err := validateNodeKind(condition, NodeExpression); err != nil {
		return nil, Position{}, err
	}

	tok, err = p.next()
	if err != nil {
		return nil, Position{}, err
	}
	if err := validateTokenKind(tok, TokenRBracket); err != nil {
		return nil, Position{}, err
	}

	blockToken, err := p.next()
	if err != nil {
		return nil, Position{}, err
	}
	body, end, err := p.parseBlock(blockToken)
	if err != nil {
		return nil, Position{}, err
	}

	return While{Condition: &condition, Body: body}, end, nil
}

func (p *parser) parseFor() (NodeValue, Position, *Error) {
	lparen, err := p.next()
	if err != nil {
		return nil, Position{}, err
	}
	if err := validateTokenKind(lparen, TokenLBracket); err != nil {
		return nil, Position{}, err
	}

	header, headerEnd, err := parseMultiple(p, TokenRBracket, TokenSemicolon,
		func(p *parser, tok Token) (Node, *Error) {
			return p.parseNode(tok, precLowest)
		})
	if err != nil {
		return nil, Position{}, err
	}

	if len(header) != 3 {
		return nil, Position{}, &Error{
			Kind:  ErrInvalidRange,
			Range: Range{Start: lparen.Range.Start, End: headerEnd},
		}
	}

	initial, condition, after := header[0], header[1], header[2]
	if err := validateNodeKind(condition, NodeExpression); err != nil {
		return nil, Position{}, err
	}

	blockToken, err := p.next()
	if err != nil {
		return nil, Position{}, err
	}
	body, end, err := p.parseBlock(blockToken)
	if err != nil {
		return nil, Position{}, err
	}

	return For{
		Initial:   &initial,
		Condition: &condition,
		After:     &after,
		Body:      body,
	}, end, nil
}

func (p *parser) parseFunctionLiteral() (NodeValue, Position, *Error) {
	tok, err := p.next()
	if err != nil {
		return nil, Position{}, err
	}
	if err := validateTokenKind(tok, TokenLBracket); err != nil {
		return nil, Position{}, err
	}

	params, _, err := parseMultiple(p, TokenRBracket, TokenComma,
		func(_ *parser, tok Token) (FunctionParameter, *Error) {
			if tok.Kind != TokenIdent {
				return FunctionParameter{}, &Error{
					Kind:  ErrInvalidFunctionParameter,
					Range: tok.Range,
				}
			}
			return FunctionParameter{Name: tok.Literal, Range: tok.Range}, nil
		})
	if err != nil {
		return nil, Position{}, err
	}

	blockToken, err := p.next()
	if err != nil {
		return nil, Position{}, err
	}
	body, end, err := p.parseBlock(blockToken)
	if err != nil {
		return nil, Position{}, err
	}

	return FunctionLiteral{Parameters: params, Body: body}, end, nil
}

func (p *parser) parseFunctionCall(left Node) (NodeValue, Position, *Error) {
	args, end, err := parseMultiple(p, TokenRBracket, TokenComma,
		func(p *parser, tok Token) (Node, *Error) {
			return p.parseNode(tok, precLowest)
		})
	if err != nil {
		return nil, Position{}, err
	}

	for _, arg := range args {
		if err := validateNodeKind(arg, NodeExpression); err != nil {
			return nil, Position{}, err
		}
	}

	return FunctionCall{Function: &left, Arguments: args}, end, nil
}

// parseBlock parses `{ ... }` with one statement per line. The caller
// provides the already read `{` token.
func (p *parser) parseBlock(startToken Token) (Block, Position, *Error) {
	if err := validateTokenKind(startToken, TokenLCurly); err != nil {
		return Block{}, Position{}, err
	}

	nodes, end, err := parseMultiple(p, TokenRCurly, TokenEol,
		func(p *parser, tok Token) (Node, *Error) {
			return p.parseNode(tok, precLowest)
		})
	if err != nil {
		return Block{}, Position{}, err
	}

	return Block{
		Statements: nodes,
		Range:      Range{Start: startToken.Range.Start, End: end},
	}, end, nil
}

// parseMultiple parses items until endKind, separated by separator. Blank
// lines between items are skipped, and a trailing separator is allowed.
// It is used for arrays, hashes, call arguments, parameter lists, for loop
// headers and blocks.
func parseMultiple[T any](
	p *parser,
	endKind, separator TokenKind,
	parseItem func(*parser, Token) (T, *Error),
) ([]T, Position, *Error) {
	var items []T

	for {
		if err := p.skipEol(); err != nil {
			return nil, Position{}, err
		}

		tok, err := p.next()
		if err != nil {
			return nil, Position{}, err
		}
		if tok.Kind == endKind {
			return items, tok.Range.End, nil
		}

		item, err := parseItem(p, tok)
		if err != nil {
			return nil, Position{}, err
		}
		items = append(items, item)

		tok, err = p.next()
		if err != nil {
			return nil, Position{}, err
		}
		if tok.Kind == endKind {
			return items, tok.Range.End, nil
		}
		if tok.Kind != separator {
			return nil, Position{}, &Error{
				Kind:          ErrInvalidTokenKind,
				ExpectedToken: endKind,
				GotToken:      tok.Kind,
				Range:         tok.Range,
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Token to operator mapping
// ---------------------------------------------------------------------------

func tokenToInfixOperator(kind TokenKind) InfixOperatorKind {
	switch kind {
	case TokenLe:
		return InfixLe
	case TokenLeq:
		return InfixLeq
	case TokenGe:
		return InfixGe
	case TokenGeq:
		return InfixGeq
	case TokenEq:
		return InfixEq
	case TokenNeq:
		return InfixNeq
	case TokenPlus:
		return InfixAdd
	case TokenMinus:
		return InfixSubtract
	case TokenMult:
		return InfixMultiply
	case TokenDiv:
		return InfixDivide
	case TokenModulo:
		return InfixModulo
	case TokenAnd:
		return InfixAnd
	case TokenOr:
		return InfixOr
	}
	panic(fmt.Sprintf("token %s is not an infix operator", kind))
}

func tokenToPrefixOperator(kind TokenKind) PrefixOperatorKind {
	switch kind {
	case TokenBang:
		return PrefixNot
	case TokenMinus:
		return PrefixNegative
	}
	panic(fmt.Sprintf("token %s is not a prefix operator", kind))
}
