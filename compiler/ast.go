package compiler

// ---------------------------------------------------------------------------
// AST
// ---------------------------------------------------------------------------

// Program is a parsed source file: top level statements in source order plus
// every comment encountered anywhere in the file. Comments are kept for
// editor tooling, which maps them to the definitions below them.
type Program struct {
	Statements []Node
	Comments   []Comment
}

// Node is a single AST node together with the source range it covers.
type Node struct {
	Value NodeValue
	Range Range
}

// NodeKind classifies node values into expressions and statements. The
// parser uses the classification to reject statements in expression
// positions, for example `1 + while (true) {}`.
type NodeKind int

const (
	NodeExpression NodeKind = iota
	NodeStatement
)

func (k NodeKind) String() string {
	switch k {
	case NodeExpression:
		return "expression"
	case NodeStatement:
		return "statement"
	}
	return "unknown"
}

// NodeValue is the value held by a Node. It is a closed union: exactly the
// types in this file implement it.
type NodeValue interface {
	Kind() NodeKind
	nodeValue()
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Identifier is a name reference.
type Identifier string

// IntegerLiteral is an integer literal.
type IntegerLiteral int64

// FloatLiteral is a floating point literal.
type FloatLiteral float64

// BoolLiteral is `true` or `false`.
type BoolLiteral bool

// StringLiteral is a string literal with escapes already processed.
type StringLiteral string

// CharLiteral is a single byte character literal such as 'a'.
type CharLiteral byte

// Null is the `null` literal.
type Null struct{}

// ArrayLiteral is `[a, b, c]`.
type ArrayLiteral []Node

// HashLiteral is `{key: value, ...}` with pairs in source order.
type HashLiteral []HashPair

// HashPair is a single key value entry of a hash literal.
type HashPair struct {
	Key   Node
	Value Node
}

// PrefixOperator is `!right` or `-right`.
type PrefixOperator struct {
	Operator PrefixOperatorKind
	Right    *Node
}

// InfixOperator is `left <op> right`.
type InfixOperator struct {
	Operator InfixOperatorKind
	Left     *Node
	Right    *Node
}

// Index is `left[index]`. Member access `left.name` parses to the same node
// with a string literal index.
type Index struct {
	Left  *Node
	Index *Node
}

// If is a conditional expression. Alternative is nil when there is no else
// branch. An `else if` chain parses as an alternative block holding exactly
// one nested If node.
type If struct {
	Condition   *Node
	Consequence Block
	Alternative *Block
}

// FunctionLiteral is `fn(params) { body }`. Name is set when the literal is
// directly assigned to an identifier, which allows recursive calls.
type FunctionLiteral struct {
	Name       string
	Parameters []FunctionParameter
	Body       Block
}

// FunctionParameter is a single named parameter with its source range.
type FunctionParameter struct {
	Name  string
	Range Range
}

// FunctionCall is `function(arguments)`.
type FunctionCall struct {
	Function  *Node
	Arguments []Node
}

// Use is `use "path"`. It evaluates to the last value of the imported file.
type Use string

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// Assign is `assignee = value`. The assignee is an identifier, an index
// expression, or an array of assignees for destructuring.
type Assign struct {
	Ident *Node
	Value *Node
}

// While is `while (condition) { body }`.
type While struct {
	Condition *Node
	Body      Block
}

// For is `for (initial; condition; after) { body }`.
type For struct {
	Initial   *Node
	Condition *Node
	After     *Node
	Body      Block
}

// Break exits the innermost loop.
type Break struct{}

// Continue jumps to the next iteration of the innermost loop.
type Continue struct{}

// Return exits the innermost function with a value.
type Return struct {
	Value *Node
}

// Comment is a line comment with its source range. Standalone comment lines
// appear as statements; every comment additionally lands in
// Program.Comments.
type Comment struct {
	Text  string
	Range Range
}

// Block is `{ ... }` including the braces in its range.
type Block struct {
	Statements []Node
	Range      Range
}

// ---------------------------------------------------------------------------
// Union classification
// ---------------------------------------------------------------------------

func (Identifier) Kind() NodeKind      { return NodeExpression }
func (IntegerLiteral) Kind() NodeKind  { return NodeExpression }
func (FloatLiteral) Kind() NodeKind    { return NodeExpression }
func (BoolLiteral) Kind() NodeKind     { return NodeExpression }
func (StringLiteral) Kind() NodeKind   { return NodeExpression }
func (CharLiteral) Kind() NodeKind     { return NodeExpression }
func (Null) Kind() NodeKind            { return NodeExpression }
func (ArrayLiteral) Kind() NodeKind    { return NodeExpression }
func (HashLiteral) Kind() NodeKind     { return NodeExpression }
func (PrefixOperator) Kind() NodeKind  { return NodeExpression }
func (InfixOperator) Kind() NodeKind   { return NodeExpression }
func (Index) Kind() NodeKind           { return NodeExpression }
func (If) Kind() NodeKind              { return NodeExpression }
func (FunctionLiteral) Kind() NodeKind { return NodeExpression }
func (FunctionCall) Kind() NodeKind    { return NodeExpression }
func (Use) Kind() NodeKind             { return NodeExpression }
func (Assign) Kind() NodeKind          { return NodeStatement }
func (While) Kind() NodeKind           { return NodeStatement }
func (For) Kind() NodeKind             { return NodeStatement }
func (Break) Kind() NodeKind           { return NodeStatement }
func (Continue) Kind() NodeKind        { return NodeStatement }
func (Return) Kind() NodeKind          { return NodeStatement }
func (Comment) Kind() NodeKind         { return NodeStatement }

func (Identifier) nodeValue()      {}
func (IntegerLiteral) nodeValue()  {}
func (FloatLiteral) nodeValue()    {}
func (BoolLiteral) nodeValue()     {}
func (StringLiteral) nodeValue()   {}
func (CharLiteral) nodeValue()     {}
func (Null) nodeValue()            {}
func (ArrayLiteral) nodeValue()    {}
func (HashLiteral) nodeValue()     {}
func (PrefixOperator) nodeValue()  {}
func (InfixOperator) nodeValue()   {}
func (Index) nodeValue()           {}
func (If) nodeValue()              {}
func (FunctionLiteral) nodeValue() {}
func (FunctionCall) nodeValue()    {}
func (Use) nodeValue()             {}
func (Assign) nodeValue()          {}
func (While) nodeValue()           {}
func (For) nodeValue()             {}
func (Break) nodeValue()           {}
func (Continue) nodeValue()        {}
func (Return) nodeValue()          {}
func (Comment) nodeValue()         {}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

// PrefixOperatorKind identifies a prefix operator.
type PrefixOperatorKind int

const (
	PrefixNot PrefixOperatorKind = iota // !
	PrefixNegative
)

func (k PrefixOperatorKind) String() string {
	switch k {
	case PrefixNot:
		return "!"
	case PrefixNegative:
		return "-"
	}
	return "unknown"
}

// InfixOperatorKind identifies a binary operator.
type InfixOperatorKind int

const (
	InfixAdd InfixOperatorKind = iota
	InfixSubtract
	InfixMultiply
	InfixDivide
	InfixModulo
	InfixAnd
	InfixOr
	InfixLe
	InfixLeq
	InfixGe
	InfixGeq
	InfixEq
	InfixNeq
)

var infixOperatorNames = map[InfixOperatorKind]string{
	InfixAdd:      "+",
	InfixSubtract: "-",
	InfixMultiply: "*",
	InfixDivide:   "/",
	InfixModulo:   "%",
	InfixAnd:      "&",
	InfixOr:       "|",
	InfixLe:       "<",
	InfixLeq:      "<=",
	InfixGe:       ">",
	InfixGeq:      ">=",
	InfixEq:       "==",
	InfixNeq:      "!=",
}

func (k InfixOperatorKind) String() string {
	if name, ok := infixOperatorNames[k]; ok {
		return name
	}
	return "unknown"
}
