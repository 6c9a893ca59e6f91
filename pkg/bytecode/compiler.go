package bytecode

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/chazu/aoc/compiler"
	"github.com/chazu/aoc/pkg/object"
)

// ---------------------------------------------------------------------------
// Compiler
// ---------------------------------------------------------------------------

// Compiler translates a parsed program into Bytecode. A compiler is good for
// one Compile call; imported files are compiled into the same constant and
// function pools as the importing program.
type Compiler struct {
	// SearchRoots are directories consulted, in order, when a `use` path
	// does not resolve relative to the working directory.
	SearchRoots []string

	constants []object.Object
	functions []Function

	symbols *SymbolTable
	scopes  []*compilationScope

	// importing holds the absolute paths of files whose compilation is in
	// flight, which is how import cycles are caught.
	importing map[string]bool
}

// compilationScope buffers the instructions of one function body. The bottom
// scope belongs to the entry function.
type compilationScope struct {
	instructions []Instruction
	ranges       []compiler.Range
	loops        []loopScope
}

// loopScope collects the jump placeholders of break and continue statements
// until the loop end is known.
type loopScope struct {
	breaks    []int
	continues []int
}

func NewCompiler() *Compiler {
	return &Compiler{
		symbols:   NewSymbolTable(),
		scopes:    []*compilationScope{{}},
		importing: map[string]bool{},
	}
}

// Compile compiles program with no import search roots.
func Compile(program *compiler.Program) (*Bytecode, error) {
	return NewCompiler().Compile(program)
}

// Compile compiles program into Bytecode. The entry function is appended
// last, after every function literal and imported file it contains.
func (c *Compiler) Compile(program *compiler.Program) (*Bytecode, error) {
	err := c.compileStatements(program.Statements, statementsRange(program.Statements), false)
	if err != nil {
		return nil, err
	}

	instructions, ranges := c.leaveScope()
	c.functions = append(c.functions, Function{
		Instructions: instructions,
		Ranges:       ranges,
	})

	return &Bytecode{
		Constants:    c.constants,
		Functions:    c.functions,
		MainFunction: len(c.functions) - 1,
	}, nil
}

// ---------------------------------------------------------------------------
// Statements and blocks
// ---------------------------------------------------------------------------

// compileStatements compiles a statement list, popping the value of every
// expression statement. With emitLast set the value of the last statement is
// kept on the stack instead; statements and empty lists yield null, ranged
// at the last statement and the enclosing block respectively.
func (c *Compiler) compileStatements(nodes []compiler.Node, blockRange compiler.Range, emitLast bool) error {
	statements := nodes[:0:0]
	for _, node := range nodes {
		if _, ok := node.Value.(compiler.Comment); ok {
			continue
		}
		statements = append(statements, node)
	}

	if emitLast && len(statements) == 0 {
		c.emit(OpNull, blockRange)
		return nil
	}

	for _, node := range statements {
		if err := c.compileNode(node); err != nil {
			return err
		}
		if node.Value.Kind() == compiler.NodeExpression {
			c.emit(OpPop, node.Range)
		}
	}

	if !emitLast {
		return nil
	}

	last := statements[len(statements)-1]
	if last.Value.Kind() == compiler.NodeExpression {
		c.dropLastInstruction()
	} else {
		c.emit(OpNull, last.Range)
	}

	return nil
}

func (c *Compiler) compileBlock(block compiler.Block, emitLast bool) error {
	return c.compileStatements(block.Statements, block.Range, emitLast)
}

func (c *Compiler) compileNode(node compiler.Node) error {
	switch v := node.Value.(type) {
	case compiler.IntegerLiteral:
		c.compileConstant(object.Integer(int64(v)), node.Range)
	case compiler.FloatLiteral:
		c.compileConstant(object.Float(float64(v)), node.Range)
	case compiler.BoolLiteral:
		c.compileConstant(object.Boolean(bool(v)), node.Range)
	case compiler.CharLiteral:
		c.compileConstant(object.Char(byte(v)), node.Range)
	case compiler.StringLiteral:
		c.compileConstant(object.String(string(v)), node.Range)
	case compiler.Null:
		c.emit(OpNull, node.Range)
	case compiler.Identifier:
		return c.compileIdentifier(string(v), node.Range)
	case compiler.ArrayLiteral:
		return c.compileArray(v, node.Range)
	case compiler.HashLiteral:
		return c.compileHashMap(v, node.Range)
	case compiler.PrefixOperator:
		return c.compilePrefixOperator(v, node.Range)
	case compiler.InfixOperator:
		return c.compileInfixOperator(v, node.Range)
	case compiler.Index:
		if err := c.compileNode(*v.Left); err != nil {
			return err
		}
		if err := c.compileNode(*v.Index); err != nil {
			return err
		}
		c.emit(OpIndexGet, node.Range)
	case compiler.If:
		return c.compileIf(v)
	case compiler.FunctionLiteral:
		return c.compileFunctionLiteral(v, node.Range)
	case compiler.FunctionCall:
		return c.compileFunctionCall(v, node.Range)
	case compiler.Use:
		return c.compileUse(string(v), node.Range)
	case compiler.Assign:
		if err := c.compileNode(*v.Value); err != nil {
			return err
		}
		return c.compileAssignTarget(*v.Ident, node.Range)
	case compiler.While:
		return c.compileWhile(v)
	case compiler.For:
		return c.compileFor(v)
	case compiler.Break:
		return c.compileBreak(node.Range)
	case compiler.Continue:
		return c.compileContinue(node.Range)
	case compiler.Return:
		return c.compileReturn(v, node.Range)
	case compiler.Comment:
		// Comments produce no code.
	default:
		panic(fmt.Sprintf("unhandled node %T", v))
	}

	return nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (c *Compiler) compileConstant(constant object.Object, rng compiler.Range) {
	c.emit(OpConstant, rng, c.addConstant(constant))
}

func (c *Compiler) compileIdentifier(ident string, rng compiler.Range) error {
	if sym, ok := c.symbols.Resolve(ident); ok {
		c.loadSymbol(sym, rng)
		return nil
	}
	if builtin, ok := object.BuiltinFromIdent(ident); ok {
		c.emit(OpBuiltin, rng, int(builtin))
		return nil
	}

	return &Error{Kind: ErrUndefinedSymbol, Symbol: ident, Range: rng}
}

func (c *Compiler) compileArray(arr compiler.ArrayLiteral, rng compiler.Range) error {
	for _, node := range arr {
		if err := c.compileNode(node); err != nil {
			return err
		}
	}

	c.emit(OpArray, rng, len(arr))
	return nil
}

// compileHashMap compiles keys and values in source order. The operand
// counts stack slots, two per pair.
func (c *Compiler) compileHashMap(hash compiler.HashLiteral, rng compiler.Range) error {
	for _, pair := range hash {
		if err := c.compileNode(pair.Key); err != nil {
			return err
		}
		if err := c.compileNode(pair.Value); err != nil {
			return err
		}
	}

	c.emit(OpHashMap, rng, len(hash)*2)
	return nil
}

func (c *Compiler) compilePrefixOperator(node compiler.PrefixOperator, rng compiler.Range) error {
	if err := c.compileNode(*node.Right); err != nil {
		return err
	}

	switch node.Operator {
	case compiler.PrefixNot:
		c.emit(OpBang, rng)
	case compiler.PrefixNegative:
		c.emit(OpMinus, rng)
	}

	return nil
}

// compileInfixOperator emits the operator after its operands. Ge and Geq
// reuse Le and Leq with the operands compiled in swapped order.
func (c *Compiler) compileInfixOperator(node compiler.InfixOperator, rng compiler.Range) error {
	var op Opcode
	var reverse bool

	switch node.Operator {
	case compiler.InfixAdd:
		op = OpAdd
	case compiler.InfixSubtract:
		op = OpSubtract
	case compiler.InfixMultiply:
		op = OpMultiply
	case compiler.InfixDivide:
		op = OpDivide
	case compiler.InfixModulo:
		op = OpModulo
	case compiler.InfixAnd:
		op = OpAnd
	case compiler.InfixOr:
		op = OpOr
	case compiler.InfixLe:
		op = OpLe
	case compiler.InfixLeq:
		op = OpLeq
	case compiler.InfixGe:
		op, reverse = OpLe, true
	case compiler.InfixGeq:
		op, reverse = OpLeq, true
	case compiler.InfixEq:
		op = OpEq
	case compiler.InfixNeq:
		op = OpNeq
	}

	left, right := node.Left, node.Right
	if reverse {
		left, right = right, left
	}

	if err := c.compileNode(*left); err != nil {
		return err
	}
	if err := c.compileNode(*right); err != nil {
		return err
	}

	c.emit(op, rng)
	return nil
}

// compileIf compiles a conditional expression. Both branches keep their last
// value on the stack; a missing else branch yields null.
func (c *Compiler) compileIf(node compiler.If) error {
	if err := c.compileNode(*node.Condition); err != nil {
		return err
	}
	jumpAlternative := c.emit(OpJumpNotTruthy, node.Condition.Range, 0)

	if err := c.compileBlock(node.Consequence, true); err != nil {
		return err
	}
	jumpEnd := c.emit(OpJump, node.Consequence.Range, 0)

	c.patchJump(jumpAlternative)

	if node.Alternative != nil {
		if err := c.compileBlock(*node.Alternative, true); err != nil {
			return err
		}
	} else {
		c.emit(OpNull, node.Consequence.Range)
	}

	c.patchJump(jumpEnd)
	return nil
}

// ---------------------------------------------------------------------------
// Assignment
// ---------------------------------------------------------------------------

// compileAssignTarget stores the value on top of the stack into the assignee.
// The parser has already validated that only identifiers, index expressions
// and arrays of assignees get here.
func (c *Compiler) compileAssignTarget(target compiler.Node, rng compiler.Range) error {
	switch t := target.Value.(type) {
	case compiler.Identifier:
		c.storeSymbol(c.symbols.Define(string(t)), rng)
	case compiler.Index:
		if err := c.compileNode(*t.Left); err != nil {
			return err
		}
		if err := c.compileNode(*t.Index); err != nil {
			return err
		}
		c.emit(OpIndexSet, rng)
	case compiler.ArrayLiteral:
		c.emit(OpUnpackArray, rng, len(t))
		for _, node := range t {
			if err := c.compileAssignTarget(node, rng); err != nil {
				return err
			}
		}
	default:
		panic(fmt.Sprintf("invalid assignee %T", t))
	}

	return nil
}

// ---------------------------------------------------------------------------
// Loops and control flow
// ---------------------------------------------------------------------------

func (c *Compiler) compileWhile(node compiler.While) error {
	start := len(c.currentScope().instructions)

	if err := c.compileNode(*node.Condition); err != nil {
		return err
	}
	jumpEnd := c.emit(OpJumpNotTruthy, node.Condition.Range, 0)

	c.pushLoop()
	if err := c.compileBlock(node.Body, false); err != nil {
		return err
	}
	c.emit(OpJump, node.Body.Range, start)

	c.patchJump(jumpEnd)

	loop := c.popLoop()
	c.patchJumpsTo(loop.breaks, len(c.currentScope().instructions))
	c.patchJumpsTo(loop.continues, start)

	return nil
}

func (c *Compiler) compileFor(node compiler.For) error {
	if err := c.compileNode(*node.Initial); err != nil {
		return err
	}
	if node.Initial.Value.Kind() == compiler.NodeExpression {
		c.emit(OpPop, node.Initial.Range)
	}

	start := len(c.currentScope().instructions)
	if err := c.compileNode(*node.Condition); err != nil {
		return err
	}
	jumpEnd := c.emit(OpJumpNotTruthy, node.Condition.Range, 0)

	c.pushLoop()
	if err := c.compileBlock(node.Body, false); err != nil {
		return err
	}

	// Continue lands on the after clause, not on the condition.
	afterStart := len(c.currentScope().instructions)
	if err := c.compileNode(*node.After); err != nil {
		return err
	}
	if node.After.Value.Kind() == compiler.NodeExpression {
		c.emit(OpPop, node.After.Range)
	}

	c.emit(OpJump, node.Body.Range, start)

	c.patchJump(jumpEnd)

	loop := c.popLoop()
	c.patchJumpsTo(loop.breaks, len(c.currentScope().instructions))
	c.patchJumpsTo(loop.continues, afterStart)

	return nil
}

func (c *Compiler) compileBreak(rng compiler.Range) error {
	loop := c.currentLoop()
	if loop == nil {
		return &Error{Kind: ErrControlFlowOutsideOfLoop, Range: rng}
	}

	loop.breaks = append(loop.breaks, c.emit(OpJump, rng, 0))
	return nil
}

func (c *Compiler) compileContinue(rng compiler.Range) error {
	loop := c.currentLoop()
	if loop == nil {
		return &Error{Kind: ErrControlFlowOutsideOfLoop, Range: rng}
	}

	loop.continues = append(loop.continues, c.emit(OpJump, rng, 0))
	return nil
}

// ---------------------------------------------------------------------------
// Functions and calls
// ---------------------------------------------------------------------------

func (c *Compiler) compileFunctionLiteral(fn compiler.FunctionLiteral, rng compiler.Range) error {
	c.enterScope()
	c.symbols.EnterScope()

	// A named function resolves its own name to the closure being run,
	// which is what makes recursion work.
	if fn.Name != "" {
		c.symbols.DefineFunctionName(fn.Name)
	}

	// The argument slots double as the first locals.
	for _, param := range fn.Parameters {
		c.symbols.Define(param.Name)
	}

	if err := c.compileBlock(fn.Body, true); err != nil {
		return err
	}
	c.emit(OpReturn, fn.Body.Range)

	instructions, ranges := c.leaveScope()
	numLocals, free := c.symbols.LeaveScope()

	fnIndex := len(c.functions)
	c.functions = append(c.functions, Function{
		Instructions: instructions,
		Ranges:       ranges,
		NumLocals:    numLocals,
		NumArguments: len(fn.Parameters),
	})

	for _, sym := range free {
		c.loadSymbol(sym, rng)
	}
	c.emit(OpCreateClosure, rng, fnIndex, len(free))

	return nil
}

func (c *Compiler) compileFunctionCall(call compiler.FunctionCall, rng compiler.Range) error {
	for _, arg := range call.Arguments {
		if err := c.compileNode(arg); err != nil {
			return err
		}
	}

	if err := c.compileNode(*call.Function); err != nil {
		return err
	}

	c.emit(OpFnCall, rng, len(call.Arguments))
	return nil
}

func (c *Compiler) compileReturn(node compiler.Return, rng compiler.Range) error {
	if len(c.scopes) == 1 {
		return &Error{Kind: ErrReturnOutsideOfFunction, Range: rng}
	}

	if err := c.compileNode(*node.Value); err != nil {
		return err
	}

	c.emit(OpReturn, rng)
	return nil
}

// ---------------------------------------------------------------------------
// Imports
// ---------------------------------------------------------------------------

// compileUse compiles `use "path"`. The imported file becomes a zero
// argument function with its own symbol table, so its top level assignments
// are locals of that function rather than globals of the importing program.
// The call evaluates to the file's last value.
func (c *Compiler) compileUse(path string, rng compiler.Range) error {
	source, abs, ok := c.resolveImport(path)
	if !ok || c.importing[abs] {
		return &Error{Kind: ErrInvalidImportPath, Path: path, Range: rng}
	}

	program, err := compiler.Parse(source)
	if err != nil {
		return &Error{Kind: ErrImportParserError, Path: path, Range: rng, Err: err}
	}

	c.importing[abs] = true
	defer delete(c.importing, abs)

	fnIndex, err := c.compileImportedProgram(program)
	if err != nil {
		return &Error{Kind: ErrImportCompilerError, Path: path, Range: rng, Err: err}
	}

	c.emit(OpCreateClosure, rng, fnIndex, 0)
	c.emit(OpFnCall, rng, 0)
	return nil
}

func (c *Compiler) compileImportedProgram(program *compiler.Program) (int, error) {
	outer := c.symbols
	c.symbols = NewSymbolTable()
	c.symbols.EnterScope()
	c.enterScope()

	defer func() {
		c.symbols = outer
	}()

	progRange := statementsRange(program.Statements)
	if err := c.compileStatements(program.Statements, progRange, true); err != nil {
		c.leaveScope()
		return 0, err
	}
	c.emit(OpReturn, progRange)

	instructions, ranges := c.leaveScope()
	numLocals, _ := c.symbols.LeaveScope()

	fnIndex := len(c.functions)
	c.functions = append(c.functions, Function{
		Instructions: instructions,
		Ranges:       ranges,
		NumLocals:    numLocals,
	})

	return fnIndex, nil
}

// resolveImport reads the first readable file among the path itself and the
// path joined onto each search root. The absolute path identifies the file
// for cycle detection.
func (c *Compiler) resolveImport(path string) (source, abs string, ok bool) {
	candidates := make([]string, 0, len(c.SearchRoots)+1)
	candidates = append(candidates, path)
	for _, root := range c.SearchRoots {
		candidates = append(candidates, filepath.Join(root, path))
	}

	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}

		abs, err := filepath.Abs(candidate)
		if err != nil {
			abs = candidate
		}
		return string(data), abs, true
	}

	return "", "", false
}

// ---------------------------------------------------------------------------
// Emission
// ---------------------------------------------------------------------------

// emit appends an instruction with the source range it was compiled from and
// returns its position.
func (c *Compiler) emit(op Opcode, rng compiler.Range, operands ...int) int {
	ins := Instruction{Op: op}
	switch len(operands) {
	case 2:
		ins.B = operands[1]
		fallthrough
	case 1:
		ins.A = operands[0]
	}

	scope := c.currentScope()
	scope.instructions = append(scope.instructions, ins)
	scope.ranges = append(scope.ranges, rng)

	return len(scope.instructions) - 1
}

func (c *Compiler) dropLastInstruction() {
	scope := c.currentScope()
	scope.instructions = scope.instructions[:len(scope.instructions)-1]
	scope.ranges = scope.ranges[:len(scope.ranges)-1]
}

// patchJump points the jump at pos to the current end of the scope.
func (c *Compiler) patchJump(pos int) {
	scope := c.currentScope()
	scope.instructions[pos].A = len(scope.instructions)
}

func (c *Compiler) patchJumpsTo(positions []int, target int) {
	scope := c.currentScope()
	for _, pos := range positions {
		scope.instructions[pos].A = target
	}
}

func (c *Compiler) addConstant(constant object.Object) int {
	c.constants = append(c.constants, constant)
	return len(c.constants) - 1
}

func (c *Compiler) loadSymbol(sym Symbol, rng compiler.Range) {
	switch sym.Scope {
	case ScopeGlobal:
		c.emit(OpLoadGlobal, rng, sym.Index)
	case ScopeLocal:
		c.emit(OpLoadLocal, rng, sym.Index)
	case ScopeFree:
		c.emit(OpLoadFree, rng, sym.Index)
	case ScopeCurrentClosure:
		c.emit(OpCurrentClosure, rng)
	case ScopeBuiltin:
		c.emit(OpBuiltin, rng, sym.Index)
	}
}

func (c *Compiler) storeSymbol(sym Symbol, rng compiler.Range) {
	switch sym.Scope {
	case ScopeGlobal:
		c.emit(OpStoreGlobal, rng, sym.Index)
	case ScopeLocal:
		c.emit(OpStoreLocal, rng, sym.Index)
	default:
		panic(fmt.Sprintf("symbol %s is not storable", sym.Name))
	}
}

// ---------------------------------------------------------------------------
// Scopes
// ---------------------------------------------------------------------------

func (c *Compiler) currentScope() *compilationScope {
	return c.scopes[len(c.scopes)-1]
}

func (c *Compiler) enterScope() {
	c.scopes = append(c.scopes, &compilationScope{})
}

func (c *Compiler) leaveScope() ([]Instruction, []compiler.Range) {
	scope := c.scopes[len(c.scopes)-1]
	c.scopes = c.scopes[:len(c.scopes)-1]
	return scope.instructions, scope.ranges
}

func (c *Compiler) pushLoop() {
	scope := c.currentScope()
	scope.loops = append(scope.loops, loopScope{})
}

func (c *Compiler) popLoop() loopScope {
	scope := c.currentScope()
	loop := scope.loops[len(scope.loops)-1]
	scope.loops = scope.loops[:len(scope.loops)-1]
	return loop
}

func (c *Compiler) currentLoop() *loopScope {
	scope := c.currentScope()
	if len(scope.loops) == 0 {
		return nil
	}
	return &scope.loops[len(scope.loops)-1]
}

func statementsRange(nodes []compiler.Node) compiler.Range {
	if len(nodes) == 0 {
		return compiler.Range{}
	}
	return compiler.Range{
		Start: nodes[0].Range.Start,
		End:   nodes[len(nodes)-1].Range.End,
	}
}
