// Package vm executes compiled aoc bytecode on a stack machine. Arrays and
// dictionaries live behind handles owned by a mark/trace garbage collector
// that runs between instructions.
package vm

import (
	"bufio"
	"io"
	"os"

	"github.com/chazu/aoc/compiler"
	"github.com/chazu/aoc/pkg/bytecode"
	"github.com/chazu/aoc/pkg/object"
)

const (
	// StackSize is the fixed number of value slots on the stack.
	StackSize = 4096

	// GlobalsSize is the fixed number of global variable slots.
	GlobalsSize = 512

	// MaxFrames caps call depth so runaway recursion fails with a stack
	// overflow error instead of exhausting the host stack.
	MaxFrames = 1024

	// maxUnpack caps the number of elements a destructuring assignment may
	// spread onto the stack.
	maxUnpack = 256
)

// ---------------------------------------------------------------------------
// VM: the bytecode interpreter
// ---------------------------------------------------------------------------

// VM executes one program at a time. The zero value is not usable; call New.
type VM struct {
	gc      *collector
	globals []object.Object
	stack   []object.Object
	sp      int // next free stack slot; top of stack is stack[sp-1]
	frames  []frame

	// Stdin and Stdout back the input and print builtins. They default to
	// the process streams and may be replaced before Run.
	Stdin  io.Reader
	Stdout io.Writer

	in *bufio.Reader // lazily wraps Stdin on the first input() call
}

// New returns a VM with empty globals, reading from os.Stdin and writing to
// os.Stdout.
func New() *VM {
	return &VM{
		gc:      newCollector(),
		globals: make([]object.Object, GlobalsSize),
		stack:   make([]object.Object, StackSize),
		frames:  make([]frame, 0, MaxFrames),
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
	}
}

// Run compiles the parsed program and executes it on a fresh VM, returning
// the value of the final expression.
func Run(program *compiler.Program) (object.Object, error) {
	code, err := bytecode.Compile(program)
	if err != nil {
		return object.Null, err
	}
	return New().Run(code)
}

// Run executes the given bytecode until the entry function runs off its last
// instruction and returns the value of the program's final expression. The
// VM's globals survive across calls, so a REPL can Run successive chunks.
func (vm *VM) Run(code *bytecode.Bytecode) (object.Object, error) {
	vm.sp = 0
	vm.frames = vm.frames[:0]
	vm.frames = append(vm.frames, frame{
		closure: &object.Closure{Function: code.MainFunction},
	})

	for {
		fr := vm.frame()
		fn := &code.Functions[fr.closure.Function]
		if fr.ip >= len(fn.Instructions) {
			break
		}

		ip := fr.ip
		fr.ip++
		if err := vm.execute(code, fn.Instructions[ip]); err != nil {
			err.Range = fn.Ranges[ip]
			return object.Null, err
		}

		vm.gc.step()
		if vm.gc.shouldCollect() {
			vm.collectGarbage()
		}
	}

	return vm.stack[0], nil
}

// execute runs a single instruction. The caller attaches the instruction's
// source range to any returned error.
func (vm *VM) execute(code *bytecode.Bytecode, ins bytecode.Instruction) *bytecode.Error {
	switch ins.Op {
	case bytecode.OpConstant:
		return vm.push(code.Constants[ins.A])

	case bytecode.OpPop:
		vm.pop()

	case bytecode.OpNull:
		return vm.push(object.Null)

	case bytecode.OpAdd, bytecode.OpSubtract, bytecode.OpMultiply,
		bytecode.OpDivide, bytecode.OpModulo, bytecode.OpAnd, bytecode.OpOr,
		bytecode.OpLe, bytecode.OpLeq, bytecode.OpEq, bytecode.OpNeq:
		return vm.executeBinary(ins.Op)

	case bytecode.OpMinus:
		return vm.executeMinus()

	case bytecode.OpBang:
		return vm.executeBang()

	case bytecode.OpJump:
		vm.frame().ip = ins.A

	case bytecode.OpJumpNotTruthy:
		if !vm.pop().IsTruthy() {
			vm.frame().ip = ins.A
		}

	case bytecode.OpArray:
		elements := make([]object.Object, ins.A)
		copy(elements, vm.stack[vm.sp-ins.A:vm.sp])
		vm.sp -= ins.A
		return vm.push(vm.gc.allocateArray(elements))

	case bytecode.OpHashMap:
		start := vm.sp - ins.A
		vm.sp = start
		pairs := make(map[object.HashKey]object.Object, ins.A/2)
		for i := start; i < start+ins.A; i += 2 {
			key, ok := vm.stack[i].HashKey()
			if !ok {
				return &bytecode.Error{Kind: bytecode.ErrNotHashable, DataType: vm.stack[i].Type}
			}
			pairs[key] = vm.stack[i+1]
		}
		return vm.push(vm.gc.allocateDictionary(pairs))

	case bytecode.OpIndexGet:
		index := vm.pop()
		container := vm.pop()
		return vm.executeIndexGet(container, index)

	case bytecode.OpIndexSet:
		index := vm.pop()
		container := vm.pop()
		value := vm.pop()
		return vm.executeIndexSet(container, index, value)

	case bytecode.OpUnpackArray:
		return vm.executeUnpack(ins.A)

	case bytecode.OpStoreGlobal:
		vm.globals[ins.A] = vm.pop()

	case bytecode.OpLoadGlobal:
		return vm.push(vm.globals[ins.A])

	case bytecode.OpStoreLocal:
		vm.stack[vm.frame().basePointer+ins.A] = vm.pop()

	case bytecode.OpLoadLocal:
		return vm.push(vm.stack[vm.frame().basePointer+ins.A])

	case bytecode.OpLoadFree:
		return vm.push(vm.frame().closure.Free[ins.A])

	case bytecode.OpCreateClosure:
		var free []object.Object
		if ins.B > 0 {
			free = make([]object.Object, ins.B)
			copy(free, vm.stack[vm.sp-ins.B:vm.sp])
			vm.sp -= ins.B
		}
		closure := &object.Closure{Function: ins.A, Free: free}
		return vm.push(closure.Object())

	case bytecode.OpCurrentClosure:
		return vm.push(vm.frame().closure.Object())

	case bytecode.OpBuiltin:
		return vm.push(object.Builtin(ins.A).Object())

	case bytecode.OpFnCall:
		return vm.call(code, ins.A)

	case bytecode.OpReturn:
		result := vm.pop()
		fr := vm.popFrame()
		vm.sp = fr.basePointer
		return vm.push(result)
	}

	return nil
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

// executeBinary pops the right then the left operand. Operands must have the
// same type; every unsupported pairing reports the operator and both types.
func (vm *VM) executeBinary(op bytecode.Opcode) *bytecode.Error {
	right := vm.pop()
	left := vm.pop()

	if left.Type == right.Type {
		switch op {
		case bytecode.OpAdd:
			switch left.Type {
			case object.TypeInteger:
				return vm.push(object.Integer(left.Int + right.Int))
			case object.TypeFloat:
				return vm.push(object.Float(left.Float + right.Float))
			case object.TypeString:
				return vm.push(object.String(left.Str + right.Str))
			case object.TypeArray:
				l := *vm.gc.array(left.Handle)
				r := *vm.gc.array(right.Handle)
				joined := make([]object.Object, 0, len(l)+len(r))
				joined = append(joined, l...)
				joined = append(joined, r...)
				return vm.push(vm.gc.allocateArray(joined))
			}

		case bytecode.OpSubtract:
			switch left.Type {
			case object.TypeInteger:
				return vm.push(object.Integer(left.Int - right.Int))
			case object.TypeFloat:
				return vm.push(object.Float(left.Float - right.Float))
			}

		case bytecode.OpMultiply:
			switch left.Type {
			case object.TypeInteger:
				return vm.push(object.Integer(left.Int * right.Int))
			case object.TypeFloat:
				return vm.push(object.Float(left.Float * right.Float))
			}

		case bytecode.OpDivide:
			switch left.Type {
			case object.TypeInteger:
				if right.Int == 0 {
					return &bytecode.Error{Kind: bytecode.ErrDivisionByZero}
				}
				return vm.push(object.Integer(left.Int / right.Int))
			case object.TypeFloat:
				return vm.push(object.Float(left.Float / right.Float))
			}

		case bytecode.OpModulo:
			if left.Type == object.TypeInteger {
				if right.Int == 0 {
					return &bytecode.Error{Kind: bytecode.ErrDivisionByZero}
				}
				// Euclidean remainder, always in [0, |right|).
				m := left.Int % right.Int
				if m < 0 {
					if right.Int < 0 {
						m -= right.Int
					} else {
						m += right.Int
					}
				}
				return vm.push(object.Integer(m))
			}

		case bytecode.OpAnd:
			switch left.Type {
			case object.TypeInteger:
				return vm.push(object.Integer(left.Int & right.Int))
			case object.TypeBoolean:
				return vm.push(object.Boolean(left.Bool && right.Bool))
			}

		case bytecode.OpOr:
			switch left.Type {
			case object.TypeInteger:
				return vm.push(object.Integer(left.Int | right.Int))
			case object.TypeBoolean:
				return vm.push(object.Boolean(left.Bool || right.Bool))
			}

		case bytecode.OpLe:
			switch left.Type {
			case object.TypeInteger:
				return vm.push(object.Boolean(left.Int < right.Int))
			case object.TypeFloat:
				return vm.push(object.Boolean(left.Float < right.Float))
			case object.TypeString:
				return vm.push(object.Boolean(left.Str < right.Str))
			case object.TypeChar:
				return vm.push(object.Boolean(left.Char < right.Char))
			}

		case bytecode.OpLeq:
			switch left.Type {
			case object.TypeInteger:
				return vm.push(object.Boolean(left.Int <= right.Int))
			case object.TypeFloat:
				return vm.push(object.Boolean(left.Float <= right.Float))
			case object.TypeString:
				return vm.push(object.Boolean(left.Str <= right.Str))
			case object.TypeChar:
				return vm.push(object.Boolean(left.Char <= right.Char))
			}

		case bytecode.OpEq, bytecode.OpNeq:
			if equal, comparable := scalarEquals(left, right); comparable {
				if op == bytecode.OpNeq {
					equal = !equal
				}
				return vm.push(object.Boolean(equal))
			}
		}
	}

	return &bytecode.Error{
		Kind:     bytecode.ErrInvalidOperands,
		Operator: operatorSymbol(op),
		Left:     left.Type,
		Right:    right.Type,
	}
}

// scalarEquals compares two objects of the same scalar type. The second
// return value is false for types without equality.
func scalarEquals(left, right object.Object) (equal, comparable bool) {
	switch left.Type {
	case object.TypeInteger:
		return left.Int == right.Int, true
	case object.TypeFloat:
		return left.Float == right.Float, true
	case object.TypeBoolean:
		return left.Bool == right.Bool, true
	case object.TypeString:
		return left.Str == right.Str, true
	case object.TypeChar:
		return left.Char == right.Char, true
	}
	return false, false
}

func operatorSymbol(op bytecode.Opcode) string {
	switch op {
	case bytecode.OpAdd:
		return "+"
	case bytecode.OpSubtract:
		return "-"
	case bytecode.OpMultiply:
		return "*"
	case bytecode.OpDivide:
		return "/"
	case bytecode.OpModulo:
		return "%"
	case bytecode.OpAnd:
		return "&"
	case bytecode.OpOr:
		return "|"
	case bytecode.OpLe:
		return "<"
	case bytecode.OpLeq:
		return "<="
	case bytecode.OpEq:
		return "=="
	case bytecode.OpNeq:
		return "!="
	}
	return op.String()
}

func (vm *VM) executeMinus() *bytecode.Error {
	operand := vm.pop()
	switch operand.Type {
	case object.TypeInteger:
		return vm.push(object.Integer(-operand.Int))
	case object.TypeFloat:
		return vm.push(object.Float(-operand.Float))
	}
	return &bytecode.Error{Kind: bytecode.ErrInvalidNegateOperand, DataType: operand.Type}
}

// executeBang inverts booleans and takes the bitwise complement of integers.
func (vm *VM) executeBang() *bytecode.Error {
	operand := vm.pop()
	switch operand.Type {
	case object.TypeBoolean:
		return vm.push(object.Boolean(!operand.Bool))
	case object.TypeInteger:
		return vm.push(object.Integer(^operand.Int))
	}
	return &bytecode.Error{Kind: bytecode.ErrInvalidNegateOperand, DataType: operand.Type}
}

// ---------------------------------------------------------------------------
// Indexing and destructuring
// ---------------------------------------------------------------------------

// executeIndexGet pushes container[index]. Missing array and dictionary
// entries yield null rather than an error; indexing a string yields the byte
// at that position as a char.
func (vm *VM) executeIndexGet(container, index object.Object) *bytecode.Error {
	switch container.Type {
	case object.TypeArray:
		if index.Type != object.TypeInteger {
			return &bytecode.Error{Kind: bytecode.ErrInvalidIndexType, DataType: index.Type}
		}
		elements := *vm.gc.array(container.Handle)
		if index.Int < 0 || index.Int >= int64(len(elements)) {
			return vm.push(object.Null)
		}
		return vm.push(elements[index.Int])

	case object.TypeDictionary:
		key, ok := index.HashKey()
		if !ok {
			return &bytecode.Error{Kind: bytecode.ErrNotHashable, DataType: index.Type}
		}
		value, found := vm.gc.dictionary(container.Handle)[key]
		if !found {
			return vm.push(object.Null)
		}
		return vm.push(value)

	case object.TypeString:
		if index.Type != object.TypeInteger {
			return &bytecode.Error{Kind: bytecode.ErrInvalidIndexType, DataType: index.Type}
		}
		if index.Int < 0 || index.Int >= int64(len(container.Str)) {
			return vm.push(object.Null)
		}
		return vm.push(object.Char(container.Str[index.Int]))
	}

	return &bytecode.Error{Kind: bytecode.ErrNotIndexable, DataType: container.Type}
}

// executeIndexSet stores value into container[index]. Arrays never grow
// here; out of range assignments fail.
func (vm *VM) executeIndexSet(container, index, value object.Object) *bytecode.Error {
	switch container.Type {
	case object.TypeArray:
		if index.Type != object.TypeInteger {
			return &bytecode.Error{Kind: bytecode.ErrInvalidIndexType, DataType: index.Type}
		}
		elements := vm.gc.array(container.Handle)
		if index.Int < 0 || index.Int >= int64(len(*elements)) {
			return &bytecode.Error{
				Kind:   bytecode.ErrIndexOutOfBounds,
				Index:  index.Int,
				Length: len(*elements),
			}
		}
		(*elements)[index.Int] = value
		return nil

	case object.TypeDictionary:
		key, ok := index.HashKey()
		if !ok {
			return &bytecode.Error{Kind: bytecode.ErrNotHashable, DataType: index.Type}
		}
		vm.gc.dictionary(container.Handle)[key] = value
		return nil
	}

	return &bytecode.Error{Kind: bytecode.ErrNotIndexable, DataType: container.Type}
}

// executeUnpack pops an array and pushes its elements in reverse order, so
// the first element ends up on top for the first assignment target.
func (vm *VM) executeUnpack(want int) *bytecode.Error {
	arr := vm.pop()
	if arr.Type != object.TypeArray {
		return &bytecode.Error{Kind: bytecode.ErrNotUnpackable, DataType: arr.Type}
	}

	elements := *vm.gc.array(arr.Handle)
	if len(elements) != want {
		return &bytecode.Error{
			Kind:     bytecode.ErrUnpackLengthMismatch,
			Expected: want,
			Got:      len(elements),
		}
	}
	if len(elements) > maxUnpack {
		return &bytecode.Error{Kind: bytecode.ErrUnpackTooLarge, Max: maxUnpack, Got: len(elements)}
	}

	for i := len(elements) - 1; i >= 0; i-- {
		if err := vm.push(elements[i]); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Calls and frames
// ---------------------------------------------------------------------------

// call pops the callee and invokes it with the top numArgs stack slots.
func (vm *VM) call(code *bytecode.Bytecode, numArgs int) *bytecode.Error {
	callee := vm.pop()
	switch callee.Type {
	case object.TypeClosure:
		return vm.callClosure(code, callee.Closure, numArgs)
	case object.TypeBuiltin:
		return vm.callBuiltin(callee.Builtin, numArgs)
	}
	return &bytecode.Error{Kind: bytecode.ErrNotCallable, DataType: callee.Type}
}

// callClosure pushes a frame whose locals start at the first argument.
// Local slots beyond the arguments are nulled so stale stack values can
// never leak into the frame.
func (vm *VM) callClosure(code *bytecode.Bytecode, closure *object.Closure, numArgs int) *bytecode.Error {
	fn := &code.Functions[closure.Function]
	if numArgs != fn.NumArguments {
		return &bytecode.Error{
			Kind:     bytecode.ErrInvalidNrOfArgs,
			Expected: fn.NumArguments,
			Got:      numArgs,
		}
	}
	if len(vm.frames) == MaxFrames {
		return &bytecode.Error{Kind: bytecode.ErrStackOverflow}
	}

	basePointer := vm.sp - numArgs
	if basePointer+fn.NumLocals > StackSize {
		return &bytecode.Error{Kind: bytecode.ErrStackOverflow}
	}
	for i := basePointer + numArgs; i < basePointer+fn.NumLocals; i++ {
		vm.stack[i] = object.Null
	}
	vm.sp = basePointer + fn.NumLocals

	vm.frames = append(vm.frames, frame{closure: closure, basePointer: basePointer})
	return nil
}

// callBuiltin validates arity, invokes the builtin on the top numArgs slots
// and replaces them with the result.
func (vm *VM) callBuiltin(builtin object.Builtin, numArgs int) *bytecode.Error {
	if arity := builtin.Arity(); arity != object.VariadicArity && arity != numArgs {
		return &bytecode.Error{Kind: bytecode.ErrInvalidNrOfArgs, Expected: arity, Got: numArgs}
	}

	args := vm.stack[vm.sp-numArgs : vm.sp]
	result, err := vm.invokeBuiltin(builtin, args)
	if err != nil {
		return err
	}

	vm.sp -= numArgs
	return vm.push(result)
}

// ---------------------------------------------------------------------------
// Stack and garbage collection plumbing
// ---------------------------------------------------------------------------

func (vm *VM) push(obj object.Object) *bytecode.Error {
	if vm.sp == StackSize {
		return &bytecode.Error{Kind: bytecode.ErrStackOverflow}
	}
	vm.stack[vm.sp] = obj
	vm.sp++
	return nil
}

func (vm *VM) pop() object.Object {
	if vm.sp == 0 {
		panic("stack underflow")
	}
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VM) frame() *frame {
	return &vm.frames[len(vm.frames)-1]
}

func (vm *VM) popFrame() frame {
	fr := vm.frames[len(vm.frames)-1]
	vm.frames = vm.frames[:len(vm.frames)-1]
	return fr
}

// collectGarbage traces the live stack, every global slot and the closure of
// every active frame.
func (vm *VM) collectGarbage() {
	closures := make([]object.Object, len(vm.frames))
	for i := range vm.frames {
		closures[i] = vm.frames[i].closure.Object()
	}
	vm.gc.collect(vm.stack[:vm.sp], vm.globals, closures)
}
