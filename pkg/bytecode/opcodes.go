package bytecode

import "fmt"

// Opcode identifies a VM instruction.
type Opcode uint8

const (
	// ------------------------------------------------------------------
	// Stack and constants
	// ------------------------------------------------------------------

	OpConstant Opcode = iota // Push constant: A = constant pool index
	OpPop                    // Pop top of stack
	OpNull                   // Push null

	// ------------------------------------------------------------------
	// Operators (binary operators pop right operand first)
	// ------------------------------------------------------------------

	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpAnd
	OpOr
	OpLe
	OpLeq
	OpEq
	OpNeq
	OpMinus // Negate top of stack
	OpBang  // Logical not on booleans, bitwise complement on integers

	// ------------------------------------------------------------------
	// Control flow (targets are instruction indexes, not byte offsets)
	// ------------------------------------------------------------------

	OpJump          // A = target
	OpJumpNotTruthy // Pop condition, jump when not truthy: A = target

	// ------------------------------------------------------------------
	// Composite values
	// ------------------------------------------------------------------

	OpArray       // Pop A elements, push array
	OpHashMap     // Pop A key/value slots, push dictionary
	OpIndexGet    // Pop index and container, push element
	OpIndexSet    // Pop index, container and value, store element
	OpUnpackArray // Pop array, push its A elements in reverse

	// ------------------------------------------------------------------
	// Variables
	// ------------------------------------------------------------------

	OpStoreGlobal // Pop into global slot A
	OpLoadGlobal  // Push global slot A
	OpStoreLocal  // Pop into local slot A of the current frame
	OpLoadLocal   // Push local slot A of the current frame
	OpLoadFree    // Push free variable A of the current closure

	// ------------------------------------------------------------------
	// Functions
	// ------------------------------------------------------------------

	OpCreateClosure  // Pop B free variables, push closure over function A
	OpCurrentClosure // Push the closure of the running frame
	OpBuiltin        // Push builtin A as a first-class value
	OpFnCall         // Pop callee, call it with the top A stack slots
	OpReturn         // Pop result, unwind the frame, push result
)

type opcodeInfo struct {
	name     string
	operands int
}

var opcodeInfos = map[Opcode]opcodeInfo{
	OpConstant:       {"CONSTANT", 1},
	OpPop:            {"POP", 0},
	OpNull:           {"NULL", 0},
	OpAdd:            {"ADD", 0},
	OpSubtract:       {"SUBTRACT", 0},
	OpMultiply:       {"MULTIPLY", 0},
	OpDivide:         {"DIVIDE", 0},
	OpModulo:         {"MODULO", 0},
	OpAnd:            {"AND", 0},
	OpOr:             {"OR", 0},
	OpLe:             {"LE", 0},
	OpLeq:            {"LEQ", 0},
	OpEq:             {"EQ", 0},
	OpNeq:            {"NEQ", 0},
	OpMinus:          {"MINUS", 0},
	OpBang:           {"BANG", 0},
	OpJump:           {"JUMP", 1},
	OpJumpNotTruthy:  {"JUMP_NOT_TRUTHY", 1},
	OpArray:          {"ARRAY", 1},
	OpHashMap:        {"HASH_MAP", 1},
	OpIndexGet:       {"INDEX_GET", 0},
	OpIndexSet:       {"INDEX_SET", 0},
	OpUnpackArray:    {"UNPACK_ARRAY", 1},
	OpStoreGlobal:    {"STORE_GLOBAL", 1},
	OpLoadGlobal:     {"LOAD_GLOBAL", 1},
	OpStoreLocal:     {"STORE_LOCAL", 1},
	OpLoadLocal:      {"LOAD_LOCAL", 1},
	OpLoadFree:       {"LOAD_FREE", 1},
	OpCreateClosure:  {"CREATE_CLOSURE", 2},
	OpCurrentClosure: {"CURRENT_CLOSURE", 0},
	OpBuiltin:        {"BUILTIN", 1},
	OpFnCall:         {"FN_CALL", 1},
	OpReturn:         {"RETURN", 0},
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	if info, ok := opcodeInfos[op]; ok {
		return info.name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(op))
}

// Operands returns how many of the operand fields the opcode uses.
func (op Opcode) Operands() int {
	return opcodeInfos[op].operands
}

// Instruction is one decoded VM instruction. A and B are the operands;
// their meaning depends on the opcode.
type Instruction struct {
	Op Opcode
	A  int
	B  int
}

// String renders the instruction in disassembly form.
func (ins Instruction) String() string {
	switch ins.Op.Operands() {
	case 2:
		return fmt.Sprintf("%s %d %d", ins.Op, ins.A, ins.B)
	case 1:
		return fmt.Sprintf("%s %d", ins.Op, ins.A)
	default:
		return ins.Op.String()
	}
}
