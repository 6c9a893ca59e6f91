package bytecode

import (
	"github.com/chazu/aoc/compiler"
	"github.com/chazu/aoc/pkg/object"
)

// Function is one compiled function body. Ranges runs parallel to
// Instructions and maps every instruction back to the source that
// produced it.
type Function struct {
	Instructions []Instruction
	Ranges       []compiler.Range

	// NumLocals counts the frame's local slots, arguments included.
	NumLocals    int
	NumArguments int
}

// Bytecode is a complete compiled program. Nested function literals are
// appended before their enclosing function, so the entry function is
// always compiled last.
type Bytecode struct {
	Constants []object.Object
	Functions []Function

	// MainFunction indexes the entry function in Functions.
	MainFunction int
}

// Main returns the entry function.
func (b *Bytecode) Main() *Function {
	return &b.Functions[b.MainFunction]
}
