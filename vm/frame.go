package vm

import "github.com/chazu/aoc/pkg/object"

// frame is a single call frame on the VM's frame stack. It tracks which
// closure is executing, the index of the next instruction to run inside
// that closure's function, and where the frame's locals begin on the
// value stack.
type frame struct {
	closure     *object.Closure
	ip          int // index of the next instruction to execute
	basePointer int // stack offset of the frame's first local slot
}
