// Package bytecode compiles parsed aoc programs into flat bytecode for the
// stack-based virtual machine in the vm package.
//
// The instruction format favors simplicity over compactness:
//   - Every instruction is an Opcode plus up to two integer operands
//   - Jump targets are absolute instruction indexes, not byte offsets
//   - Each instruction carries the source range it was compiled from, kept
//     in a parallel slice, so runtime errors can point back at source code
//
// # Program layout
//
// A compiled program is a Bytecode value: one shared constant pool, one
// function per function literal, and an entry function holding the top
// level statements. Function literals are appended as their bodies finish
// compiling, so nested literals precede their enclosing ones and the entry
// function always comes last.
//
// # Scopes and closures
//
// Names resolve through a scope stack with one scope per function literal;
// blocks do not open scopes. Assignment defines a name in the current scope
// when it is not already bound there, which means an inner function writing
// to an outer name shadows it with a local. References that cross function
// boundaries are captured: the enclosing function loads the captured values
// right before CreateClosure packs them into the closure.
//
// # Imports
//
// A `use "path"` expression compiles the imported file into the same
// constant and function pools as a zero argument function and calls it in
// place, so the expression evaluates to the file's last value. Top level
// names of the imported file become locals of that function and stay
// invisible to the importing program.
//
// # Serialization
//
// Bytecode serializes to the "AOCB" container: four magic bytes, a format
// version byte and the canonical CBOR encoding of the Bytecode value. The
// aoc CLI uses it for .aocb files.
package bytecode
