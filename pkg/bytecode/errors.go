package bytecode

import (
	"fmt"

	"github.com/chazu/aoc/compiler"
	"github.com/chazu/aoc/pkg/object"
)

// ---------------------------------------------------------------------------
// Compile and runtime errors
// ---------------------------------------------------------------------------

// ErrorKind enumerates every failure the compiler back end and the VM can
// produce.
type ErrorKind int

const (
	// Compiler errors
	ErrUndefinedSymbol ErrorKind = iota
	ErrControlFlowOutsideOfLoop
	ErrReturnOutsideOfFunction
	ErrInvalidImportPath
	ErrImportParserError
	ErrImportCompilerError

	// Runtime errors
	ErrStackOverflow
	ErrNotHashable
	ErrNotIndexable
	ErrNotUnpackable
	ErrNotCallable
	ErrInvalidNegateOperand
	ErrInvalidOperands
	ErrUnpackLengthMismatch
	ErrUnpackTooLarge
	ErrIndexOutOfBounds
	ErrInvalidIndexType
	ErrDivisionByZero
	ErrInvalidNrOfArgs
	ErrInvalidBuiltinArg
)

// Error is a compile-time or runtime failure. Range covers the source of
// the failing node or instruction; only the payload fields relevant to
// Kind are set.
type Error struct {
	Kind  ErrorKind
	Range compiler.Range

	Symbol   string          // ErrUndefinedSymbol
	Path     string          // import errors
	Err      error           // ErrImportParserError, ErrImportCompilerError
	DataType object.DataType // type errors
	Operator string          // ErrInvalidOperands
	Left     object.DataType // ErrInvalidOperands
	Right    object.DataType // ErrInvalidOperands
	Builtin  object.Builtin  // ErrInvalidBuiltinArg
	Expected int             // ErrUnpackLengthMismatch, ErrInvalidNrOfArgs
	Got      int             // length and arity mismatches
	Max      int             // ErrUnpackTooLarge
	Index    int64           // ErrIndexOutOfBounds
	Length   int             // ErrIndexOutOfBounds
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrUndefinedSymbol:
		return fmt.Sprintf("Symbol %s is not defined", e.Symbol)
	case ErrControlFlowOutsideOfLoop:
		return "Can not break or continue outside of a loop"
	case ErrReturnOutsideOfFunction:
		return "Can not return outside of a function"
	case ErrInvalidImportPath:
		return fmt.Sprintf("Invalid import path: %s", e.Path)
	case ErrImportParserError:
		return fmt.Sprintf("Parser error in imported file %s: %s", e.Path, e.Err)
	case ErrImportCompilerError:
		return fmt.Sprintf("Compiler error in imported file %s: %s", e.Path, e.Err)
	case ErrStackOverflow:
		return "Stack overflow"
	case ErrNotHashable:
		return fmt.Sprintf("Data type %s can't be hashed", e.DataType)
	case ErrNotIndexable:
		return fmt.Sprintf("Data type %s can't be indexed", e.DataType)
	case ErrNotUnpackable:
		return fmt.Sprintf("Data type %s can't be unpacked", e.DataType)
	case ErrNotCallable:
		return fmt.Sprintf("Data type %s can't be called", e.DataType)
	case ErrInvalidNegateOperand:
		return fmt.Sprintf("Can not negate %s", e.DataType)
	case ErrInvalidOperands:
		return fmt.Sprintf("Can not use operator %s on %s and %s", e.Operator, e.Left, e.Right)
	case ErrUnpackLengthMismatch:
		return fmt.Sprintf("Invalid number of elements to unpack. Expected: %d, got: %d", e.Expected, e.Got)
	case ErrUnpackTooLarge:
		return fmt.Sprintf("Too many elements to unpack. Max allowed: %d, got: %d", e.Max, e.Got)
	case ErrIndexOutOfBounds:
		return fmt.Sprintf("Index %d is out of bounds, length is %d", e.Index, e.Length)
	case ErrInvalidIndexType:
		return fmt.Sprintf("Invalid index type: %s", e.DataType)
	case ErrDivisionByZero:
		return "Division by zero"
	case ErrInvalidNrOfArgs:
		return fmt.Sprintf("Invalid number of arguments. Expected: %d, got: %d", e.Expected, e.Got)
	case ErrInvalidBuiltinArg:
		return fmt.Sprintf("Invalid argument for builtin %s: %s", e.Builtin.Name(), e.DataType)
	}
	return fmt.Sprintf("unknown error (%d)", int(e.Kind))
}

// Unwrap exposes the nested error of import failures.
func (e *Error) Unwrap() error {
	return e.Err
}
