package bytecode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/aoc/pkg/object"
)

// Disassemble returns a human readable listing of the whole program: the
// constant pool followed by every function, entry function last.
func (b *Bytecode) Disassemble() string {
	var sb strings.Builder

	if len(b.Constants) > 0 {
		sb.WriteString("; Constants:\n")
		for i, constant := range b.Constants {
			sb.WriteString(fmt.Sprintf(";   [%3d] %s\n", i, displayConstant(constant)))
		}
		sb.WriteString("\n")
	}

	for i := range b.Functions {
		b.disassembleFunction(&sb, i)
		if i < len(b.Functions)-1 {
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// DisassembleFunction returns the listing of a single function.
func (b *Bytecode) DisassembleFunction(index int) string {
	var sb strings.Builder
	b.disassembleFunction(&sb, index)
	return sb.String()
}

func (b *Bytecode) disassembleFunction(sb *strings.Builder, index int) {
	fn := &b.Functions[index]

	if index == b.MainFunction {
		sb.WriteString(fmt.Sprintf("; === function %d (main) ===\n", index))
	} else {
		sb.WriteString(fmt.Sprintf("; === function %d ===\n", index))
	}
	sb.WriteString(fmt.Sprintf("; Arguments: %d, locals: %d\n", fn.NumArguments, fn.NumLocals))

	for ip, ins := range fn.Instructions {
		line := b.annotate(ins)
		if ip < len(fn.Ranges) {
			sb.WriteString(fmt.Sprintf("%4d  %-24s ; %s\n", ip, line, fn.Ranges[ip]))
		} else {
			sb.WriteString(fmt.Sprintf("%4d  %s\n", ip, line))
		}
	}
}

// annotate renders one instruction, inlining the referenced constant or
// builtin name where the operand alone says little.
func (b *Bytecode) annotate(ins Instruction) string {
	switch ins.Op {
	case OpConstant:
		if ins.A >= 0 && ins.A < len(b.Constants) {
			return fmt.Sprintf("%s ; %s", ins, displayConstant(b.Constants[ins.A]))
		}
	case OpBuiltin:
		if ins.A >= 0 && ins.A < len(object.Builtins()) {
			return fmt.Sprintf("%s ; %s", ins, object.Builtin(ins.A).Name())
		}
	}

	return ins.String()
}

func displayConstant(constant object.Object) string {
	switch constant.Type {
	case object.TypeString:
		display := constant.Str
		if len(display) > 40 {
			display = display[:37] + "..."
		}
		return strconv.Quote(display)
	case object.TypeChar:
		return fmt.Sprintf("%q", rune(constant.Char))
	default:
		return constant.String()
	}
}
