package vm

import (
	"bufio"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/chazu/aoc/pkg/bytecode"
	"github.com/chazu/aoc/pkg/object"
)

// ---------------------------------------------------------------------------
// Builtin functions
// ---------------------------------------------------------------------------

// invokeBuiltin runs a builtin on the given argument slots. Arity has
// already been validated by callBuiltin.
func (vm *VM) invokeBuiltin(builtin object.Builtin, args []object.Object) (object.Object, *bytecode.Error) {
	switch builtin {
	case object.BuiltinLen:
		return vm.builtinLen(args[0])
	case object.BuiltinStr:
		return builtinStr(args[0])
	case object.BuiltinInt:
		return builtinInt(args[0])
	case object.BuiltinChar:
		return builtinChar(args[0])
	case object.BuiltinFloat:
		return builtinFloat(args[0])
	case object.BuiltinBool:
		return object.Boolean(args[0].IsTruthy()), nil
	case object.BuiltinIsNull:
		return object.Boolean(args[0].Type == object.TypeNull), nil
	case object.BuiltinFloor:
		return builtinMath(object.BuiltinFloor, math.Floor, args[0])
	case object.BuiltinCeil:
		return builtinMath(object.BuiltinCeil, math.Ceil, args[0])
	case object.BuiltinRound:
		return builtinMath(object.BuiltinRound, math.Round, args[0])
	case object.BuiltinTrimStart:
		return builtinString(object.BuiltinTrimStart, trimStart, args[0])
	case object.BuiltinTrimEnd:
		return builtinString(object.BuiltinTrimEnd, trimEnd, args[0])
	case object.BuiltinTrim:
		return builtinString(object.BuiltinTrim, strings.TrimSpace, args[0])
	case object.BuiltinSplit:
		return vm.builtinSplit(args[0], args[1])
	case object.BuiltinPush:
		return vm.builtinPush(args[0], args[1])
	case object.BuiltinPop:
		return vm.builtinPop(args[0])
	case object.BuiltinDel:
		return vm.builtinDel(args[0], args[1])
	case object.BuiltinPrint:
		return vm.builtinPrint(args)
	case object.BuiltinInput:
		return vm.builtinInput()
	}
	panic(fmt.Sprintf("unknown builtin %d", builtin))
}

func invalidArg(builtin object.Builtin, dt object.DataType) *bytecode.Error {
	return &bytecode.Error{Kind: bytecode.ErrInvalidBuiltinArg, Builtin: builtin, DataType: dt}
}

// builtinLen counts string bytes, array elements or dictionary entries.
func (vm *VM) builtinLen(arg object.Object) (object.Object, *bytecode.Error) {
	switch arg.Type {
	case object.TypeString:
		return object.Integer(int64(len(arg.Str))), nil
	case object.TypeArray:
		return object.Integer(int64(len(*vm.gc.array(arg.Handle)))), nil
	case object.TypeDictionary:
		return object.Integer(int64(len(vm.gc.dictionary(arg.Handle)))), nil
	}
	return object.Null, invalidArg(object.BuiltinLen, arg.Type)
}

func builtinStr(arg object.Object) (object.Object, *bytecode.Error) {
	switch arg.Type {
	case object.TypeNull, object.TypeInteger, object.TypeFloat,
		object.TypeBoolean, object.TypeChar, object.TypeString:
		return object.String(arg.String()), nil
	}
	return object.Null, invalidArg(object.BuiltinStr, arg.Type)
}

// builtinInt converts to an integer. Strings parse as decimal; parse
// failures yield null instead of an error.
func builtinInt(arg object.Object) (object.Object, *bytecode.Error) {
	switch arg.Type {
	case object.TypeInteger:
		return arg, nil
	case object.TypeFloat:
		return object.Integer(int64(arg.Float)), nil
	case object.TypeChar:
		return object.Integer(int64(arg.Char)), nil
	case object.TypeBoolean:
		if arg.Bool {
			return object.Integer(1), nil
		}
		return object.Integer(0), nil
	case object.TypeString:
		v, err := strconv.ParseInt(arg.Str, 10, 64)
		if err != nil {
			return object.Null, nil
		}
		return object.Integer(v), nil
	}
	return object.Null, invalidArg(object.BuiltinInt, arg.Type)
}

// builtinFloat converts to a float. Parse failures yield null, like
// builtinInt.
func builtinFloat(arg object.Object) (object.Object, *bytecode.Error) {
	switch arg.Type {
	case object.TypeFloat:
		return arg, nil
	case object.TypeInteger:
		return object.Float(float64(arg.Int)), nil
	case object.TypeChar:
		return object.Float(float64(arg.Char)), nil
	case object.TypeBoolean:
		if arg.Bool {
			return object.Float(1), nil
		}
		return object.Float(0), nil
	case object.TypeString:
		v, err := strconv.ParseFloat(arg.Str, 64)
		if err != nil {
			return object.Null, nil
		}
		return object.Float(v), nil
	}
	return object.Null, invalidArg(object.BuiltinFloat, arg.Type)
}

// builtinChar accepts chars and integers, wrapping integers modulo 256.
func builtinChar(arg object.Object) (object.Object, *bytecode.Error) {
	switch arg.Type {
	case object.TypeChar:
		return arg, nil
	case object.TypeInteger:
		return object.Char(byte(arg.Int)), nil
	}
	return object.Null, invalidArg(object.BuiltinChar, arg.Type)
}

func builtinMath(builtin object.Builtin, fn func(float64) float64, arg object.Object) (object.Object, *bytecode.Error) {
	if arg.Type != object.TypeFloat {
		return object.Null, invalidArg(builtin, arg.Type)
	}
	return object.Float(fn(arg.Float)), nil
}

func builtinString(builtin object.Builtin, fn func(string) string, arg object.Object) (object.Object, *bytecode.Error) {
	if arg.Type != object.TypeString {
		return object.Null, invalidArg(builtin, arg.Type)
	}
	return object.String(fn(arg.Str)), nil
}

func trimStart(s string) string { return strings.TrimLeftFunc(s, unicode.IsSpace) }

func trimEnd(s string) string { return strings.TrimRightFunc(s, unicode.IsSpace) }

// builtinSplit splits on the separator. An empty separator splits into
// single-byte strings, not runes.
func (vm *VM) builtinSplit(str, sep object.Object) (object.Object, *bytecode.Error) {
	if str.Type != object.TypeString {
		return object.Null, invalidArg(object.BuiltinSplit, str.Type)
	}
	if sep.Type != object.TypeString {
		return object.Null, invalidArg(object.BuiltinSplit, sep.Type)
	}

	var parts []string
	if sep.Str == "" {
		parts = make([]string, len(str.Str))
		for i := 0; i < len(str.Str); i++ {
			parts[i] = str.Str[i : i+1]
		}
	} else {
		parts = strings.Split(str.Str, sep.Str)
	}

	elements := make([]object.Object, len(parts))
	for i, part := range parts {
		elements[i] = object.String(part)
	}
	return vm.gc.allocateArray(elements), nil
}

// builtinPush appends in place and returns the same array.
func (vm *VM) builtinPush(arr, value object.Object) (object.Object, *bytecode.Error) {
	if arr.Type != object.TypeArray {
		return object.Null, invalidArg(object.BuiltinPush, arr.Type)
	}
	elements := vm.gc.array(arr.Handle)
	*elements = append(*elements, value)
	return arr, nil
}

// builtinPop removes and returns the last element, or null when empty.
func (vm *VM) builtinPop(arr object.Object) (object.Object, *bytecode.Error) {
	if arr.Type != object.TypeArray {
		return object.Null, invalidArg(object.BuiltinPop, arr.Type)
	}
	elements := vm.gc.array(arr.Handle)
	if len(*elements) == 0 {
		return object.Null, nil
	}
	last := (*elements)[len(*elements)-1]
	*elements = (*elements)[:len(*elements)-1]
	return last, nil
}

// builtinDel removes the key from the dictionary and returns the removed
// value, or null when the key was absent.
func (vm *VM) builtinDel(dict, key object.Object) (object.Object, *bytecode.Error) {
	if dict.Type != object.TypeDictionary {
		return object.Null, invalidArg(object.BuiltinDel, dict.Type)
	}
	hashKey, ok := key.HashKey()
	if !ok {
		return object.Null, &bytecode.Error{Kind: bytecode.ErrNotHashable, DataType: key.Type}
	}

	pairs := vm.gc.dictionary(dict.Handle)
	value, found := pairs[hashKey]
	if !found {
		return object.Null, nil
	}
	delete(pairs, hashKey)
	return value, nil
}

// builtinPrint writes its arguments space separated followed by a newline
// and returns null.
func (vm *VM) builtinPrint(args []object.Object) (object.Object, *bytecode.Error) {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = vm.render(arg, make(map[object.Handle]bool))
	}
	fmt.Fprintln(vm.Stdout, strings.Join(parts, " "))
	return object.Null, nil
}

// render expands arrays and dictionaries for display. Dictionary entries
// are sorted so output is stable; seen tracks the handles on the current
// path so cyclic values fall back to their opaque form.
func (vm *VM) render(obj object.Object, seen map[object.Handle]bool) string {
	switch obj.Type {
	case object.TypeArray:
		if seen[obj.Handle] {
			return obj.String()
		}
		seen[obj.Handle] = true
		elements := *vm.gc.array(obj.Handle)
		parts := make([]string, len(elements))
		for i, element := range elements {
			parts[i] = vm.render(element, seen)
		}
		delete(seen, obj.Handle)
		return "[" + strings.Join(parts, ", ") + "]"

	case object.TypeDictionary:
		if seen[obj.Handle] {
			return obj.String()
		}
		seen[obj.Handle] = true
		pairs := vm.gc.dictionary(obj.Handle)
		parts := make([]string, 0, len(pairs))
		for key, value := range pairs {
			parts = append(parts, vm.render(key.Object(), seen)+": "+vm.render(value, seen))
		}
		sort.Strings(parts)
		delete(seen, obj.Handle)
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return obj.String()
}

// builtinInput reads one line from Stdin without the trailing newline.
// End of input yields null.
func (vm *VM) builtinInput() (object.Object, *bytecode.Error) {
	if vm.in == nil {
		vm.in = bufio.NewReader(vm.Stdin)
	}

	line, err := vm.in.ReadString('\n')
	if err != nil && line == "" {
		return object.Null, nil
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return object.String(line), nil
}
