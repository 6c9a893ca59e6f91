package object

// Builtin identifies one of the built-in functions. Builtins are resolved
// by the compiler when an identifier is not defined in any scope, so user
// definitions shadow them.
type Builtin uint8

const (
	BuiltinLen Builtin = iota
	BuiltinStr
	BuiltinInt
	BuiltinChar
	BuiltinFloat
	BuiltinBool
	BuiltinIsNull
	BuiltinFloor
	BuiltinCeil
	BuiltinRound
	BuiltinTrimStart
	BuiltinTrimEnd
	BuiltinTrim
	BuiltinSplit
	BuiltinPush
	BuiltinPop
	BuiltinDel
	BuiltinPrint
	BuiltinInput
)

// VariadicArity marks builtins that accept any number of arguments.
const VariadicArity = -1

// BuiltinInfo describes one builtin for the editor layer and for arity
// validation in the VM.
type BuiltinInfo struct {
	Name      string
	Signature string
	Arity     int
	Doc       string
}

var builtinInfos = [...]BuiltinInfo{
	BuiltinLen: {
		Name:      "len",
		Signature: "len(value)",
		Arity:     1,
		Doc:       "Returns the number of bytes in a string, or the number of elements in an array or dictionary.",
	},
	BuiltinStr: {
		Name:      "str",
		Signature: "str(value)",
		Arity:     1,
		Doc:       "Converts a scalar value to its string representation. Floats render in decimal notation without trailing zeros and null renders as `null`.",
	},
	BuiltinInt: {
		Name:      "int",
		Signature: "int(value)",
		Arity:     1,
		Doc:       "Converts a value to an integer. Floats truncate toward zero, chars convert to their byte value, booleans to 0 or 1. A string that does not parse as a decimal integer yields null.",
	},
	BuiltinChar: {
		Name:      "char",
		Signature: "char(value)",
		Arity:     1,
		Doc:       "Converts an integer to a char, wrapping modulo 256. Chars pass through unchanged.",
	},
	BuiltinFloat: {
		Name:      "float",
		Signature: "float(value)",
		Arity:     1,
		Doc:       "Converts a value to a float. Accepts integers, chars and booleans. A string that does not parse as a decimal number yields null.",
	},
	BuiltinBool: {
		Name:      "bool",
		Signature: "bool(value)",
		Arity:     1,
		Doc:       "Converts a value to its truthiness: false and null are false, everything else is true.",
	},
	BuiltinIsNull: {
		Name:      "is_null",
		Signature: "is_null(value)",
		Arity:     1,
		Doc:       "Reports whether the value is null.",
	},
	BuiltinFloor: {
		Name:      "floor",
		Signature: "floor(value)",
		Arity:     1,
		Doc:       "Rounds a float down to the nearest whole number.",
	},
	BuiltinCeil: {
		Name:      "ceil",
		Signature: "ceil(value)",
		Arity:     1,
		Doc:       "Rounds a float up to the nearest whole number.",
	},
	BuiltinRound: {
		Name:      "round",
		Signature: "round(value)",
		Arity:     1,
		Doc:       "Rounds a float to the nearest whole number, halves away from zero.",
	},
	BuiltinTrimStart: {
		Name:      "trim_start",
		Signature: "trim_start(str)",
		Arity:     1,
		Doc:       "Removes leading whitespace from a string.",
	},
	BuiltinTrimEnd: {
		Name:      "trim_end",
		Signature: "trim_end(str)",
		Arity:     1,
		Doc:       "Removes trailing whitespace from a string.",
	},
	BuiltinTrim: {
		Name:      "trim",
		Signature: "trim(str)",
		Arity:     1,
		Doc:       "Removes leading and trailing whitespace from a string.",
	},
	BuiltinSplit: {
		Name:      "split",
		Signature: "split(str, delim)",
		Arity:     2,
		Doc:       "Splits a string around a delimiter into an array of strings. An empty delimiter splits into single-byte strings.",
	},
	BuiltinPush: {
		Name:      "push",
		Signature: "push(arr, value)",
		Arity:     2,
		Doc:       "Appends a value to an array and returns the array.",
	},
	BuiltinPop: {
		Name:      "pop",
		Signature: "pop(arr)",
		Arity:     1,
		Doc:       "Removes and returns the last element of an array, or null when the array is empty.",
	},
	BuiltinDel: {
		Name:      "del",
		Signature: "del(dict, key)",
		Arity:     2,
		Doc:       "Removes a key from a dictionary and returns the removed value, or null when the key is absent.",
	},
	BuiltinPrint: {
		Name:      "print",
		Signature: "print(...values)",
		Arity:     VariadicArity,
		Doc:       "Prints values separated by spaces, followed by a newline. Returns null.",
	},
	BuiltinInput: {
		Name:      "input",
		Signature: "input()",
		Arity:     0,
		Doc:       "Reads one line from standard input, without the trailing newline. Returns null at end of input.",
	},
}

var builtinIdents = func() map[string]Builtin {
	idents := make(map[string]Builtin, len(builtinInfos))
	for id, info := range builtinInfos {
		idents[info.Name] = Builtin(id)
	}
	return idents
}()

// BuiltinFromIdent resolves an identifier to a builtin id.
func BuiltinFromIdent(ident string) (Builtin, bool) {
	b, ok := builtinIdents[ident]
	return b, ok
}

// Object returns b as a first-class runtime value.
func (b Builtin) Object() Object { return Object{Type: TypeBuiltin, Builtin: b} }

func (b Builtin) Name() string { return builtinInfos[b].Name }

// Arity returns the number of arguments b requires, or VariadicArity.
func (b Builtin) Arity() int { return builtinInfos[b].Arity }

func (b Builtin) Info() BuiltinInfo { return builtinInfos[b] }

// Documentation returns the markdown shown by editor hovers and completions.
func (b Builtin) Documentation() string {
	info := builtinInfos[b]
	return "```aoc\n" + info.Signature + "\n```\n\n" + info.Doc
}

// Builtins lists every builtin in id order.
func Builtins() []BuiltinInfo {
	return builtinInfos[:]
}
