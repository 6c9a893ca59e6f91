package object

import (
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// Data types
// ---------------------------------------------------------------------------

// DataType identifies the runtime type of an Object.
type DataType uint8

const (
	TypeNull DataType = iota
	TypeInteger
	TypeFloat
	TypeBoolean
	TypeChar
	TypeString
	TypeArray
	TypeDictionary
	TypeClosure
	TypeBuiltin
)

var dataTypeNames = map[DataType]string{
	TypeNull:       "NULL",
	TypeInteger:    "INTEGER",
	TypeFloat:      "FLOAT",
	TypeBoolean:    "BOOLEAN",
	TypeChar:       "CHAR",
	TypeString:     "STRING",
	TypeArray:      "ARRAY",
	TypeDictionary: "DICTIONARY",
	TypeClosure:    "CLOSURE",
	TypeBuiltin:    "BUILTIN",
}

func (dt DataType) String() string {
	if name, ok := dataTypeNames[dt]; ok {
		return name
	}
	return fmt.Sprintf("DataType(%d)", uint8(dt))
}

// ---------------------------------------------------------------------------
// Objects
// ---------------------------------------------------------------------------

// Handle identifies a collector-owned allocation. Handles are non-owning:
// the collector's owner table resolves them to live values, and a handle
// whose entry has been dropped is dead.
type Handle uint64

// Closure pairs a compiled function with the free variables captured when
// the closure was created. Function indexes the Functions list of the
// bytecode being executed.
type Closure struct {
	Function int
	Free     []Object
}

// Object is a single runtime value. Scalar kinds carry their payload
// inline; arrays and dictionaries carry a collector handle.
type Object struct {
	Type DataType

	Int     int64
	Float   float64
	Bool    bool
	Char    byte
	Str     string
	Handle  Handle
	Closure *Closure
	Builtin Builtin
}

// Null is the null value. The zero Object is also null.
var Null = Object{Type: TypeNull}

func Integer(v int64) Object { return Object{Type: TypeInteger, Int: v} }

func Float(v float64) Object { return Object{Type: TypeFloat, Float: v} }

func Boolean(v bool) Object { return Object{Type: TypeBoolean, Bool: v} }

func Char(c byte) Object { return Object{Type: TypeChar, Char: c} }

func String(s string) Object { return Object{Type: TypeString, Str: s} }

func Array(h Handle) Object { return Object{Type: TypeArray, Handle: h} }

func Dictionary(h Handle) Object { return Object{Type: TypeDictionary, Handle: h} }

// Object returns c as a runtime value.
func (c *Closure) Object() Object { return Object{Type: TypeClosure, Closure: c} }

// IsTruthy reports how o behaves in conditions: false and null are falsy,
// everything else is truthy.
func (o Object) IsTruthy() bool {
	switch o.Type {
	case TypeNull:
		return false
	case TypeBoolean:
		return o.Bool
	default:
		return true
	}
}

// String renders scalar values exactly as the str builtin does. Heap values
// render as opaque references; rendering their contents requires the owner
// table and is done by the VM.
func (o Object) String() string {
	switch o.Type {
	case TypeNull:
		return "null"
	case TypeInteger:
		return strconv.FormatInt(o.Int, 10)
	case TypeFloat:
		return strconv.FormatFloat(o.Float, 'f', -1, 64)
	case TypeBoolean:
		return strconv.FormatBool(o.Bool)
	case TypeChar:
		return string([]byte{o.Char})
	case TypeString:
		return o.Str
	case TypeArray:
		return fmt.Sprintf("<array %d>", o.Handle)
	case TypeDictionary:
		return fmt.Sprintf("<dictionary %d>", o.Handle)
	case TypeClosure:
		return "<fn>"
	case TypeBuiltin:
		return fmt.Sprintf("<builtin %s>", o.Builtin.Name())
	}
	return fmt.Sprintf("<%s>", o.Type)
}

// ---------------------------------------------------------------------------
// Hash keys
// ---------------------------------------------------------------------------

// HashKey is the subset of values usable as dictionary keys: integers,
// booleans and strings.
type HashKey struct {
	Type DataType
	Int  int64
	Bool bool
	Str  string
}

// HashKey converts o to a dictionary key. The second result is false when
// o's type is not hashable.
func (o Object) HashKey() (HashKey, bool) {
	switch o.Type {
	case TypeInteger:
		return HashKey{Type: TypeInteger, Int: o.Int}, true
	case TypeBoolean:
		return HashKey{Type: TypeBoolean, Bool: o.Bool}, true
	case TypeString:
		return HashKey{Type: TypeString, Str: o.Str}, true
	default:
		return HashKey{}, false
	}
}

// Object returns the value the key was built from.
func (k HashKey) Object() Object {
	switch k.Type {
	case TypeBoolean:
		return Boolean(k.Bool)
	case TypeString:
		return String(k.Str)
	default:
		return Integer(k.Int)
	}
}
