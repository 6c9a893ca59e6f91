package vm

import (
	"bytes"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/chazu/aoc/compiler"
	"github.com/chazu/aoc/pkg/bytecode"
	"github.com/chazu/aoc/pkg/object"
)

func compileSource(t *testing.T, input string) *bytecode.Bytecode {
	t.Helper()

	program, err := compiler.Parse(input)
	if err != nil {
		t.Fatalf("parse error in %q: %v", input, err)
	}
	code, err := bytecode.Compile(program)
	if err != nil {
		t.Fatalf("compile error in %q: %v", input, err)
	}
	return code
}

func runSource(t *testing.T, input string) (*VM, object.Object) {
	t.Helper()

	vm := New()
	result, err := vm.Run(compileSource(t, input))
	if err != nil {
		t.Fatalf("runtime error in %q: %v", input, err)
	}
	return vm, result
}

func runError(t *testing.T, input string) *bytecode.Error {
	t.Helper()

	_, err := New().Run(compileSource(t, input))
	if err == nil {
		t.Fatalf("run(%q) succeeded, want error", input)
	}
	var runtimeErr *bytecode.Error
	if !errors.As(err, &runtimeErr) {
		t.Fatalf("run(%q) returned %T, want *bytecode.Error", input, err)
	}
	return runtimeErr
}

// materialize resolves handles so heap values can be compared structurally.
func materialize(vm *VM, obj object.Object) any {
	switch obj.Type {
	case object.TypeArray:
		elements := *vm.gc.array(obj.Handle)
		out := make([]any, len(elements))
		for i, element := range elements {
			out[i] = materialize(vm, element)
		}
		return out
	case object.TypeDictionary:
		pairs := vm.gc.dictionary(obj.Handle)
		out := make(map[object.HashKey]any, len(pairs))
		for key, value := range pairs {
			out[key] = materialize(vm, value)
		}
		return out
	}
	return obj
}

func key(obj object.Object) object.HashKey {
	k, _ := obj.HashKey()
	return k
}

func TestRunConstants(t *testing.T) {
	tests := []struct {
		input string
		want  object.Object
	}{
		{"10", object.Integer(10)},
		{"6.9", object.Float(6.9)},
		{`"foo"`, object.String("foo")},
		{"true", object.Boolean(true)},
		{"'Y'", object.Char('Y')},
	}

	for _, tt := range tests {
		_, got := runSource(t, tt.input)
		if got != tt.want {
			t.Errorf("run(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRunArrays(t *testing.T) {
	tests := []struct {
		input string
		want  []any
	}{
		{"[]", []any{}},
		{"[1]", []any{object.Integer(1)}},
		{`[1, "foo"]`, []any{object.Integer(1), object.String("foo")}},
		{
			"[1, [2, 3], 4]",
			[]any{
				object.Integer(1),
				[]any{object.Integer(2), object.Integer(3)},
				object.Integer(4),
			},
		},
	}

	for _, tt := range tests {
		vm, result := runSource(t, tt.input)
		if result.Type != object.TypeArray {
			t.Errorf("run(%q) type = %s, want ARRAY", tt.input, result.Type)
			continue
		}
		if got := materialize(vm, result); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("run(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRunHashMaps(t *testing.T) {
	tests := []struct {
		input string
		want  map[object.HashKey]any
	}{
		{"{}", map[object.HashKey]any{}},
		{
			`{"foo": 1}`,
			map[object.HashKey]any{
				key(object.String("foo")): object.Integer(1),
			},
		},
		{
			"{1: 2, 2: {3: 4}}",
			map[object.HashKey]any{
				key(object.Integer(1)): object.Integer(2),
				key(object.Integer(2)): map[object.HashKey]any{
					key(object.Integer(3)): object.Integer(4),
				},
			},
		},
	}

	for _, tt := range tests {
		vm, result := runSource(t, tt.input)
		if result.Type != object.TypeDictionary {
			t.Errorf("run(%q) type = %s, want DICTIONARY", tt.input, result.Type)
			continue
		}
		if got := materialize(vm, result); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("run(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRunHashMapNotHashable(t *testing.T) {
	got := runError(t, "{1.9: true}")

	if got.Kind != bytecode.ErrNotHashable {
		t.Fatalf("Kind = %d, want ErrNotHashable", got.Kind)
	}
	if got.DataType != object.TypeFloat {
		t.Errorf("DataType = %s, want FLOAT", got.DataType)
	}
	want := compiler.Range{
		Start: compiler.Position{Line: 0, Character: 0},
		End:   compiler.Position{Line: 0, Character: 11},
	}
	if got.Range != want {
		t.Errorf("Range = %s, want %s", got.Range, want)
	}
}

func TestRunPrefixOperators(t *testing.T) {
	tests := []struct {
		input string
		want  object.Object
	}{
		{"-10", object.Integer(-10)},
		{"-4.2", object.Float(-4.2)},
		{"--10", object.Integer(10)},
		{"-(-10)", object.Integer(10)},
		{"!false", object.Boolean(true)},
		{"!!false", object.Boolean(false)},
		{"!42", object.Integer(-43)},
	}

	for _, tt := range tests {
		_, got := runSource(t, tt.input)
		if got != tt.want {
			t.Errorf("run(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRunWhileLoop(t *testing.T) {
	tests := []struct {
		input string
		want  object.Object
	}{
		{"while (false) {}\n 10", object.Integer(10)},
		{"i = 0\n while (i < 10) {i = i + 1}\n i", object.Integer(10)},
	}

	for _, tt := range tests {
		_, got := runSource(t, tt.input)
		if got != tt.want {
			t.Errorf("run(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRunAssign(t *testing.T) {
	tests := []struct {
		input string
		want  object.Object
	}{
		{"a = 10\n a", object.Integer(10)},
		{"[a, b] = [1, 2]\n a", object.Integer(1)},
		{"[a, b] = [1, 2]\n b", object.Integer(2)},
		{"[a, [b, c]] = [1, [2, 3]]\n a", object.Integer(1)},
		{"[a, [b, c]] = [1, [2, 3]]\n b", object.Integer(2)},
		{"[a, [b, c]] = [1, [2, 3]]\n c", object.Integer(3)},
	}

	for _, tt := range tests {
		_, got := runSource(t, tt.input)
		if got != tt.want {
			t.Errorf("run(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRunAssignArrayIndex(t *testing.T) {
	tests := []struct {
		input string
		want  []any
	}{
		{"a = [0]\n a[0] = 1\n a", []any{object.Integer(1)}},
		{
			"a = [0, 1]\n [a[0], a[1]] = [42, 69]\n a",
			[]any{object.Integer(42), object.Integer(69)},
		},
	}

	for _, tt := range tests {
		vm, result := runSource(t, tt.input)
		if got := materialize(vm, result); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("run(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRunAssignDictIndex(t *testing.T) {
	tests := []struct {
		input string
		want  map[object.HashKey]any
	}{
		{
			"a = {}\n a[0] = 1\n a",
			map[object.HashKey]any{
				key(object.Integer(0)): object.Integer(1),
			},
		},
		{
			"a = {}\n a.foo = 42\n a",
			map[object.HashKey]any{
				key(object.String("foo")): object.Integer(42),
			},
		},
		{
			"a = {}\n [a.foo, a[\"bar\"]] = [42, 69]\n a",
			map[object.HashKey]any{
				key(object.String("foo")): object.Integer(42),
				key(object.String("bar")): object.Integer(69),
			},
		},
	}

	for _, tt := range tests {
		vm, result := runSource(t, tt.input)
		if got := materialize(vm, result); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("run(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRunInfixOperators(t *testing.T) {
	tests := []struct {
		input string
		want  object.Object
	}{
		{"1 + 1", object.Integer(2)},
		{"1 + 2 * 3", object.Integer(7)},
		{"4.2 * 2.0", object.Float(8.4)},
		{"3 - 2 - 1", object.Integer(0)},
		{`"foo" + " " + "bar"`, object.String("foo bar")},
		{"3 % 2", object.Integer(1)},
		{"-3 % 2", object.Integer(1)},
		{"0 & 1", object.Integer(0)},
		{"1 | 1", object.Integer(1)},
		{"true & false", object.Boolean(false)},
		{"1 < 2 & 3 < 4 | 5 == 2", object.Boolean(true)},
		{`"abc" < "aab"`, object.Boolean(false)},
		{`"abc" == "abc"`, object.Boolean(true)},
		{"'a' == 'A'", object.Boolean(false)},
		{"'a' < 'A' == 'b' < 'B'", object.Boolean(true)},
		{"'b' >= 'A'", object.Boolean(true)},
		{`"foo"[0] == 'f'`, object.Boolean(true)},
		{"69 / 2", object.Integer(34)},
		{"1.0 / 0.0", object.Float(math.Inf(1))},
	}

	for _, tt := range tests {
		_, got := runSource(t, tt.input)
		if got != tt.want {
			t.Errorf("run(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRunArrayConcat(t *testing.T) {
	input := "a = [1]\n b = a + [2]\n push(b, 3)\n a"

	vm, result := runSource(t, input)
	want := []any{object.Integer(1)}
	if got := materialize(vm, result); !reflect.DeepEqual(got, want) {
		t.Errorf("concat mutated the left operand: %v, want %v", got, want)
	}
}

func TestRunIndex(t *testing.T) {
	tests := []struct {
		input string
		want  object.Object
	}{
		{"[1, 2, 3][0]", object.Integer(1)},
		{"[1, 2, 3][1]", object.Integer(2)},
		{"[][0]", object.Null},
		{"[][-10]", object.Null},
		{"foo = []\n foo[0]", object.Null},
		{`foo = ["bar"]` + "\n foo[0]", object.String("bar")},
		{"{true: false}[true]", object.Boolean(false)},
		{`{"foo": 10}.foo`, object.Integer(10)},
		{`{"foo": 10}["foo"]`, object.Integer(10)},
		{`foo = {"property": {"nested": 42}}` + "\n foo.property.nested", object.Integer(42)},
		{`"foo"[0]`, object.Char('f')},
		{`"foo"[-1]`, object.Null},
		{`"foo"[4]`, object.Null},
		{`"🚗"[1]`, object.Char(159)},
	}

	for _, tt := range tests {
		_, got := runSource(t, tt.input)
		if got != tt.want {
			t.Errorf("run(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRunForLoop(t *testing.T) {
	_, got := runSource(t, "for (i = 0; i < 42; i = i + 1) {}\n i")
	if want := object.Integer(42); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRunIfStatement(t *testing.T) {
	tests := []struct {
		input string
		want  object.Object
	}{
		{"if (1 < 2) {10}", object.Integer(10)},
		{"if (1 > 2) {10}", object.Null},
		{"if (true) {10} else {}", object.Integer(10)},
		{"if (false) {10} else {20}", object.Integer(20)},
		{"if (false) {10} else if (false) {20}", object.Null},
		{"if (false) {10} else if (false) {20} else {30}", object.Integer(30)},
		{
			"if (false) {10} else if (false) {20} else if (true) {30} else {40}",
			object.Integer(30),
		},
		{
			`
			if (1 * 2 * 3 - 5 == 1) {
				a = 10
				a = a * 6
				a + 9
			} else {
				42
			}
			`,
			object.Integer(69),
		},
	}

	for _, tt := range tests {
		_, got := runSource(t, tt.input)
		if got != tt.want {
			t.Errorf("run(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRunLoopBreak(t *testing.T) {
	tests := []struct {
		input string
		want  object.Object
	}{
		{"while (true) {foo = 0\n break}\n foo", object.Integer(0)},
		{"for (i = 0; i < 10; i = i + 1) {break}\n i", object.Integer(0)},
		{
			`
			for (i = 0; i < 100; i = i + 1) {
				if (i == 42) {
					break
				}
			}
			i
			`,
			object.Integer(42),
		},
	}

	for _, tt := range tests {
		_, got := runSource(t, tt.input)
		if got != tt.want {
			t.Errorf("run(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRunLoopContinue(t *testing.T) {
	tests := []struct {
		input string
		want  object.Object
	}{
		{
			`
			foo = 69
			i = 0
			while (i < 1) {
				i = i + 1
				continue
				foo = 50
			}
			foo
			`,
			object.Integer(69),
		},
		{
			`
			sum = 0
			for (i = 0; i < 10; i = i + 1) {
				if (i <= 1) {
					continue
				}

				sum = sum + i
			}
			sum
			`,
			object.Integer(44),
		},
	}

	for _, tt := range tests {
		_, got := runSource(t, tt.input)
		if got != tt.want {
			t.Errorf("run(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRunClosureLiteral(t *testing.T) {
	_, got := runSource(t, "fn(){}")

	if got.Type != object.TypeClosure {
		t.Fatalf("type = %s, want CLOSURE", got.Type)
	}
	if got.Closure.Function != 0 {
		t.Errorf("Function = %d, want 0", got.Closure.Function)
	}
	if len(got.Closure.Free) != 0 {
		t.Errorf("Free = %v, want empty", got.Closure.Free)
	}
}

func TestRunCallClosure(t *testing.T) {
	tests := []struct {
		input string
		want  object.Object
	}{
		{"fn(){1}()", object.Integer(1)},
		{"fn(){if (true) {return 2} else {3}}()", object.Integer(2)},
		{"fn(){if (false) {return 2} else {return 3}}()", object.Integer(3)},
		{"foo = fn(){69}\nfoo()", object.Integer(69)},
		{
			`
			foo = fn() {69}
			bar = fn() {foo() - foo()/2 + 7}

			bar()
			`,
			object.Integer(42),
		},
		{
			`
			global = 10
			fun = fn() {
				res = global + 1
				global = 5
				res = res + global
				res
			}

			fun()
			`,
			object.Integer(16),
		},
		{
			`
			global = 42
			fn() {global = 69}()
			global
			`,
			object.Integer(42),
		},
		{"fn(a){a * 2}(2)", object.Integer(4)},
		{
			`
			global = 10
			global = fn(a) {
				local = 10 + global
				global = 20
				a * local - global
			}(2) * global

			global
			`,
			object.Integer(200),
		},
		{
			`
			foo = fn(a) {
				fn(b) {
					fn (c) {
						a + b + c
					}
				}
			}
			a = foo(1)
			b = a(2)
			c = b(3)

			c
			`,
			object.Integer(6),
		},
	}

	for _, tt := range tests {
		_, got := runSource(t, tt.input)
		if got != tt.want {
			t.Errorf("run(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

// A captured dictionary handle is shared heap state, so one closure instance
// counts up across calls while a fresh instance starts over.
func TestRunClosureCounter(t *testing.T) {
	input := `
	make_counter = fn() {
		state = {"count": 0}
		fn() {
			state.count = state.count + 1
			state.count
		}
	}

	next = make_counter()
	other = make_counter()

	[next(), next(), next(), other()]
	`

	vm, result := runSource(t, input)
	if result.Type != object.TypeArray {
		t.Fatalf("type = %s, want ARRAY", result.Type)
	}

	want := []any{
		object.Integer(1),
		object.Integer(2),
		object.Integer(3),
		object.Integer(1),
	}
	if got := materialize(vm, result); !reflect.DeepEqual(got, want) {
		t.Errorf("counts = %v, want %v", got, want)
	}
}

func TestRunRecursion(t *testing.T) {
	tests := []struct {
		input string
		want  object.Object
	}{
		{
			`
			fib = fn(n) {
				if (n <= 2) {
					return 1
				} else {
					return fib(n-1) + fib(n-2)
				}
			}

			fib(5)
			`,
			object.Integer(5),
		},
		{
			`
			wrap = fn() {
				fib = fn(n) {
					if (n <= 2) {
						return 1
					} else {
						return fib(n-1) + fib(n-2)
					}
				}
				fib(5)
			}

			wrap()
			`,
			object.Integer(5),
		},
		{
			`
			outer = fn(do) {
				inner = fn() {
					outer(false)
				}

				if (do) {
					inner()
				} else {
					42
				}
			}
			outer(true)
			`,
			object.Integer(42),
		},
	}

	for _, tt := range tests {
		_, got := runSource(t, tt.input)
		if got != tt.want {
			t.Errorf("run(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRunBuiltins(t *testing.T) {
	tests := []struct {
		input string
		want  object.Object
	}{
		{`len("foo")`, object.Integer(3)},
		{"len([1])", object.Integer(1)},
		{`len({"foo": "bar", 2: false})`, object.Integer(2)},

		{"str(1)", object.String("1")},
		{"str(1.1234)", object.String("1.1234")},
		{"str(1.0000)", object.String("1")},
		{"str(true)", object.String("true")},
		{"str('a')", object.String("a")},
		{"str(null)", object.String("null")},

		{"int(1)", object.Integer(1)},
		{"int(4.2)", object.Integer(4)},
		{`int("420")`, object.Integer(420)},
		{`int("4.20")`, object.Null},
		{`int("0x10")`, object.Null},
		{"int('a')", object.Integer(97)},
		{"int(true)", object.Integer(1)},

		{"float(1)", object.Float(1.0)},
		{"float(4.2)", object.Float(4.2)},
		{`float("4.20")`, object.Float(4.2)},
		{`float("420")`, object.Float(420.0)},
		{`float("0x10")`, object.Null},
		{"float('a')", object.Float(97)},

		{"char('a')", object.Char('a')},
		{"char(97)", object.Char('a')},
		{"char(10000)", object.Char(16)},

		{"bool(0)", object.Boolean(true)},
		{`bool("false")`, object.Boolean(true)},
		{`bool(int(""))`, object.Boolean(false)},
		{"bool(null)", object.Boolean(false)},
		{"bool(false)", object.Boolean(false)},

		{"is_null(0)", object.Boolean(false)},
		{"is_null(false)", object.Boolean(false)},
		{`is_null(int("a"))`, object.Boolean(true)},
		{"is_null(null)", object.Boolean(true)},
	}

	for _, tt := range tests {
		_, got := runSource(t, tt.input)
		if got != tt.want {
			t.Errorf("run(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRunBuiltinLenError(t *testing.T) {
	got := runError(t, "len(10)")

	if got.Kind != bytecode.ErrInvalidBuiltinArg {
		t.Fatalf("Kind = %d, want ErrInvalidBuiltinArg", got.Kind)
	}
	if got.Builtin != object.BuiltinLen {
		t.Errorf("Builtin = %s, want len", got.Builtin.Name())
	}
	if got.DataType != object.TypeInteger {
		t.Errorf("DataType = %s, want INTEGER", got.DataType)
	}
	want := compiler.Range{
		Start: compiler.Position{Line: 0, Character: 0},
		End:   compiler.Position{Line: 0, Character: 7},
	}
	if got.Range != want {
		t.Errorf("Range = %s, want %s", got.Range, want)
	}
}

func TestRunBuiltinFloatMath(t *testing.T) {
	tests := []struct {
		input string
		want  object.Object
	}{
		{"floor(4.2)", object.Float(4.0)},
		{"floor(4.0)", object.Float(4.0)},
		{"ceil(4.2)", object.Float(5.0)},
		{"ceil(4.0)", object.Float(4.0)},
		{"round(4.2)", object.Float(4.0)},
		{"round(4.0)", object.Float(4.0)},
		{"round(4.5)", object.Float(5.0)},
	}

	for _, tt := range tests {
		_, got := runSource(t, tt.input)
		if got != tt.want {
			t.Errorf("run(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRunBuiltinTrim(t *testing.T) {
	tests := []struct {
		input string
		want  object.Object
	}{
		{`trim_start("hey")`, object.String("hey")},
		{"trim_start(\" \t  \nhey  \")", object.String("hey  ")},
		{"trim_end(\"  hey \n \")", object.String("  hey")},
		{"trim(\"  hey \n \")", object.String("hey")},
	}

	for _, tt := range tests {
		_, got := runSource(t, tt.input)
		if got != tt.want {
			t.Errorf("run(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRunBuiltinSplit(t *testing.T) {
	tests := []struct {
		input string
		want  []any
	}{
		{`split("hey", "a")`, []any{object.String("hey")}},
		{
			`split("hey", "")`,
			[]any{object.String("h"), object.String("e"), object.String("y")},
		},
		{
			`split("first second", " ")`,
			[]any{object.String("first"), object.String("second")},
		},
	}

	for _, tt := range tests {
		vm, result := runSource(t, tt.input)
		if got := materialize(vm, result); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("run(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRunBuiltinPush(t *testing.T) {
	tests := []struct {
		input string
		want  []any
	}{
		{"a = []\npush(a, 10)\n a", []any{object.Integer(10)}},
		{
			"a = [11, 12]\n push(a, 13)\n a",
			[]any{object.Integer(11), object.Integer(12), object.Integer(13)},
		},
	}

	for _, tt := range tests {
		vm, result := runSource(t, tt.input)
		if got := materialize(vm, result); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("run(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRunBuiltinPushReturnsSameArray(t *testing.T) {
	input := "a = []\n b = push(a, 1)\n push(b, 2)\n a"

	vm, result := runSource(t, input)
	want := []any{object.Integer(1), object.Integer(2)}
	if got := materialize(vm, result); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRunBuiltinPop(t *testing.T) {
	valueTests := []struct {
		input string
		want  object.Object
	}{
		{"pop([])", object.Null},
		{"pop([1,2,3])", object.Integer(3)},
	}

	for _, tt := range valueTests {
		_, got := runSource(t, tt.input)
		if got != tt.want {
			t.Errorf("run(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}

	arrayTests := []struct {
		input string
		want  []any
	}{
		{"a = []\npop(a)\na", []any{}},
		{"a = [1,2,3]\npop(a)\na", []any{object.Integer(1), object.Integer(2)}},
	}

	for _, tt := range arrayTests {
		vm, result := runSource(t, tt.input)
		if got := materialize(vm, result); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("run(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRunBuiltinDel(t *testing.T) {
	tests := []struct {
		input string
		want  object.Object
	}{
		{`del({}, "foo")`, object.Null},
		{`del({"foo": 42}, "foo")`, object.Integer(42)},
	}

	for _, tt := range tests {
		_, got := runSource(t, tt.input)
		if got != tt.want {
			t.Errorf("run(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}

	vm, result := runSource(t, `a = {"foo": 42, 2: true}`+"\n del(a, \"foo\")\n a")
	want := map[object.HashKey]any{
		key(object.Integer(2)): object.Boolean(true),
	}
	if got := materialize(vm, result); !reflect.DeepEqual(got, want) {
		t.Errorf("dict after del = %v, want %v", got, want)
	}
}

func TestRunPrint(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`print("hello", "world")`, "hello world\n"},
		{"print(42, 6.9, 'a', true, null)", "42 6.9 a true null\n"},
		{`print([1, "two", [3]])`, "[1, two, [3]]\n"},
		{`print({"b": 2, "a": [1]})`, "{a: [1], b: 2}\n"},
		{"print()", "\n"},
		{"print(fn(){}, len)", "<fn> <builtin len>\n"},
	}

	for _, tt := range tests {
		code := compileSource(t, tt.input)
		vm := New()
		var out bytes.Buffer
		vm.Stdout = &out

		result, err := vm.Run(code)
		if err != nil {
			t.Errorf("run(%q) failed: %v", tt.input, err)
			continue
		}
		if result != object.Null {
			t.Errorf("run(%q) = %v, want null", tt.input, result)
		}
		if got := out.String(); got != tt.want {
			t.Errorf("run(%q) wrote %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestRunInput(t *testing.T) {
	code := compileSource(t, "[input(), input(), input()]")
	vm := New()
	vm.Stdin = strings.NewReader("line one\nline two")

	result, err := vm.Run(code)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	want := []any{object.String("line one"), object.String("line two"), object.Null}
	if got := materialize(vm, result); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRunInputStripsCarriageReturn(t *testing.T) {
	code := compileSource(t, "[input(), input()]")
	vm := New()
	vm.Stdin = strings.NewReader("first\r\nsecond\r\n")

	result, err := vm.Run(code)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	want := []any{object.String("first"), object.String("second")}
	if got := materialize(vm, result); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRunUseStatement(t *testing.T) {
	tests := []struct {
		input string
		want  object.Object
	}{
		{`use "testdata/constant.aoc"`, object.Integer(42)},
		{
			"obj = use \"testdata/object.aoc\"\nobj.function(obj.value)",
			object.Integer(138),
		},
	}

	for _, tt := range tests {
		_, got := runSource(t, tt.input)
		if got != tt.want {
			t.Errorf("run(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRunRuntimeErrors(t *testing.T) {
	tests := []struct {
		input string
		want  bytecode.Error
	}{
		{
			"1 + true",
			bytecode.Error{
				Kind:     bytecode.ErrInvalidOperands,
				Operator: "+",
				Left:     object.TypeInteger,
				Right:    object.TypeBoolean,
			},
		},
		{
			"true + true",
			bytecode.Error{
				Kind:     bytecode.ErrInvalidOperands,
				Operator: "+",
				Left:     object.TypeBoolean,
				Right:    object.TypeBoolean,
			},
		},
		{
			`"a" - "b"`,
			bytecode.Error{
				Kind:     bytecode.ErrInvalidOperands,
				Operator: "-",
				Left:     object.TypeString,
				Right:    object.TypeString,
			},
		},
		{
			"4.2 % 2.0",
			bytecode.Error{
				Kind:     bytecode.ErrInvalidOperands,
				Operator: "%",
				Left:     object.TypeFloat,
				Right:    object.TypeFloat,
			},
		},
		{"1 / 0", bytecode.Error{Kind: bytecode.ErrDivisionByZero}},
		{"1 % 0", bytecode.Error{Kind: bytecode.ErrDivisionByZero}},
		{
			"-true",
			bytecode.Error{Kind: bytecode.ErrInvalidNegateOperand, DataType: object.TypeBoolean},
		},
		{
			"!4.2",
			bytecode.Error{Kind: bytecode.ErrInvalidNegateOperand, DataType: object.TypeFloat},
		},
		{
			"[1][true]",
			bytecode.Error{Kind: bytecode.ErrInvalidIndexType, DataType: object.TypeBoolean},
		},
		{
			`"foo"[1.5]`,
			bytecode.Error{Kind: bytecode.ErrInvalidIndexType, DataType: object.TypeFloat},
		},
		{
			"1[0]",
			bytecode.Error{Kind: bytecode.ErrNotIndexable, DataType: object.TypeInteger},
		},
		{
			"{1: 2}[[1]]",
			bytecode.Error{Kind: bytecode.ErrNotHashable, DataType: object.TypeArray},
		},
		{
			"a = [0]\na[1] = 1",
			bytecode.Error{Kind: bytecode.ErrIndexOutOfBounds, Index: 1, Length: 1},
		},
		{
			"a = [0]\na[-1] = 1",
			bytecode.Error{Kind: bytecode.ErrIndexOutOfBounds, Index: -1, Length: 1},
		},
		{
			"[a, b] = 1",
			bytecode.Error{Kind: bytecode.ErrNotUnpackable, DataType: object.TypeInteger},
		},
		{
			"[a] = [1, 2]",
			bytecode.Error{Kind: bytecode.ErrUnpackLengthMismatch, Expected: 1, Got: 2},
		},
		{
			"a = 1\na()",
			bytecode.Error{Kind: bytecode.ErrNotCallable, DataType: object.TypeInteger},
		},
		{
			"fn(a){a}(1, 2)",
			bytecode.Error{Kind: bytecode.ErrInvalidNrOfArgs, Expected: 1, Got: 2},
		},
		{
			"len(1, 2)",
			bytecode.Error{Kind: bytecode.ErrInvalidNrOfArgs, Expected: 1, Got: 2},
		},
		{
			"floor(4)",
			bytecode.Error{
				Kind:     bytecode.ErrInvalidBuiltinArg,
				Builtin:  object.BuiltinFloor,
				DataType: object.TypeInteger,
			},
		},
		{
			"trim(42)",
			bytecode.Error{
				Kind:     bytecode.ErrInvalidBuiltinArg,
				Builtin:  object.BuiltinTrim,
				DataType: object.TypeInteger,
			},
		},
		{
			"push(1, 2)",
			bytecode.Error{
				Kind:     bytecode.ErrInvalidBuiltinArg,
				Builtin:  object.BuiltinPush,
				DataType: object.TypeInteger,
			},
		},
		{
			"str([1])",
			bytecode.Error{
				Kind:     bytecode.ErrInvalidBuiltinArg,
				Builtin:  object.BuiltinStr,
				DataType: object.TypeArray,
			},
		},
		{
			"del({}, [1])",
			bytecode.Error{Kind: bytecode.ErrNotHashable, DataType: object.TypeArray},
		},
	}

	for _, tt := range tests {
		got := *runError(t, tt.input)
		got.Range = compiler.Range{}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("run(%q) error = %+v, want %+v", tt.input, got, tt.want)
		}
	}
}

func TestRunErrorRangeCoversInstruction(t *testing.T) {
	got := runError(t, "a = 1\n1 / 0")

	want := compiler.Range{
		Start: compiler.Position{Line: 1, Character: 0},
		End:   compiler.Position{Line: 1, Character: 5},
	}
	if got.Range != want {
		t.Errorf("Range = %s, want %s", got.Range, want)
	}
}

func TestRunUnpackBounds(t *testing.T) {
	// 257 targets overflow the unpack limit, 256 are fine.
	over := "[" + strings.Repeat("a, ", 256) + "a] = [" + strings.Repeat("0, ", 256) + "0]"
	got := runError(t, over)
	if got.Kind != bytecode.ErrUnpackTooLarge {
		t.Fatalf("Kind = %d, want ErrUnpackTooLarge", got.Kind)
	}
	if got.Max != 256 || got.Got != 257 {
		t.Errorf("Max = %d, Got = %d, want 256 and 257", got.Max, got.Got)
	}

	max := "[" + strings.Repeat("a, ", 255) + "a] = [" + strings.Repeat("0, ", 255) + "0]\n a"
	_, result := runSource(t, max)
	if want := object.Integer(0); result != want {
		t.Errorf("got %v, want %v", result, want)
	}
}

func TestRunStackOverflowOnRunawayRecursion(t *testing.T) {
	got := runError(t, "f = fn() { f() }\nf()")
	if got.Kind != bytecode.ErrStackOverflow {
		t.Errorf("Kind = %d, want ErrStackOverflow", got.Kind)
	}
}

func TestRunStackOverflowOnDeepFrames(t *testing.T) {
	got := runError(t, "f = fn(a, b, c, d, e) { f(a, b, c, d, e) }\nf(1, 2, 3, 4, 5)")
	if got.Kind != bytecode.ErrStackOverflow {
		t.Errorf("Kind = %d, want ErrStackOverflow", got.Kind)
	}
}

func TestRunKeepsGlobalsAcrossRuns(t *testing.T) {
	vm := New()

	if _, err := vm.Run(compileSource(t, "a = 41")); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	got, err := vm.Run(compileSource(t, "1 + 1"))
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if want := object.Integer(2); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if want := object.Integer(41); vm.globals[0] != want {
		t.Errorf("globals[0] = %v, want %v", vm.globals[0], want)
	}
}
