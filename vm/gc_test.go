package vm

import (
	"testing"

	"github.com/chazu/aoc/pkg/object"
)

func TestCollectorAllocate(t *testing.T) {
	gc := newCollector()

	arr := gc.allocateArray([]object.Object{object.Integer(1)})
	if arr.Type != object.TypeArray {
		t.Fatalf("type = %s, want ARRAY", arr.Type)
	}
	dict := gc.allocateDictionary(map[object.HashKey]object.Object{})
	if dict.Type != object.TypeDictionary {
		t.Fatalf("type = %s, want DICTIONARY", dict.Type)
	}

	if dict.Handle <= arr.Handle {
		t.Errorf("handles not increasing: %d then %d", arr.Handle, dict.Handle)
	}
	if got := gc.population(); got != 2 {
		t.Errorf("population = %d, want 2", got)
	}
	if got := len(*gc.array(arr.Handle)); got != 1 {
		t.Errorf("array length = %d, want 1", got)
	}
}

func TestCollectorMutationThroughHandle(t *testing.T) {
	gc := newCollector()
	arr := gc.allocateArray(nil)

	elements := gc.array(arr.Handle)
	*elements = append(*elements, object.Integer(42))

	if got := *gc.array(arr.Handle); len(got) != 1 || got[0] != object.Integer(42) {
		t.Errorf("array = %v, want [42]", got)
	}
}

func TestCollectDropsUnreachable(t *testing.T) {
	gc := newCollector()
	kept := gc.allocateArray(nil)
	gc.allocateArray(nil)

	gc.collect([]object.Object{kept})

	if got := gc.population(); got != 1 {
		t.Errorf("population = %d, want 1", got)
	}
	if got := *gc.array(kept.Handle); len(got) != 0 {
		t.Errorf("kept array = %v, want empty", got)
	}
}

func TestCollectTracesNestedValues(t *testing.T) {
	gc := newCollector()

	inner := gc.allocateArray([]object.Object{object.Integer(1)})
	dict := gc.allocateDictionary(map[object.HashKey]object.Object{
		key(object.String("inner")): inner,
	})
	outer := gc.allocateArray([]object.Object{dict})

	gc.collect([]object.Object{outer})

	if got := gc.population(); got != 3 {
		t.Errorf("population = %d, want 3", got)
	}
	if got := *gc.array(inner.Handle); got[0] != object.Integer(1) {
		t.Errorf("inner array = %v, want [1]", got)
	}
}

func TestCollectTracesClosureCaptures(t *testing.T) {
	gc := newCollector()

	captured := gc.allocateArray(nil)
	closure := &object.Closure{Function: 0, Free: []object.Object{captured}}

	gc.collect([]object.Object{closure.Object()})

	if got := gc.population(); got != 1 {
		t.Errorf("population = %d, want 1", got)
	}
}

func TestCollectCyclicValues(t *testing.T) {
	gc := newCollector()

	arr := gc.allocateArray(make([]object.Object, 1))
	(*gc.array(arr.Handle))[0] = arr

	// Tracing a self-referential value must terminate.
	gc.collect([]object.Object{arr})
	if got := gc.population(); got != 1 {
		t.Errorf("population = %d, want 1", got)
	}

	gc.collect()
	if got := gc.population(); got != 0 {
		t.Errorf("population after dropping cycle = %d, want 0", got)
	}
}

func TestFreedValueAccessPanics(t *testing.T) {
	gc := newCollector()
	arr := gc.allocateArray(nil)
	gc.collect()

	defer func() {
		if r := recover(); r != "accessing freed value" {
			t.Errorf("panic = %v, want accessing freed value", r)
		}
	}()
	gc.array(arr.Handle)
	t.Error("access to freed value did not panic")
}

func TestShouldCollectThresholds(t *testing.T) {
	gc := newCollector()

	for i := 0; i <= maxObjects; i++ {
		gc.allocateArray(nil)
	}
	if gc.shouldCollect() {
		t.Error("collect due before the instruction interval elapsed")
	}

	for i := 0; i <= collectInterval; i++ {
		gc.step()
	}
	if !gc.shouldCollect() {
		t.Error("collect not due with full heap and elapsed interval")
	}

	gc.collect()
	if gc.shouldCollect() {
		t.Error("collect due right after a cycle")
	}
	if got := gc.population(); got != 0 {
		t.Errorf("population = %d, want 0", got)
	}
}

func TestCollectGarbageRoots(t *testing.T) {
	vm := New()

	onStack := vm.gc.allocateArray(nil)
	vm.stack[0] = onStack
	vm.sp = 1

	inGlobal := vm.gc.allocateArray(nil)
	vm.globals[3] = inGlobal

	captured := vm.gc.allocateArray(nil)
	vm.frames = append(vm.frames, frame{
		closure: &object.Closure{Free: []object.Object{captured}},
	})

	vm.gc.allocateArray(nil) // unreachable

	vm.collectGarbage()

	if got := vm.gc.population(); got != 3 {
		t.Errorf("population = %d, want 3", got)
	}
	vm.gc.array(onStack.Handle)
	vm.gc.array(inGlobal.Handle)
	vm.gc.array(captured.Handle)
}

func TestRunCollectsGarbage(t *testing.T) {
	input := `
	i = 0
	while (i < 2000) {
		a = [i]
		i = i + 1
	}
	i
	`

	vm, result := runSource(t, input)
	if want := object.Integer(2000); result != want {
		t.Fatalf("result = %v, want %v", result, want)
	}

	// Two thousand arrays were allocated; without collection the heap
	// would hold all of them.
	if got := vm.gc.population(); got == 0 || got >= 1500 {
		t.Errorf("population = %d, want between 1 and 1499", got)
	}
}

func TestRunKeepsReachableValuesAcrossCollection(t *testing.T) {
	input := `
	keep = [42]
	i = 0
	while (i < 2000) {
		a = [i]
		i = i + 1
	}
	keep[0]
	`

	_, result := runSource(t, input)
	if want := object.Integer(42); result != want {
		t.Errorf("result = %v, want %v", result, want)
	}
}
