package vm

import "github.com/chazu/aoc/pkg/object"

// ---------------------------------------------------------------------------
// collector: Mark/trace garbage collection for arrays and dictionaries
// ---------------------------------------------------------------------------

const (
	// maxObjects is the heap population above which a collection cycle may
	// be triggered.
	maxObjects = 1024

	// collectInterval is the minimum number of executed instructions
	// between two collection cycles.
	collectInterval = 256
)

// heapEntry is the backing storage of a single heap-allocated value.
// Exactly one of array or dict is set, according to kind.
type heapEntry struct {
	kind    object.DataType
	array   []object.Object
	dict    map[object.HashKey]object.Object
	reached bool // mark bit, only valid during a collection cycle
}

// collector owns the backing storage of every live array and dictionary.
// Objects on the VM stack hold opaque handles into the collector; the
// collector frees an entry when it is no longer reachable from any root.
type collector struct {
	entries    map[object.Handle]*heapEntry
	nextHandle object.Handle // monotonically increasing, never reused
	steps      int           // instructions executed since the last cycle
}

func newCollector() *collector {
	return &collector{
		entries:    make(map[object.Handle]*heapEntry),
		nextHandle: 1,
	}
}

// allocateArray stores the given elements on the heap and returns an array
// object holding the new handle.
func (gc *collector) allocateArray(elements []object.Object) object.Object {
	h := gc.nextHandle
	gc.nextHandle++
	gc.entries[h] = &heapEntry{kind: object.TypeArray, array: elements}
	return object.Array(h)
}

// allocateDictionary stores the given pairs on the heap and returns a
// dictionary object holding the new handle.
func (gc *collector) allocateDictionary(pairs map[object.HashKey]object.Object) object.Object {
	h := gc.nextHandle
	gc.nextHandle++
	gc.entries[h] = &heapEntry{kind: object.TypeDictionary, dict: pairs}
	return object.Dictionary(h)
}

// array returns a pointer to the backing slice of the array behind h, so
// callers can mutate it in place (index assignment, push, pop).
func (gc *collector) array(h object.Handle) *[]object.Object {
	return &gc.mustEntry(h).array
}

// dictionary returns the backing map of the dictionary behind h.
func (gc *collector) dictionary(h object.Handle) map[object.HashKey]object.Object {
	return gc.mustEntry(h).dict
}

func (gc *collector) mustEntry(h object.Handle) *heapEntry {
	entry, ok := gc.entries[h]
	if !ok {
		panic("accessing freed value")
	}
	return entry
}

// step records one executed instruction.
func (gc *collector) step() {
	gc.steps++
}

// shouldCollect reports whether a collection cycle is due. Both conditions
// must hold: the heap population exceeds maxObjects and at least
// collectInterval instructions ran since the previous cycle.
func (gc *collector) shouldCollect() bool {
	return len(gc.entries) > maxObjects && gc.steps > collectInterval
}

// collect runs one mark/trace cycle. Every entry not reachable from the
// given roots is dropped.
func (gc *collector) collect(roots ...[]object.Object) {
	for _, entry := range gc.entries {
		entry.reached = false
	}

	for _, root := range roots {
		for _, obj := range root {
			gc.trace(obj)
		}
	}

	for h, entry := range gc.entries {
		if !entry.reached {
			delete(gc.entries, h)
		}
	}
	gc.steps = 0
}

// trace marks obj and everything reachable from it. Entries already marked
// are skipped, so cyclic structures terminate.
func (gc *collector) trace(obj object.Object) {
	switch obj.Type {
	case object.TypeArray, object.TypeDictionary:
		entry := gc.mustEntry(obj.Handle)
		if entry.reached {
			return
		}
		entry.reached = true
		if entry.kind == object.TypeArray {
			for _, element := range entry.array {
				gc.trace(element)
			}
		} else {
			for _, value := range entry.dict {
				gc.trace(value)
			}
		}
	case object.TypeClosure:
		for _, free := range obj.Closure.Free {
			gc.trace(free)
		}
	}
}

// population returns the number of live heap entries.
func (gc *collector) population() int {
	return len(gc.entries)
}
