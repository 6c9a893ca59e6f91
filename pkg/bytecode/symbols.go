package bytecode

// SymbolScope identifies where a resolved name lives.
type SymbolScope uint8

const (
	ScopeGlobal SymbolScope = iota
	ScopeLocal
	ScopeFree
	ScopeCurrentClosure
	ScopeBuiltin
)

// Symbol is a resolved name: the kind of storage it lives in and its slot
// there.
type Symbol struct {
	Name  string
	Scope SymbolScope
	Index int
}

type symbolScope struct {
	store          map[string]Symbol
	numDefinitions int

	// free holds the captured outer symbols, as they resolve in the
	// enclosing scope, in capture order.
	free []Symbol
}

func newSymbolScope() *symbolScope {
	return &symbolScope{store: make(map[string]Symbol)}
}

// SymbolTable tracks definitions across nested function scopes. The bottom
// scope is the global scope; every function literal pushes a new one.
// Blocks do not open scopes.
type SymbolTable struct {
	scopes []*symbolScope
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{scopes: []*symbolScope{newSymbolScope()}}
}

// EnterScope opens the scope of a function literal.
func (t *SymbolTable) EnterScope() {
	t.scopes = append(t.scopes, newSymbolScope())
}

// LeaveScope closes the current function scope and reports its local slot
// count and its captured symbols in capture order.
func (t *SymbolTable) LeaveScope() (numLocals int, free []Symbol) {
	scope := t.scopes[len(t.scopes)-1]
	t.scopes = t.scopes[:len(t.scopes)-1]
	return scope.numDefinitions, scope.free
}

// Define binds name in the current scope. A name already bound to a global
// or local slot keeps its slot; free and function-name bindings are
// shadowed by a fresh local slot, since nothing can store through them.
func (t *SymbolTable) Define(name string) Symbol {
	scope := t.scopes[len(t.scopes)-1]

	if sym, ok := scope.store[name]; ok {
		if sym.Scope == ScopeGlobal || sym.Scope == ScopeLocal {
			return sym
		}
	}

	kind := ScopeLocal
	if len(t.scopes) == 1 {
		kind = ScopeGlobal
	}

	sym := Symbol{Name: name, Scope: kind, Index: scope.numDefinitions}
	scope.store[name] = sym
	scope.numDefinitions++

	return sym
}

// DefineFunctionName binds the name a function literal was assigned to
// inside its own scope, so the function can call itself.
func (t *SymbolTable) DefineFunctionName(name string) Symbol {
	scope := t.scopes[len(t.scopes)-1]
	sym := Symbol{Name: name, Scope: ScopeCurrentClosure}
	scope.store[name] = sym
	return sym
}

// Resolve walks scopes innermost to outermost. A hit in an enclosing
// function scope is captured as a free variable by every scope between the
// hit and the current one, at most once per name per scope. Globals are
// never captured.
func (t *SymbolTable) Resolve(name string) (Symbol, bool) {
	return t.resolveAt(len(t.scopes)-1, name)
}

func (t *SymbolTable) resolveAt(idx int, name string) (Symbol, bool) {
	scope := t.scopes[idx]
	if sym, ok := scope.store[name]; ok {
		return sym, true
	}
	if idx == 0 {
		return Symbol{}, false
	}

	sym, ok := t.resolveAt(idx-1, name)
	if !ok {
		return Symbol{}, false
	}
	if sym.Scope == ScopeGlobal {
		return sym, true
	}

	return t.defineFree(idx, name, sym), true
}

func (t *SymbolTable) defineFree(idx int, name string, original Symbol) Symbol {
	scope := t.scopes[idx]
	scope.free = append(scope.free, original)

	sym := Symbol{Name: name, Scope: ScopeFree, Index: len(scope.free) - 1}
	scope.store[name] = sym
	return sym
}
