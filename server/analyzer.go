package server

import (
	"fmt"

	"github.com/chazu/aoc/compiler"
	"github.com/chazu/aoc/pkg/object"
)

// ---------------------------------------------------------------------------
// Document analysis: definitions, references, documentation, symbol tree
// ---------------------------------------------------------------------------

// SymbolKind classifies a document symbol. The values match the LSP
// SymbolKind constants so they map to the protocol without translation.
type SymbolKind int

const (
	SymbolFunction SymbolKind = 12
	SymbolVariable SymbolKind = 13
)

// DocumentSymbol is one node of the symbol tree: a variable definition or a
// function literal together with the symbols defined inside it.
type DocumentSymbol struct {
	// Name is empty for anonymous function literals.
	Name string
	Kind SymbolKind

	// Parameters is non-nil exactly for functions.
	Parameters []string

	// NameRange covers the symbol name, Range the whole definition. For a
	// named function Range extends to the end of the function body.
	NameRange compiler.Range
	Range     compiler.Range

	Children []DocumentSymbol
}

// Analysis holds everything the language server knows about one parsed
// document. All queries are by position and run in logarithmic time.
type Analysis struct {
	definitions   locationData[compiler.Range]
	references    locationData[[]compiler.Range]
	documentation locationData[string]

	SymbolTree []DocumentSymbol
}

// Analyze walks a parsed program and collects definition sites, references,
// comment documentation and the symbol tree.
func Analyze(program *compiler.Program) *Analysis {
	a := &analyzer{
		scopes:   newScopeStack(),
		comments: mergeComments(program.Comments),
		frames:   [][]DocumentSymbol{{}},
		analysis: &Analysis{},
	}

	for i := range program.Statements {
		a.analyzeNode(&program.Statements[i])
	}

	a.analysis.SymbolTree = a.frames[0]
	return a.analysis
}

// Definition returns the range where the symbol at pos is defined.
func (a *Analysis) Definition(pos compiler.Position) (compiler.Range, bool) {
	entry := a.definitions.get(pos)
	if entry == nil {
		return compiler.Range{}, false
	}
	return entry.entry, true
}

// References returns every occurrence of the symbol at pos, the definition
// site first. The result is nil when pos is not on a known symbol.
func (a *Analysis) References(pos compiler.Position) []compiler.Range {
	definedAt, ok := a.Definition(pos)
	if !ok {
		return nil
	}

	entry := a.references.get(definedAt.Start)
	if entry == nil {
		return nil
	}
	return entry.entry
}

// Documentation returns the markdown documentation for the symbol at pos:
// the comment block above a definition, or the builtin docs when pos is on
// a builtin reference.
func (a *Analysis) Documentation(pos compiler.Position) (string, bool) {
	docPos := pos
	if definedAt, ok := a.Definition(pos); ok {
		docPos = definedAt.Start
	}

	entry := a.documentation.get(docPos)
	if entry == nil {
		return "", false
	}
	return entry.entry, true
}

// CompletionSymbols returns the named symbols visible at pos: everything
// defined before pos plus the definitions of every enclosing function.
func (a *Analysis) CompletionSymbols(pos compiler.Position) []DocumentSymbol {
	var symbols []DocumentSymbol
	collectVisibleSymbols(pos, a.SymbolTree, &symbols)
	return symbols
}

func collectVisibleSymbols(pos compiler.Position, tree []DocumentSymbol, out *[]DocumentSymbol) {
	for i := range tree {
		symbol := &tree[i]
		switch pos.CmpRange(symbol.Range) {
		case compiler.PositionBefore:
			return
		case compiler.PositionInside:
			if symbol.Name != "" {
				*out = append(*out, *symbol)
			}
			collectVisibleSymbols(pos, symbol.Children, out)
		case compiler.PositionAfter:
			if symbol.Name != "" {
				*out = append(*out, *symbol)
			}
		}
	}
}

// ---------------------------------------------------------------------------
// AST walk
// ---------------------------------------------------------------------------

type analyzer struct {
	scopes   *scopeStack
	comments locationData[string]

	// frames is a stack of symbol lists, one per function literal being
	// analyzed. The bottom frame becomes the document symbol tree.
	frames [][]DocumentSymbol

	analysis *Analysis
}

func (a *analyzer) analyzeNode(node *compiler.Node) {
	switch value := node.Value.(type) {
	case compiler.Identifier:
		a.resolveIdent(string(value), node.Range)

	case compiler.ArrayLiteral:
		for i := range value {
			a.analyzeNode(&value[i])
		}

	case compiler.HashLiteral:
		for i := range value {
			a.analyzeNode(&value[i].Key)
			a.analyzeNode(&value[i].Value)
		}

	case compiler.PrefixOperator:
		a.analyzeNode(value.Right)

	case compiler.InfixOperator:
		a.analyzeNode(value.Left)
		a.analyzeNode(value.Right)

	case compiler.Assign:
		a.analyzeAssignee(value.Ident)
		a.analyzeNode(value.Value)

	case compiler.Index:
		a.analyzeNode(value.Left)
		a.analyzeNode(value.Index)

	case compiler.If:
		a.analyzeNode(value.Condition)
		a.analyzeBlock(value.Consequence)
		if value.Alternative != nil {
			a.analyzeBlock(*value.Alternative)
		}

	case compiler.While:
		a.analyzeNode(value.Condition)
		a.analyzeBlock(value.Body)

	case compiler.For:
		a.analyzeNode(value.Initial)
		a.analyzeNode(value.Condition)
		a.analyzeNode(value.After)
		a.analyzeBlock(value.Body)

	case compiler.Return:
		a.analyzeNode(value.Value)

	case compiler.FunctionLiteral:
		a.analyzeFunction(node, value)

	case compiler.FunctionCall:
		a.analyzeNode(value.Function)
		for i := range value.Arguments {
			a.analyzeNode(&value.Arguments[i])
		}
	}
}

func (a *analyzer) analyzeBlock(block compiler.Block) {
	for i := range block.Statements {
		a.analyzeNode(&block.Statements[i])
	}
}

func (a *analyzer) analyzeFunction(node *compiler.Node, fn compiler.FunctionLiteral) {
	a.scopes.enter()
	a.frames = append(a.frames, []DocumentSymbol{})

	for _, param := range fn.Parameters {
		a.defineIdent(param.Name, param.Range, false)
	}
	a.analyzeBlock(fn.Body)

	a.scopes.leave()

	children := a.frames[len(a.frames)-1]
	a.frames = a.frames[:len(a.frames)-1]

	parameters := make([]string, len(fn.Parameters))
	for i, param := range fn.Parameters {
		parameters[i] = param.Name
	}

	frame := a.frames[len(a.frames)-1]
	if fn.Name != "" {
		// A named function is always the value of an assignment, so the
		// last symbol on the enclosing frame is the function name. Extend
		// it over the body and attach the nested definitions.
		fnSymbol := &frame[len(frame)-1]
		fnSymbol.Range.End = node.Range.End
		fnSymbol.Kind = SymbolFunction
		fnSymbol.Parameters = parameters
		fnSymbol.Children = children
	} else {
		a.frames[len(a.frames)-1] = append(frame, DocumentSymbol{
			Kind:       SymbolFunction,
			Parameters: parameters,
			NameRange:  node.Range,
			Range:      node.Range,
			Children:   children,
		})
	}
}

func (a *analyzer) analyzeAssignee(node *compiler.Node) {
	switch value := node.Value.(type) {
	case compiler.Identifier:
		a.defineIdent(string(value), node.Range, true)

	case compiler.Index:
		a.analyzeNode(value.Left)
		a.analyzeNode(value.Index)

	case compiler.ArrayLiteral:
		for i := range value {
			a.analyzeAssignee(&value[i])
		}

	default:
		panic(fmt.Sprintf("invalid assignee %T", node.Value))
	}
}

// resolveIdent records an identifier occurrence. An identifier that resolves
// to no definition is treated as a builtin reference and gets the builtin
// documentation attached at its own position.
func (a *analyzer) resolveIdent(ident string, location compiler.Range) {
	definedAt, ok := a.scopes.resolve(ident)
	if !ok {
		if builtin, ok := object.BuiltinFromIdent(ident); ok {
			a.analysis.documentation.push(location, builtin.Documentation())
		}
		return
	}

	a.analysis.definitions.push(location, definedAt)

	refs := a.analysis.references.getMut(definedAt.Start)
	refs.entry = append(refs.entry, location)
}

// defineIdent records a definition. Redefining a name in the same scope is
// just another reference to the first definition.
func (a *analyzer) defineIdent(ident string, location compiler.Range, withDocumentation bool) {
	definedAt := a.scopes.define(ident, location)

	a.analysis.definitions.push(location, definedAt)

	if definedAt != location {
		refs := a.analysis.references.getMut(definedAt.Start)
		refs.entry = append(refs.entry, location)
		return
	}

	a.analysis.references.push(location, []compiler.Range{location})

	if withDocumentation {
		a.defineDocumentation(location)
	}

	frame := a.frames[len(a.frames)-1]
	a.frames[len(a.frames)-1] = append(frame, DocumentSymbol{
		Name:      ident,
		Kind:      SymbolVariable,
		NameRange: location,
		Range:     location,
	})
}

// defineDocumentation attaches the comment block ending on the line above
// the definition, if there is one.
func (a *analyzer) defineDocumentation(location compiler.Range) {
	if location.Start.Line == 0 {
		return
	}

	docPos := compiler.Position{Line: location.Start.Line - 1}
	entry := a.comments.get(docPos)
	if entry == nil {
		return
	}

	a.analysis.documentation.push(location, entry.entry)
}

// ---------------------------------------------------------------------------
// Comment documentation
// ---------------------------------------------------------------------------

// mergeComments folds runs of comment lines into blocks. Comments on
// consecutive lines merge into one entry whose range starts at character 0,
// so a definition below the block finds it by looking one line up.
func mergeComments(comments []compiler.Comment) locationData[string] {
	var data locationData[string]
	if len(comments) == 0 {
		return data
	}

	text := comments[0].Text
	location := comments[0].Range
	location.Start.Character = 0

	for _, comment := range comments[1:] {
		if comment.Range.Start.Line-location.End.Line > 1 {
			data.push(location, text)

			text = comment.Text
			location = comment.Range
			location.Start.Character = 0
			continue
		}

		text += "\n" + comment.Text
		location.End = comment.Range.End
	}

	data.push(location, text)
	return data
}

// ---------------------------------------------------------------------------
// Scopes
// ---------------------------------------------------------------------------

// scopeStack maps names to the range where they were first defined, one map
// per function nesting level.
type scopeStack struct {
	scopes []map[string]compiler.Range
}

func newScopeStack() *scopeStack {
	return &scopeStack{scopes: []map[string]compiler.Range{{}}}
}

func (s *scopeStack) enter() {
	s.scopes = append(s.scopes, map[string]compiler.Range{})
}

func (s *scopeStack) leave() {
	s.scopes = s.scopes[:len(s.scopes)-1]
}

// define adds name to the current scope and returns the range where it was
// first defined, which is location itself for a new name.
func (s *scopeStack) define(name string, location compiler.Range) compiler.Range {
	scope := s.scopes[len(s.scopes)-1]
	if definedAt, ok := scope[name]; ok {
		return definedAt
	}

	scope[name] = location
	return location
}

// resolve finds name in the innermost scope that defines it.
func (s *scopeStack) resolve(name string) (compiler.Range, bool) {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if definedAt, ok := s.scopes[i][name]; ok {
			return definedAt, true
		}
	}
	return compiler.Range{}, false
}

// ---------------------------------------------------------------------------
// Position indexed storage
// ---------------------------------------------------------------------------

// locationEntry is one value attached to a source range.
type locationEntry[T any] struct {
	location compiler.Range
	entry    T
}

// locationData stores entries ordered by range and answers point queries by
// binary search. Ranges never overlap because they come from a left to right
// AST walk.
type locationData[T any] struct {
	entries []locationEntry[T]
}

// push appends an entry. Entries must arrive in source order.
func (d *locationData[T]) push(location compiler.Range, entry T) {
	if len(d.entries) > 0 {
		last := d.entries[len(d.entries)-1]
		if location.Start.CmpRange(last.location) != compiler.PositionAfter {
			panic(fmt.Sprintf("location %s pushed after %s", location, last.location))
		}
	}

	d.entries = append(d.entries, locationEntry[T]{location: location, entry: entry})
}

// get returns the entry whose range contains pos, or nil.
func (d *locationData[T]) get(pos compiler.Position) *locationEntry[T] {
	return d.getMut(pos)
}

func (d *locationData[T]) getMut(pos compiler.Position) *locationEntry[T] {
	start, end := 0, len(d.entries)

	for {
		length := end - start
		if length == 0 {
			return nil
		}

		if length == 1 {
			if pos.CmpRange(d.entries[start].location) == compiler.PositionInside {
				return &d.entries[start]
			}
			return nil
		}

		middle := start + length/2
		switch pos.CmpRange(d.entries[middle].location) {
		case compiler.PositionBefore:
			end = middle
		case compiler.PositionInside:
			return &d.entries[middle]
		case compiler.PositionAfter:
			start = middle
		}
	}
}
