// Package server implements the aoc language server: diagnostics, go to
// definition, references, hover, completion and symbol queries over stdio.
package server

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/aoc/compiler"
	"github.com/chazu/aoc/pkg/bytecode"
	"github.com/chazu/aoc/pkg/object"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "aoc-lsp"

var log = commonlog.GetLogger(lspName)

// LspServer serves aoc language features to an editor over stdio. Every open
// document is reanalyzed on change; queries then run against the stored
// analysis without touching the source text again.
type LspServer struct {
	mu    sync.Mutex
	docs  map[string]*Analysis
	index *Index

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates an LSP server. The index is optional; without it
// workspace/symbol queries return nothing.
func NewLSP(index *Index) *LspServer {
	s := &LspServer{
		docs:    make(map[string]*Analysis),
		index:   index,
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion:        s.textDocumentCompletion,
		TextDocumentHover:             s.textDocumentHover,
		TextDocumentDefinition:        s.textDocumentDefinition,
		TextDocumentReferences:        s.textDocumentReferences,
		TextDocumentDocumentHighlight: s.textDocumentDocumentHighlight,
		TextDocumentDocumentSymbol:    s.textDocumentDocumentSymbol,
		WorkspaceSymbol:               s.workspaceSymbol,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true
	capabilities.DocumentHighlightProvider = true
	capabilities.DocumentSymbolProvider = true
	capabilities.WorkspaceSymbolProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	if s.index != nil {
		return s.index.Close()
	}
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	log.Infof("opened %s", params.TextDocument.URI)
	s.updateDocument(ctx, params.TextDocument.URI, params.TextDocument.Text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	// With full sync the last change event carries the whole text.
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.updateDocument(ctx, params.TextDocument.URI, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	if s.index != nil {
		if err := s.index.Remove(string(uri)); err != nil {
			log.Errorf("removing %s from index: %s", uri, err)
		}
	}

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// updateDocument reanalyzes a document and pushes its diagnostics.
func (s *LspServer) updateDocument(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	analysis, diagnostics := analyzeDocument(text)

	s.mu.Lock()
	s.docs[string(uri)] = analysis
	s.mu.Unlock()

	if s.index != nil {
		if err := s.index.Update(string(uri), analysis.SymbolTree); err != nil {
			log.Errorf("indexing %s: %s", uri, err)
		}
	}

	if diagnostics == nil {
		diagnostics = []protocol.Diagnostic{}
	}
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// analyzeDocument parses and compiles text, returning the document analysis
// plus at most one diagnostic: the first front end error.
func analyzeDocument(text string) (*Analysis, []protocol.Diagnostic) {
	program, err := compiler.Parse(text)
	if err != nil {
		return &Analysis{}, []protocol.Diagnostic{errorDiagnostic(err)}
	}

	analysis := Analyze(program)

	// Compile to surface symbol and control flow errors. The result is
	// discarded; only the error matters here.
	if _, err := bytecode.Compile(program); err != nil {
		return analysis, []protocol.Diagnostic{errorDiagnostic(err)}
	}

	return analysis, nil
}

func errorDiagnostic(err error) protocol.Diagnostic {
	var errRange compiler.Range

	var parseErr *compiler.Error
	var compileErr *bytecode.Error
	switch {
	case errors.As(err, &parseErr):
		errRange = parseErr.Range
	case errors.As(err, &compileErr):
		errRange = compileErr.Range
	}

	severity := protocol.DiagnosticSeverityError
	source := lspName
	return protocol.Diagnostic{
		Range:    toProtocolRange(errRange),
		Severity: &severity,
		Source:   &source,
		Message:  err.Error(),
	}
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	analysis := s.analysisFor(params.TextDocument.URI)
	if analysis == nil {
		return nil, nil
	}

	pos := fromProtocolPosition(params.Position)

	var items []protocol.CompletionItem
	for _, symbol := range analysis.CompletionSymbols(pos) {
		items = append(items, symbolCompletionItem(symbol))
	}
	items = append(items, staticCompletions...)

	return items, nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	analysis := s.analysisFor(params.TextDocument.URI)
	if analysis == nil {
		return nil, nil
	}

	doc, ok := analysis.Documentation(fromProtocolPosition(params.Position))
	if !ok {
		return nil, nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: doc,
		},
	}, nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	analysis := s.analysisFor(params.TextDocument.URI)
	if analysis == nil {
		return nil, nil
	}

	definedAt, ok := analysis.Definition(fromProtocolPosition(params.Position))
	if !ok {
		return nil, nil
	}

	return protocol.Location{
		URI:   params.TextDocument.URI,
		Range: toProtocolRange(definedAt),
	}, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	analysis := s.analysisFor(params.TextDocument.URI)
	if analysis == nil {
		return nil, nil
	}

	pos := fromProtocolPosition(params.Position)
	references := analysis.References(pos)

	var locations []protocol.Location
	for _, ref := range references {
		if !params.Context.IncludeDeclaration && pos.CmpRange(ref) == compiler.PositionInside {
			continue
		}
		locations = append(locations, protocol.Location{
			URI:   params.TextDocument.URI,
			Range: toProtocolRange(ref),
		})
	}

	return locations, nil
}

func (s *LspServer) textDocumentDocumentHighlight(ctx *glsp.Context, params *protocol.DocumentHighlightParams) ([]protocol.DocumentHighlight, error) {
	analysis := s.analysisFor(params.TextDocument.URI)
	if analysis == nil {
		return nil, nil
	}

	references := analysis.References(fromProtocolPosition(params.Position))

	var highlights []protocol.DocumentHighlight
	for _, ref := range references {
		highlights = append(highlights, protocol.DocumentHighlight{
			Range: toProtocolRange(ref),
		})
	}

	return highlights, nil
}

func (s *LspServer) textDocumentDocumentSymbol(ctx *glsp.Context, params *protocol.DocumentSymbolParams) (any, error) {
	analysis := s.analysisFor(params.TextDocument.URI)
	if analysis == nil {
		return nil, nil
	}

	return mapSymbolTree(analysis.SymbolTree), nil
}

func (s *LspServer) workspaceSymbol(ctx *glsp.Context, params *protocol.WorkspaceSymbolParams) ([]protocol.SymbolInformation, error) {
	if s.index == nil {
		return nil, nil
	}

	symbols, err := s.index.Query(params.Query)
	if err != nil {
		return nil, err
	}

	var infos []protocol.SymbolInformation
	for _, symbol := range symbols {
		infos = append(infos, protocol.SymbolInformation{
			Name: symbol.Name,
			Kind: protocol.SymbolKind(symbol.Kind),
			Location: protocol.Location{
				URI:   protocol.DocumentUri(symbol.URI),
				Range: toProtocolRange(symbol.Range),
			},
		})
	}

	return infos, nil
}

func (s *LspServer) analysisFor(uri protocol.DocumentUri) *Analysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[string(uri)]
}

// --- Protocol mapping ---

// mapSymbolTree converts the symbol tree to protocol document symbols.
// Anonymous functions are dropped together with their children.
func mapSymbolTree(tree []DocumentSymbol) []protocol.DocumentSymbol {
	var symbols []protocol.DocumentSymbol
	for i := range tree {
		symbol := &tree[i]
		if symbol.Name == "" {
			continue
		}

		symbols = append(symbols, protocol.DocumentSymbol{
			Name:           symbol.Name,
			Kind:           protocol.SymbolKind(symbol.Kind),
			Range:          toProtocolRange(symbol.Range),
			SelectionRange: toProtocolRange(symbol.NameRange),
			Children:       mapSymbolTree(symbol.Children),
		})
	}
	return symbols
}

func symbolCompletionItem(symbol DocumentSymbol) protocol.CompletionItem {
	kind := protocol.CompletionItemKindVariable
	if symbol.Kind == SymbolFunction {
		kind = protocol.CompletionItemKindFunction
	}

	name := symbol.Name
	format := protocol.InsertTextFormatPlainText
	return protocol.CompletionItem{
		Label:            name,
		Kind:             &kind,
		InsertText:       &name,
		InsertTextFormat: &format,
	}
}

// staticCompletions are the control flow snippets and builtin functions
// appended to every completion response.
var staticCompletions = func() []protocol.CompletionItem {
	snippetKind := protocol.CompletionItemKindSnippet
	functionKind := protocol.CompletionItemKindFunction
	snippetFormat := protocol.InsertTextFormatSnippet

	snippets := []struct{ label, insert string }{
		{"for", "for ($1; $2; $3) {\n    $4\n}$0"},
		{"if", "if ($1) {\n    $2\n}$0"},
		{"ifelse", "if ($1) {\n    $2\n} else {\n    $3\n}$0"},
		{"while", "while ($1) {\n    $2\n}$0"},
	}

	var items []protocol.CompletionItem
	for _, snippet := range snippets {
		insert := snippet.insert
		items = append(items, protocol.CompletionItem{
			Label:            snippet.label,
			Kind:             &snippetKind,
			InsertText:       &insert,
			InsertTextFormat: &snippetFormat,
		})
	}

	for id, info := range object.Builtins() {
		insert := builtinInsertText(info)
		items = append(items, protocol.CompletionItem{
			Label:            info.Name,
			Kind:             &functionKind,
			InsertText:       &insert,
			InsertTextFormat: &snippetFormat,
			Documentation: protocol.MarkupContent{
				Kind:  protocol.MarkupKindMarkdown,
				Value: object.Builtin(id).Documentation(),
			},
		})
	}

	return items
}()

// builtinInsertText turns a builtin signature such as "split(str, delim)"
// into the snippet "split(${1:str}, ${2:delim})$0".
func builtinInsertText(info object.BuiltinInfo) string {
	open := strings.Index(info.Signature, "(")
	params := strings.TrimSuffix(info.Signature[open+1:], ")")
	if params == "" {
		return info.Name + "()$0"
	}

	parts := strings.Split(params, ", ")
	placeholders := make([]string, len(parts))
	for i, part := range parts {
		placeholders[i] = fmt.Sprintf("${%d:%s}", i+1, strings.TrimPrefix(part, "..."))
	}

	return info.Name + "(" + strings.Join(placeholders, ", ") + ")$0"
}

func toProtocolPosition(pos compiler.Position) protocol.Position {
	return protocol.Position{
		Line:      protocol.UInteger(pos.Line),
		Character: protocol.UInteger(pos.Character),
	}
}

func toProtocolRange(r compiler.Range) protocol.Range {
	return protocol.Range{
		Start: toProtocolPosition(r.Start),
		End:   toProtocolPosition(r.End),
	}
}

func fromProtocolPosition(pos protocol.Position) compiler.Position {
	return compiler.Position{
		Line:      int(pos.Line),
		Character: int(pos.Character),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
