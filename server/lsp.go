package server

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf16"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/narrative/compiler"
	"github.com/chazu/narrative/manifest"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "narrative-lsp"

var log = commonlog.GetLogger("narrative.lsp")

// LspServer provides diagnostics, completion and hover for scene sources.
// Every change rebuilds the whole project on the BuildWorker.
type LspServer struct {
	worker *BuildWorker

	mu      sync.Mutex
	flagged map[protocol.DocumentUri]bool // documents with published errors

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a language server for the project m, which may be nil.
func NewLSP(m *manifest.Manifest) *LspServer {
	s := &LspServer{
		worker:  NewBuildWorker(NewWorkspace(m)),
		flagged: make(map[protocol.DocumentUri]bool),
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

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
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
	log.Info("narrative LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"[", "%"},
	}

	capabilities.HoverProvider = true

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
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	s.update(ctx, uri, func(ws *Workspace) {
		ws.SetDocument(uriToPath(uri), params.TextDocument.Text)
	})
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.update(ctx, uri, func(ws *Workspace) {
				ws.SetDocument(uriToPath(uri), whole.Text)
			})
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	s.update(ctx, uri, func(ws *Workspace) {
		ws.CloseDocument(uriToPath(uri))
	})

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// update applies edit, rebuilds and publishes the resulting diagnostics.
func (s *LspServer) update(ctx *glsp.Context, uri protocol.DocumentUri, edit func(*Workspace)) {
	result, err := s.worker.Do(func(ws *Workspace) interface{} {
		edit(ws)
		ws.Rebuild(context.Background())
		return diagnose(ws, uri)
	})
	if err != nil {
		log.Errorf("rebuild: %v", err)
		return
	}
	for u, diags := range s.track(result.(map[protocol.DocumentUri][]protocol.Diagnostic)) {
		go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
			URI:         u,
			Diagnostics: diags,
		})
	}
}

// track adds empty diagnostics for documents whose earlier errors are gone.
func (s *LspServer) track(diags map[protocol.DocumentUri][]protocol.Diagnostic) map[protocol.DocumentUri][]protocol.Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	for u := range s.flagged {
		if _, ok := diags[u]; !ok {
			diags[u] = []protocol.Diagnostic{}
		}
	}
	s.flagged = make(map[protocol.DocumentUri]bool)
	for u, d := range diags {
		if len(d) > 0 {
			s.flagged[u] = true
		}
	}
	return diags
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	path := uriToPath(params.TextDocument.URI)
	pos := params.Position

	result, err := s.worker.Do(func(ws *Workspace) interface{} {
		text, ok := ws.overlays[path]
		if !ok {
			return []protocol.CompletionItem(nil)
		}
		prefix := extractPrefix(text, pos)
		if prefix == "" {
			return []protocol.CompletionItem(nil)
		}
		return complete(ws, path, prefix)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	path := uriToPath(params.TextDocument.URI)
	pos := params.Position

	result, err := s.worker.Do(func(ws *Workspace) interface{} {
		text, ok := ws.overlays[path]
		if !ok {
			return nil
		}
		word := extractWord(text, pos)
		if word == "" {
			return nil
		}
		return hover(ws, path, word)
	})
	if err != nil || result == nil {
		return nil, nil
	}
	h, _ := result.(*protocol.Hover)
	return h, nil
}

// --- Workspace-backed logic (called on the worker goroutine) ---

// diagnose maps the error of the last rebuild to the file it names. A
// build stops at its first error, so there is at most one diagnostic.
// Errors that name no file are reported on current.
func diagnose(ws *Workspace, current protocol.DocumentUri) map[protocol.DocumentUri][]protocol.Diagnostic {
	diags := make(map[protocol.DocumentUri][]protocol.Diagnostic)
	for _, p := range ws.Documents() {
		diags[pathToURI(p)] = []protocol.Diagnostic{}
	}
	err := ws.Err()
	if err == nil {
		return diags
	}

	uri := current
	var r protocol.Range
	var ce *compiler.Error
	if errors.As(err, &ce) {
		if ce.File != "" {
			uri = pathToURI(ce.File)
		}
		r = sourceRange(ws.Text(uriToPath(uri)), ce.Pos)
	}
	severity := protocol.DiagnosticSeverityError
	source := lspName
	diags[uri] = append(diags[uri], protocol.Diagnostic{
		Range:    r,
		Severity: &severity,
		Source:   &source,
		Message:  diagnosticMessage(err),
	})
	return diags
}

func diagnosticMessage(err error) string {
	var ce *compiler.Error
	if errors.As(err, &ce) {
		return fmt.Sprintf("%s: %s", ce.Kind, ce.Msg)
	}
	return err.Error()
}

// sourceRange converts a 1-based source position (rune column) to a
// one-character range in UTF-16 code units. text is the content of the
// file; columns past its end are counted as one unit each.
func sourceRange(text string, pos compiler.Position) protocol.Range {
	if pos.Line == 0 {
		return protocol.Range{}
	}
	var line string
	if lines := strings.Split(text, "\n"); pos.Line-1 < len(lines) {
		line = lines[pos.Line-1]
	}
	char, width, col := 0, 1, 1
	for _, r := range line {
		if col >= pos.Column {
			width = max(utf16.RuneLen(r), 1)
			break
		}
		char += max(utf16.RuneLen(r), 1)
		col++
	}
	if col < pos.Column {
		char += pos.Column - col
	}
	start := protocol.Position{Line: protocol.UInteger(pos.Line - 1), Character: protocol.UInteger(char)}
	end := start
	end.Character += protocol.UInteger(width)
	return protocol.Range{Start: start, End: end}
}

func completionItem(label string, kind protocol.CompletionItemKind, detail string) protocol.CompletionItem {
	return protocol.CompletionItem{
		Label:      label,
		Kind:       &kind,
		Detail:     &detail,
		InsertText: &label,
	}
}

func complete(ws *Workspace, path, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	seen := make(map[string]bool)
	add := func(label string, kind protocol.CompletionItemKind, detail string) {
		if seen[label] || !strings.HasPrefix(strings.ToLower(label), strings.ToLower(prefix)) {
			return
		}
		seen[label] = true
		items = append(items, completionItem(label, kind, detail))
	}

	if u, ok := ws.Unit(path); ok {
		for _, v := range u.Program.Symbols.Variables() {
			if !v.Name.Anonymous() {
				add(string(v.Name), protocol.CompletionItemKindVariable, fmt.Sprintf("%s %s", v.Scope, v.Value.Type))
			}
		}
	}
	if b := ws.Build(); b != nil {
		for _, v := range b.Globals.Variables() {
			add(string(v.Name), protocol.CompletionItemKindVariable, "GLOBAL")
		}
		names := make([]string, 0, len(b.Scenes))
		for name := range b.Scenes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			add(name, protocol.CompletionItemKindModule, "scene")
		}
	}
	if natives, err := workspaceNatives(ws); err == nil {
		for _, p := range natives.Prototypes() {
			add(string(p.Name), protocol.CompletionItemKindFunction, p.String())
		}
	}
	for _, kw := range compiler.Keywords() {
		add(kw, protocol.CompletionItemKindKeyword, "keyword")
	}

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

func hover(ws *Workspace, path, word string) *protocol.Hover {
	var b strings.Builder
	id := compiler.Identifier(word)

	if u, ok := ws.Unit(path); ok {
		if v, ok := u.Program.Symbols.Lookup(id); ok && !v.Scope.Global() {
			fmt.Fprintf(&b, "**%s** `%s %s`", v.Name, v.Scope, v.Value.Type)
			if v.Value.Known {
				fmt.Fprintf(&b, "\n\nInitial value: `%s`", v.Value)
			}
			if slot, ok := u.Program.Slot(id); ok {
				fmt.Fprintf(&b, "\n\nData offset: `%#x`", slot.Offset)
			} else {
				b.WriteString("\n\nUnused: no data slot")
			}
			return markdown(b.String())
		}
	}
	if build := ws.Build(); build != nil {
		if v, ok := build.Globals.Lookup(id); ok {
			fmt.Fprintf(&b, "**GLOBAL %s** index %d, defined in `%s`", v.Name, v.Index, filepath.Base(v.Unit))
			if v.Value.Known {
				fmt.Fprintf(&b, "\n\nInitial value: `%d`", v.Value.Int)
			}
			return markdown(b.String())
		}
		if u, ok := build.Unit(word); ok {
			fmt.Fprintf(&b, "**[[%s]]** scene %d, hash `%#08x`, file `%s`", word, u.Index, u.Hash, u.FileName())
			return markdown(b.String())
		}
	}
	if natives, err := workspaceNatives(ws); err == nil {
		if p, ok := natives.Lookup(id); ok {
			fmt.Fprintf(&b, "`%s`\n\nNative, hash `%#08x`", p, p.Hash)
			return markdown(b.String())
		}
	}
	return nil
}

func markdown(s string) *protocol.Hover {
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: s,
		},
	}
}

func workspaceNatives(ws *Workspace) (*compiler.Natives, error) {
	if b := ws.Build(); b != nil {
		return b.Natives, nil
	}
	if ws.Manifest != nil {
		return ws.Manifest.NativeTable()
	}
	return compiler.NewNatives(), nil
}

// --- URI helpers ---

func uriToPath(uri protocol.DocumentUri) string {
	u, err := url.Parse(string(uri))
	if err != nil || u.Scheme != "file" {
		return string(uri)
	}
	return filepath.FromSlash(u.Path)
}

func pathToURI(path string) protocol.DocumentUri {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return protocol.DocumentUri(u.String())
}

// --- Text extraction helpers ---

// isIdentRune matches the lexer's identifier characters, which are ASCII,
// so byte-wise scanning never splits a multi-byte rune.
func isIdentRune(ch rune) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}

// extractPrefix returns the identifier fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := byteIndex(line, pos.Character)

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isIdentRune(rune(line[start-1])) {
		start--
	}
	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := byteIndex(line, pos.Character)

	start := col
	for start > 0 && isIdentRune(rune(line[start-1])) {
		start--
	}
	end := col
	for end < len(line) && isIdentRune(rune(line[end])) {
		end++
	}
	return line[start:end]
}

// byteIndex converts a UTF-16 character offset within line to a byte
// index, clamped to the line length.
func byteIndex(line string, character protocol.UInteger) int {
	units := 0
	for i, r := range line {
		if units >= int(character) {
			return i
		}
		units += max(utf16.RuneLen(r), 1)
	}
	return len(line)
}

func boolPtr(b bool) *bool {
	return &b
}
