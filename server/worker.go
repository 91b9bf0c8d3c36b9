package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/chazu/narrative/compiler"
	"github.com/chazu/narrative/linker"
	"github.com/chazu/narrative/manifest"
)

// Workspace is the build state of one project: the open documents and the
// result of the last rebuild. It is owned by a BuildWorker.
type Workspace struct {
	Manifest *manifest.Manifest // nil when editing files outside a project

	overlays map[string]string // path -> unsaved content
	build    *linker.Build     // last successful build
	err      error             // error of the last rebuild, nil on success
}

// NewWorkspace creates a workspace for the project m. m may be nil, in
// which case every open document is compiled on its own.
func NewWorkspace(m *manifest.Manifest) *Workspace {
	return &Workspace{Manifest: m, overlays: make(map[string]string)}
}

// SetDocument records the editor content of path.
func (ws *Workspace) SetDocument(path, text string) { ws.overlays[path] = text }

// CloseDocument drops the editor content of path.
func (ws *Workspace) CloseDocument(path string) { delete(ws.overlays, path) }

// Documents returns the open document paths.
func (ws *Workspace) Documents() []string {
	paths := make([]string, 0, len(ws.overlays))
	for p := range ws.overlays {
		paths = append(paths, p)
	}
	return paths
}

// Text returns the editor content of path, or its content on disk when it
// is not open. Unreadable files are empty.
func (ws *Workspace) Text(path string) string {
	if text, ok := ws.overlays[path]; ok {
		return text
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

// Build returns the last successful build, or nil.
func (ws *Workspace) Build() *linker.Build { return ws.build }

// Err returns the error of the last rebuild.
func (ws *Workspace) Err() error { return ws.err }

// Rebuild links the whole project with the open documents overlaid. The
// last successful build is kept when the rebuild fails.
func (ws *Workspace) Rebuild(ctx context.Context) error {
	var b *linker.Build
	var err error
	if ws.Manifest != nil {
		b, err = linker.LinkProject(ctx, ws.Manifest, func(path string) (string, bool) {
			text, ok := ws.overlays[path]
			return text, ok
		})
	} else {
		b, err = ws.linkDocuments(ctx)
	}
	ws.err = err
	if err == nil {
		ws.build = b
	}
	return err
}

// linkDocuments links the open documents as one build, each named after
// its file.
func (ws *Workspace) linkDocuments(ctx context.Context) (*linker.Build, error) {
	paths := ws.Documents()
	sort.Strings(paths)
	sources := make([]linker.Source, 0, len(paths))
	for _, p := range paths {
		name, err := manifest.SceneName(p)
		if err != nil {
			return nil, &compiler.Error{Kind: compiler.SemanticError, File: p, Msg: err.Error()}
		}
		sources = append(sources, linker.Source{Name: name, Path: p, Text: ws.overlays[p]})
	}
	l := linker.New(compiler.NewNatives())
	l.Listing, l.Symbols = false, false
	return l.Link(ctx, sources)
}

// Unit returns the unit built from path in the last successful build.
func (ws *Workspace) Unit(path string) (*linker.Unit, bool) {
	if ws.build == nil {
		return nil, false
	}
	for _, u := range ws.build.Units {
		if samePath(u.Source.Path, path) {
			return u, true
		}
	}
	return nil, false
}

func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}

// ---------------------------------------------------------------------------
// BuildWorker
// ---------------------------------------------------------------------------

var errWorkerStopped = errors.New("build worker stopped")

type buildRequest struct {
	fn   func(*Workspace) interface{}
	done chan buildResult
}

type buildResult struct {
	value interface{}
	err   error
}

// BuildWorker serializes all workspace access through a single goroutine.
// Editor notifications arrive concurrently; rebuilds and queries must not
// interleave.
type BuildWorker struct {
	ws       *Workspace
	requests chan buildRequest
	quit     chan struct{}
}

// NewBuildWorker creates a BuildWorker and starts the processing goroutine.
func NewBuildWorker(ws *Workspace) *BuildWorker {
	w := &BuildWorker{
		ws:       ws,
		requests: make(chan buildRequest, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *BuildWorker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn on the workspace, recovering from panics.
func (w *BuildWorker) execute(fn func(*Workspace) interface{}) buildResult {
	var result buildResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				result.err = fmt.Errorf("%v", r)
			}
		}()
		result.value = fn(w.ws)
	}()
	return result
}

// Do submits fn for execution on the worker goroutine and blocks until it
// completes. A panic in fn is returned as an error.
func (w *BuildWorker) Do(fn func(*Workspace) interface{}) (interface{}, error) {
	select {
	case <-w.quit:
		return nil, errWorkerStopped
	default:
	}
	req := buildRequest{
		fn:   fn,
		done: make(chan buildResult, 1),
	}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, errWorkerStopped
	}
	select {
	case result := <-req.done:
		return result.value, result.err
	case <-w.quit:
		return nil, errWorkerStopped
	}
}

// Stop shuts down the worker goroutine.
func (w *BuildWorker) Stop() {
	close(w.quit)
}
