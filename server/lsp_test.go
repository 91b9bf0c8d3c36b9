package server

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/narrative/compiler"
	"github.com/chazu/narrative/manifest"
)

// ---------------------------------------------------------------------------
// Text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"simple word", "x = gol", protocol.Position{Line: 0, Character: 7}, "gol"},
		{"at start", "gold", protocol.Position{Line: 0, Character: 4}, "gold"},
		{"empty line", "", protocol.Position{Line: 0, Character: 0}, ""},
		{"multi line", "first\nsecond\nfor", protocol.Position{Line: 2, Character: 3}, "for"},
		{"after bracket", "[[fo", protocol.Position{Line: 0, Character: 4}, "fo"},
		{"after percent", `"Gold: %go`, protocol.Position{Line: 0, Character: 10}, "go"},
		{"cursor at beginning", "hello", protocol.Position{Line: 0, Character: 0}, ""},
		{"line beyond document", "single", protocol.Position{Line: 5, Character: 0}, ""},
		{"column beyond line", "ab", protocol.Position{Line: 0, Character: 9}, "ab"},
		{"after astral character", "😀 go", protocol.Position{Line: 0, Character: 5}, "go"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractPrefix(tc.text, tc.pos))
		})
	}
}

func TestExtractWord(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"inside", "gold = gold + 1;", protocol.Position{Line: 0, Character: 2}, "gold"},
		{"at end", "gold = 1;", protocol.Position{Line: 0, Character: 4}, "gold"},
		{"second word", "x = custom_add(1, 2);", protocol.Position{Line: 0, Character: 6}, "custom_add"},
		{"scene", "[[forest]];", protocol.Position{Line: 0, Character: 4}, "forest"},
		{"punctuation", "x = 1;", protocol.Position{Line: 0, Character: 3}, ""},
		{"multi line", "a;\nbeta;", protocol.Position{Line: 1, Character: 1}, "beta"},
		{"line beyond document", "a;", protocol.Position{Line: 3, Character: 0}, ""},
		{"after astral character", "😀 gold", protocol.Position{Line: 0, Character: 3}, "gold"},
		{"after accent", "é=gold", protocol.Position{Line: 0, Character: 3}, "gold"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractWord(tc.text, tc.pos))
		})
	}
}

func TestSourceRange(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		pos   compiler.Position
		char  protocol.UInteger
		width protocol.UInteger
	}{
		{"ascii", "x = nope();", compiler.Position{Line: 1, Column: 5}, 4, 1},
		{"after astral character", "a😀b = nope;", compiler.Position{Line: 1, Column: 3}, 3, 1},
		{"on astral character", "a😀b", compiler.Position{Line: 1, Column: 2}, 1, 2},
		{"second line", "x;\né y", compiler.Position{Line: 2, Column: 3}, 2, 1},
		{"past end of line", "ab", compiler.Position{Line: 1, Column: 4}, 3, 1},
		{"no text", "", compiler.Position{Line: 3, Column: 5}, 4, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := sourceRange(tc.text, tc.pos)
			assert.Equal(t, protocol.UInteger(tc.pos.Line-1), r.Start.Line)
			assert.Equal(t, tc.char, r.Start.Character)
			assert.Equal(t, tc.char+tc.width, r.End.Character)
		})
	}
	assert.Equal(t, protocol.Range{}, sourceRange("x", compiler.Position{}))
}

func TestWorkspaceText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.nl")
	require.NoError(t, os.WriteFile(path, []byte("on disk"), 0644))

	ws := NewWorkspace(nil)
	assert.Equal(t, "on disk", ws.Text(path))
	ws.SetDocument(path, "in editor")
	assert.Equal(t, "in editor", ws.Text(path))
	assert.Equal(t, "", ws.Text(filepath.Join(t.TempDir(), "missing.nl")))
}

func TestURIRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenes", "intro.nl")
	uri := pathToURI(path)
	assert.True(t, strings.HasPrefix(string(uri), "file://"), uri)
	assert.Equal(t, path, uriToPath(uri))
	assert.Equal(t, "untitled:x", uriToPath("untitled:x"))
}

func TestBoolPtr(t *testing.T) {
	assert.True(t, *boolPtr(true))
	assert.False(t, *boolPtr(false))
}

// ---------------------------------------------------------------------------
// Workspace-backed features
// ---------------------------------------------------------------------------

type project struct {
	dir    string
	ws     *Workspace
	intro  string
	forest string
}

func newProject(t *testing.T) *project {
	t.Helper()
	dir := t.TempDir()
	write := func(rel, content string) string {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return path
	}
	write(manifest.FileName, `[project]
name = "demo"

[[native]]
name = "custom_add"
returns = "INT"
params = ["INT", "INT"]
`)
	p := &project{dir: dir}
	p.intro = write("scenes/intro.nl", "GLOBAL gold;\n\"Welcome\";\nINT coins = 3;\ngold = gold + coins;\n\"Go\" = { [[forest]]; }\n")
	p.forest = write("scenes/forest.nl", "GLOBAL gold = 10;\n\"Gold: %gold\";\n")

	m, err := manifest.Load(dir)
	require.NoError(t, err)
	p.ws = NewWorkspace(m)
	return p
}

func TestWorkspaceRebuild(t *testing.T) {
	p := newProject(t)
	require.NoError(t, p.ws.Rebuild(context.Background()))
	require.NotNil(t, p.ws.Build())
	assert.Len(t, p.ws.Build().Units, 2)

	u, ok := p.ws.Unit(p.intro)
	require.True(t, ok)
	assert.Equal(t, "intro", u.Source.Name)
}

func TestWorkspaceKeepsLastGoodBuild(t *testing.T) {
	p := newProject(t)
	require.NoError(t, p.ws.Rebuild(context.Background()))
	good := p.ws.Build()

	p.ws.SetDocument(p.forest, "GLOBAL gold = 10;\nx = ;\n")
	assert.Error(t, p.ws.Rebuild(context.Background()))
	assert.Same(t, good, p.ws.Build())
	assert.Error(t, p.ws.Err())

	p.ws.CloseDocument(p.forest)
	require.NoError(t, p.ws.Rebuild(context.Background()))
	assert.NoError(t, p.ws.Err())
}

func TestDiagnoseReportsErrorOnNamedFile(t *testing.T) {
	p := newProject(t)
	p.ws.SetDocument(p.intro, "GLOBAL gold;\n\"Welcome\";\n")
	p.ws.SetDocument(p.forest, "GLOBAL gold = 10;\n\"ok\";\n  x = nope();\n")
	p.ws.Rebuild(context.Background())

	diags := diagnose(p.ws, pathToURI(p.intro))
	assert.Empty(t, diags[pathToURI(p.intro)], "open documents without errors are cleared")

	got := diags[pathToURI(p.forest)]
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Message, "semantic error")
	assert.Contains(t, got[0].Message, "nope")
	assert.Equal(t, protocol.UInteger(2), got[0].Range.Start.Line)
	assert.Equal(t, protocol.DiagnosticSeverityError, *got[0].Severity)
}

func TestDiagnoseColumnInUTF16(t *testing.T) {
	p := newProject(t)
	p.ws.SetDocument(p.forest, "GLOBAL gold = 10;\n\"😀\"; x = nope();\n")
	p.ws.Rebuild(context.Background())

	got := diagnose(p.ws, pathToURI(p.forest))[pathToURI(p.forest)]
	require.Len(t, got, 1)
	assert.Equal(t, protocol.UInteger(1), got[0].Range.Start.Line)
	// the emoji is two UTF-16 units, so nope starts at unit 10, not rune 9
	assert.Equal(t, protocol.UInteger(10), got[0].Range.Start.Character)
}

func TestDiagnoseCleanBuild(t *testing.T) {
	p := newProject(t)
	p.ws.SetDocument(p.intro, "GLOBAL gold;\n\"Welcome\";\n")
	require.NoError(t, p.ws.Rebuild(context.Background()))

	diags := diagnose(p.ws, pathToURI(p.intro))
	require.Contains(t, diags, pathToURI(p.intro))
	assert.Empty(t, diags[pathToURI(p.intro)])
}

func TestTrackClearsFixedDocuments(t *testing.T) {
	s := &LspServer{flagged: make(map[protocol.DocumentUri]bool)}
	bad := protocol.DocumentUri("file:///a.nl")

	out := s.track(map[protocol.DocumentUri][]protocol.Diagnostic{bad: {{Message: "x"}}})
	assert.Len(t, out[bad], 1)

	out = s.track(map[protocol.DocumentUri][]protocol.Diagnostic{})
	require.Contains(t, out, bad)
	assert.Empty(t, out[bad])

	out = s.track(map[protocol.DocumentUri][]protocol.Diagnostic{})
	assert.NotContains(t, out, bad)
}

func labels(items []protocol.CompletionItem) []string {
	var out []string
	for _, it := range items {
		out = append(out, it.Label)
	}
	return out
}

func TestComplete(t *testing.T) {
	p := newProject(t)
	require.NoError(t, p.ws.Rebuild(context.Background()))

	assert.Equal(t, []string{"gold"}, labels(complete(p.ws, p.intro, "go")))
	assert.Equal(t, []string{"coins"}, labels(complete(p.ws, p.intro, "co")))
	assert.Equal(t, []string{"forest", "FLOAT"}, labels(complete(p.ws, p.intro, "f")))
	assert.Equal(t, []string{"custom_add"}, labels(complete(p.ws, p.intro, "cust")))
	assert.Equal(t, []string{"ELIF", "ELSE"}, labels(complete(p.ws, p.intro, "EL")))

	items := complete(p.ws, p.intro, "custom")
	require.Len(t, items, 1)
	assert.Equal(t, "INT custom_add(INT, INT)", *items[0].Detail)
	assert.Equal(t, protocol.CompletionItemKindFunction, *items[0].Kind)
}

func TestCompleteWithoutBuild(t *testing.T) {
	p := newProject(t)
	p.ws.SetDocument(p.intro, "x = ;")
	p.ws.Rebuild(context.Background())

	// natives still come from the manifest
	assert.Equal(t, []string{"custom_add"}, labels(complete(p.ws, p.intro, "cu")))
}

func TestHover(t *testing.T) {
	p := newProject(t)
	require.NoError(t, p.ws.Rebuild(context.Background()))

	tests := []struct {
		word string
		want []string
	}{
		{"coins", []string{"**coins**", "TEMPORAL INT", "Initial value", "Data offset"}},
		{"gold", []string{"GLOBAL gold", "index 0", "forest.nl", "`10`"}},
		{"forest", []string{"[[forest]]", "scene 0", "00000000.bin"}},
		{"custom_add", []string{"INT custom_add(INT, INT)", "Native"}},
	}
	for _, tc := range tests {
		t.Run(tc.word, func(t *testing.T) {
			h := hover(p.ws, p.intro, tc.word)
			require.NotNil(t, h)
			content, ok := h.Contents.(protocol.MarkupContent)
			require.True(t, ok)
			assert.Equal(t, protocol.MarkupKindMarkdown, content.Kind)
			for _, w := range tc.want {
				assert.Contains(t, content.Value, w)
			}
		})
	}

	assert.Nil(t, hover(p.ws, p.intro, "nothing_here"))
}

func TestSingleFileMode(t *testing.T) {
	ws := NewWorkspace(nil)
	path := filepath.Join(t.TempDir(), "solo.nl")
	ws.SetDocument(path, "INT x = 2; x = x + 3; \"Value: %x\";")
	require.NoError(t, ws.Rebuild(context.Background()))

	assert.Equal(t, []string{"x"}, labels(complete(ws, path, "x")))

	ws.SetDocument(path, "[[elsewhere]];")
	assert.Error(t, ws.Rebuild(context.Background()))
	diags := diagnose(ws, pathToURI(path))
	require.Len(t, diags[pathToURI(path)], 1)
}
