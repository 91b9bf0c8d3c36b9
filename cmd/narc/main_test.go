package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/narrative/compiler"
	"github.com/chazu/narrative/linker"
	"github.com/chazu/narrative/manifest"
)

func writeProject(t *testing.T) string {
	t.Helper()
	return writeFiles(t, map[string]string{
		manifest.FileName: `[project]
name = "demo"

[[native]]
name = "roll"
returns = "INT"
`,
		"scenes/a_intro.nl": `GLOBAL gold = 1;
"Intro %gold";
"Walk" = { gold = gold + 1; [[b_road]]; }
"Stay" = { "stayed"; }
`,
		"scenes/b_road.nl": `GLOBAL gold;
x = roll();
"Road %gold %x";
`,
	})
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestBuildCommand(t *testing.T) {
	dir := writeProject(t)
	outDir := filepath.Join(t.TempDir(), "out")

	out, err := execute(t, "build", dir, "-o", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "built 2 scenes into "+outDir)

	for _, name := range []string{"00000000.bin", "00000001.bin", "global.bin", "_STATS_.txt", "call_interface.c", "scene_interface.c"} {
		_, err := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, err, name)
	}

	out, err = execute(t, "disasm", filepath.Join(outDir, "00000000.bin"), "--symbols", filepath.Join(outDir, "00000000.sym"))
	require.NoError(t, err)
	assert.Contains(t, out, "[[a_intro]]")
	assert.Contains(t, out, "GLOBAL gold")
	assert.Contains(t, out, "[[b_road]] 00000001.bin")
	disasmSymbols = ""
	buildOutput = ""
}

func TestBuildCommandReportsErrors(t *testing.T) {
	dir := writeProject(t)
	bad := filepath.Join(dir, "scenes", "b_road.nl")
	require.NoError(t, os.WriteFile(bad, []byte("x = nope();"), 0644))

	_, err := execute(t, "build", dir, "-o", t.TempDir())
	require.Error(t, err)
	assert.True(t, compiler.IsKind(err, compiler.SemanticError), "got %v", err)
	assert.Contains(t, err.Error(), "b_road.nl")
	buildOutput = ""
}

func TestBuildCommandWithoutManifest(t *testing.T) {
	_, err := execute(t, "build", t.TempDir())
	assert.ErrorContains(t, err, manifest.FileName)
}

func TestTokensCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.nl")
	require.NoError(t, os.WriteFile(path, []byte("#n = (4)\nx = #n;"), 0644))

	out, err := execute(t, "tokens", path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "IDENTIFIER(x)")
	assert.Contains(t, out, "INTEGER(4)")
	assert.Contains(t, lines[len(lines)-1], "EOF")
}

func TestPlay(t *testing.T) {
	m, err := manifest.Load(writeProject(t))
	require.NoError(t, err)
	b, err := linker.LinkProject(context.Background(), m, nil)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, play(b, "a_intro", strings.NewReader("9\n1\n"), &out, 10000))
	text := out.String()
	assert.Contains(t, text, "Intro 1\n")
	assert.Contains(t, text, "  1) Walk\n  2) Stay\n")
	assert.Contains(t, text, "enter a number from 1 to 2")
	assert.Contains(t, text, "Road 2 0\n")
	assert.NotContains(t, text, "stayed")
}

func TestPlayEndOfInput(t *testing.T) {
	m, err := manifest.Load(writeProject(t))
	require.NoError(t, err)
	b, err := linker.LinkProject(context.Background(), m, nil)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, play(b, "a_intro", strings.NewReader(""), &out, 10000))
	assert.NotContains(t, out.String(), "Road")

	assert.Error(t, play(b, "missing", strings.NewReader(""), &out, 0))
}

func TestPlayKeepsStoreAcrossScenes(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		manifest.FileName: "[project]\nname = \"loop\"\n",
		"scenes/a.nl":     `STORE v = 0; v = v + 1; "v=%v"; "go" = { [[b]]; }`,
		"scenes/b.nl":     `"back" = { [[a]]; }`,
	})
	m, err := manifest.Load(dir)
	require.NoError(t, err)
	b, err := linker.LinkProject(context.Background(), m, nil)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, play(b, "a", strings.NewReader("1\n1\n1\n1\n"), &out, 10000))
	text := out.String()
	assert.Contains(t, text, "v=1\n")
	assert.Contains(t, text, "v=2\n")
	assert.Contains(t, text, "v=3\n")
	assert.Less(t, strings.Index(text, "v=1"), strings.Index(text, "v=2"))
}
