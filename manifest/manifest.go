// Package manifest handles narrative.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/chazu/narrative/compiler"
)

// FileName is the manifest file looked up in a project directory.
const FileName = "narrative.toml"

// SourceExt is the extension of scene source files.
const SourceExt = ".nl"

// Manifest represents a narrative.toml project configuration.
type Manifest struct {
	Project Project  `toml:"project"`
	Source  Source   `toml:"source"`
	Output  Output   `toml:"output"`
	Natives []Native `toml:"native"`

	// Dir is the directory containing the narrative.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures scene source locations. Files, when given, are used
// as listed; otherwise every *.nl file in Dirs is used in sorted order.
// The resulting order is the scene index order.
type Source struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

// Output configures what a build writes.
type Output struct {
	Dir     string `toml:"dir"`
	Listing bool   `toml:"listing"`
	Symbols bool   `toml:"symbols"`
	Glue    bool   `toml:"glue"`
}

// Native declares a host function scripts may call.
type Native struct {
	Name    string   `toml:"name"`
	Returns string   `toml:"returns"`
	Params  []string `toml:"params"`
}

// Load parses a narrative.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// Parse decodes manifest text and applies defaults. Dir is left empty.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %s", undecoded[0])
	}

	// Defaults
	if len(m.Source.Dirs) == 0 && len(m.Source.Files) == 0 {
		m.Source.Dirs = []string{"scenes"}
	}
	if m.Output.Dir == "" {
		m.Output.Dir = "build"
	}
	for _, key := range []string{"listing", "symbols", "glue"} {
		if md.IsDefined("output", key) {
			continue
		}
		switch key {
		case "listing":
			m.Output.Listing = true
		case "symbols":
			m.Output.Symbols = true
		case "glue":
			m.Output.Glue = true
		}
	}

	if _, err := m.NativeTable(); err != nil {
		return nil, err
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a narrative.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// NativeTable builds the native prototype table. Types are written as in
// scene source (INT, STRING*); anything the VM stack cannot carry, a
// duplicate name or a name hash collision is an error.
func (m *Manifest) NativeTable() (*compiler.Natives, error) {
	n := compiler.NewNatives()
	for _, nat := range m.Natives {
		if err := checkIdentifier(nat.Name); err != nil {
			return nil, fmt.Errorf("native %q: %w", nat.Name, err)
		}
		ret, err := compiler.ParseValueType(nat.Returns)
		if err != nil {
			return nil, fmt.Errorf("native %s: %w", nat.Name, err)
		}
		params := make([]compiler.ValueType, len(nat.Params))
		for i, p := range nat.Params {
			if params[i], err = compiler.ParseValueType(p); err != nil {
				return nil, fmt.Errorf("native %s parameter %d: %w", nat.Name, i, err)
			}
		}
		if _, err := n.Register(nat.Name, ret, params...); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// SourceFiles returns the absolute paths of the scene sources in scene
// index order.
func (m *Manifest) SourceFiles() ([]string, error) {
	if len(m.Source.Files) > 0 {
		out := make([]string, len(m.Source.Files))
		for i, f := range m.Source.Files {
			out[i] = m.abs(f)
		}
		return out, nil
	}

	var out []string
	for _, d := range m.SourceDirPaths() {
		entries, err := os.ReadDir(d)
		if err != nil {
			return nil, fmt.Errorf("cannot read source dir %s: %w", d, err)
		}
		var names []string
		for _, e := range entries {
			if !e.IsDir() && filepath.Ext(e.Name()) == SourceExt {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, n := range names {
			out = append(out, filepath.Join(d, n))
		}
	}
	return out, nil
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, m.abs(d))
	}
	return paths
}

// OutputDir returns the absolute build output directory.
func (m *Manifest) OutputDir() string {
	return m.abs(m.Output.Dir)
}

func (m *Manifest) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
