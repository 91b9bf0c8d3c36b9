package linker

import (
	"context"
	"fmt"
	"os"

	"github.com/chazu/narrative/manifest"
)

// Overlay returns unsaved content for a path, if any.
type Overlay func(path string) (string, bool)

// LoadSources reads the scene sources of a project in scene index order.
// Content from overlay takes precedence over the file on disk.
func LoadSources(m *manifest.Manifest, overlay Overlay) ([]Source, error) {
	paths, err := m.SourceFiles()
	if err != nil {
		return nil, err
	}
	sources := make([]Source, 0, len(paths))
	for _, path := range paths {
		name, err := manifest.SceneName(path)
		if err != nil {
			return nil, err
		}
		src := Source{Name: name, Path: path}
		if text, ok := overlayText(overlay, path); ok {
			src.Text = text
		} else {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("cannot read scene %s: %w", path, err)
			}
			src.Text = string(data)
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func overlayText(overlay Overlay, path string) (string, bool) {
	if overlay == nil {
		return "", false
	}
	return overlay(path)
}

// LinkProject links the project described by m.
func LinkProject(ctx context.Context, m *manifest.Manifest, overlay Overlay) (*Build, error) {
	natives, err := m.NativeTable()
	if err != nil {
		return nil, err
	}
	sources, err := LoadSources(m, overlay)
	if err != nil {
		return nil, err
	}
	l := New(natives)
	l.Listing = m.Output.Listing
	l.Symbols = m.Output.Symbols
	return l.Link(ctx, sources)
}
