package manifest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/chazu/narrative/compiler"
)

// SceneName derives the scene name of a source file: its base name without
// the extension. Scene names are referenced as [[name]] and must therefore
// be identifiers.
// "scenes/forest_path.nl" -> "forest_path"
func SceneName(path string) (string, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := checkIdentifier(name); err != nil {
		return "", fmt.Errorf("scene %s: %w", path, err)
	}
	return name, nil
}

// reservedNames lists the keywords of the scene language, which cannot
// name a scene or a native.
var reservedNames = func() map[string]bool {
	m := make(map[string]bool)
	for _, kw := range compiler.Keywords() {
		m[kw] = true
	}
	return m
}()

// IsReserved reports whether name is a keyword of the scene language.
func IsReserved(name string) bool {
	return reservedNames[name]
}

func checkIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("empty name")
	}
	for i, r := range name {
		letter := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !letter && (i == 0 || r < '0' || r > '9') {
			return fmt.Errorf("%q is not an identifier", name)
		}
	}
	if IsReserved(name) {
		return fmt.Errorf("%q is a reserved word", name)
	}
	return nil
}
