package linker

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// GlobalsFileName is the name of the globals file in a build directory.
const GlobalsFileName = "global.bin"

// StatsFileName is the name of the stats file in a build directory.
const StatsFileName = "_STATS_.txt"

// StatsText renders the stats file.
func (b *Build) StatsText() string {
	return fmt.Sprintf("Options: %d\nStack: %d\nBuild: %s\n", b.Stats.MaxOptions, b.Stats.MaxStack, b.ID)
}

// Files returns every output file of the build keyed by file name. The
// glue sources are included when glue is set; listings and symbol files
// when the linker produced them.
func (b *Build) Files(glue bool) map[string][]byte {
	files := map[string][]byte{
		GlobalsFileName: b.GlobalsFile,
		StatsFileName:   []byte(b.StatsText()),
	}
	for _, u := range b.Units {
		base := strings.TrimSuffix(u.FileName(), ".bin")
		files[u.FileName()] = u.Binary
		if u.Listing != "" {
			files[base+".txt"] = []byte(u.Listing)
		}
		if u.Symbols != nil {
			files[base+".sym"] = u.Symbols
		}
	}
	if glue && b.Glue != nil {
		for name, content := range b.Glue.Files() {
			files[name] = []byte(content)
		}
	}
	return files
}

// Write writes the build into dir, creating it if needed.
func (b *Build) Write(dir string, glue bool) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("cannot create output dir %s: %w", dir, err)
	}
	files := b.Files(glue)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, files[name], 0644); err != nil {
			return fmt.Errorf("cannot write %s: %w", path, err)
		}
	}
	log.Infof("wrote %d files to %s", len(names), dir)
	return nil
}
