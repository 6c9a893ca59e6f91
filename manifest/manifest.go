// Package manifest handles aoc.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ManifestName is the file name looked up by Load and FindAndLoad.
const ManifestName = "aoc.toml"

// Manifest represents an aoc.toml project configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Source  Source  `toml:"source"`

	// Dir is the directory containing the aoc.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures the entry script and import resolution.
type Source struct {
	// Entry is the script run by `aoc run` when no file argument is given.
	Entry string `toml:"entry"`

	// Roots are directories, relative to the manifest, that `use` paths
	// are resolved against.
	Roots []string `toml:"roots"`
}

// Load parses an aoc.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if len(m.Source.Roots) == 0 {
		m.Source.Roots = []string{"."}
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find an aoc.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, ManifestName)
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

// SearchRootPaths returns absolute paths for the configured import roots.
func (m *Manifest) SearchRootPaths() []string {
	var paths []string
	for _, root := range m.Source.Roots {
		paths = append(paths, filepath.Join(m.Dir, root))
	}
	return paths
}

// EntryPath returns the absolute path of the entry script, or "" when the
// manifest does not configure one.
func (m *Manifest) EntryPath() string {
	if m.Source.Entry == "" {
		return ""
	}
	return filepath.Join(m.Dir, m.Source.Entry)
}
