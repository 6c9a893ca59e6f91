package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[project]
name = "adventofcode"
version = "0.1.0"

[source]
entry = "main.aoc"
roots = ["lib", "vendor"]
`
	if err := os.WriteFile(filepath.Join(dir, "aoc.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "adventofcode" {
		t.Errorf("project name = %q, want adventofcode", m.Project.Name)
	}
	if m.Project.Version != "0.1.0" {
		t.Errorf("project version = %q, want 0.1.0", m.Project.Version)
	}
	if m.Source.Entry != "main.aoc" {
		t.Errorf("source entry = %q, want main.aoc", m.Source.Entry)
	}
	if len(m.Source.Roots) != 2 {
		t.Errorf("source roots count = %d, want 2", len(m.Source.Roots))
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[project]
name = "minimal"
`
	if err := os.WriteFile(filepath.Join(dir, "aoc.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Default import root is the project directory itself
	if len(m.Source.Roots) != 1 || m.Source.Roots[0] != "." {
		t.Errorf("default source roots = %v, want [.]", m.Source.Roots)
	}
	if m.EntryPath() != "" {
		t.Errorf("EntryPath = %q, want empty", m.EntryPath())
	}
}

func TestLoadManifestInvalidToml(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "aoc.toml"), []byte("[project\nname="), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(dir); err == nil {
		t.Error("expected error for invalid toml, got none")
	}
}

func TestFindAndLoad(t *testing.T) {
	// Manifest at the top of a nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	tomlContent := `[project]
name = "found-project"
`
	if err := os.WriteFile(filepath.Join(dir, "aoc.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	// Should find the manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no aoc.toml exists")
	}
}

func TestSearchRootPaths(t *testing.T) {
	m := &Manifest{
		Dir: "/app",
		Source: Source{
			Roots: []string{"lib", "vendor"},
		},
	}

	paths := m.SearchRootPaths()
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths, got %d", len(paths))
	}
	if paths[0] != "/app/lib" {
		t.Errorf("paths[0] = %q, want /app/lib", paths[0])
	}
	if paths[1] != "/app/vendor" {
		t.Errorf("paths[1] = %q, want /app/vendor", paths[1])
	}
}

func TestEntryPath(t *testing.T) {
	m := &Manifest{
		Dir: "/app",
		Source: Source{
			Entry: "main.aoc",
		},
	}

	if got := m.EntryPath(); got != "/app/main.aoc" {
		t.Errorf("EntryPath = %q, want /app/main.aoc", got)
	}
}
