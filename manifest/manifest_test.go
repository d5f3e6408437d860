package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/modder/cil"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "tile-patches"

[inputs]
globs = ["bin/*.mod", "extra/Game.mod"]
search = ["refs"]

[output]
dir = "patched"
report = "hooks.db"

[[modification]]
name = "public"
order = 0
kind = "public"
targets = ["Game"]

[[modification]]
name = "tile hooks"
order = 20
patterns = ["[Game]Game.Tile.Update*$be"]

[[modification]]
name = "tile interface"
order = 10
kind = "interface"
patterns = ["[Game]Game.Tile"]
targets = ["Game, Version=1.0.0.0"]
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "tile-patches" {
		t.Errorf("project name = %q, want tile-patches", m.Project.Name)
	}
	if len(m.Inputs.Globs) != 2 {
		t.Errorf("input globs count = %d, want 2", len(m.Inputs.Globs))
	}
	if got := m.SearchDirPaths(); len(got) != 1 || got[0] != filepath.Join(m.Dir, "refs") {
		t.Errorf("search dirs = %v, want [%s]", got, filepath.Join(m.Dir, "refs"))
	}
	if m.OutputDir() != filepath.Join(m.Dir, "patched") {
		t.Errorf("output dir = %q", m.OutputDir())
	}
	if m.ReportPath() != filepath.Join(m.Dir, "hooks.db") {
		t.Errorf("report path = %q", m.ReportPath())
	}
	if len(m.Modifications) != 3 {
		t.Fatalf("modifications count = %d, want 3", len(m.Modifications))
	}
	if m.Modifications[1].Kind != KindHook {
		t.Errorf("default kind = %q, want hook", m.Modifications[1].Kind)
	}

	var order []string
	for _, mod := range m.Registry() {
		order = append(order, mod.Name)
	}
	want := []string{"public", "tile interface", "tile hooks"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("registry order = %v, want %v", order, want)
		}
	}
	if m.Modifications[0].Name != "public" || m.Modifications[1].Name != "tile hooks" {
		t.Error("Registry must not reorder the manifest itself")
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(m.Inputs.Globs) != 1 || m.Inputs.Globs[0] != "*.mod" {
		t.Errorf("default globs = %v, want [*.mod]", m.Inputs.Globs)
	}
	if m.OutputDir() != filepath.Join(m.Dir, "out") {
		t.Errorf("default output dir = %q", m.OutputDir())
	}
	if m.ReportPath() != "" {
		t.Errorf("report path = %q, want none", m.ReportPath())
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", `[project`},
		{"unknown kind", `
[[modification]]
name = "x"
kind = "rename"
patterns = ["A.*"]
`},
		{"hook without patterns", `
[[modification]]
name = "x"
`},
		{"duplicate names", `
[[modification]]
name = "x"
kind = "public"

[[modification]]
name = "x"
kind = "public"
`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tc.content)
			_, err := Load(dir)
			if !errors.Is(err, cil.ErrConfiguration) {
				t.Fatalf("Load error = %v, want configuration error", err)
			}
		})
	}

	if _, err := Load(t.TempDir()); !errors.Is(err, cil.ErrIO) {
		t.Errorf("missing manifest error = %v, want i/o error", err)
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, `[project]
name = "found-project"
`)

	// Should find manifest when starting from a deep subdirectory
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
		t.Error("expected nil manifest when no modder.toml exists")
	}
}

func TestExpandGlobs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"bin/Game.mod", "bin/Lib.mod", "bin/notes.txt", "Game.mod"} {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := ExpandGlobs(dir, []string{"bin/*.mod", "bin/Game.mod", "*.mod"})
	if err != nil {
		t.Fatalf("ExpandGlobs failed: %v", err)
	}
	want := []string{
		filepath.Join(dir, "bin", "Game.mod"),
		filepath.Join(dir, "bin", "Lib.mod"),
		filepath.Join(dir, "Game.mod"),
	}
	if len(files) != len(want) {
		t.Fatalf("files = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, files[i], want[i])
		}
	}

	if _, err := ExpandGlobs(dir, []string{"nothing/*.mod"}); !errors.Is(err, cil.ErrIO) {
		t.Errorf("empty glob error = %v, want i/o error", err)
	}
	if _, err := ExpandGlobs(dir, []string{"bin/[.mod"}); !errors.Is(err, cil.ErrConfiguration) {
		t.Errorf("bad glob error = %v, want configuration error", err)
	}
}

func TestApplies(t *testing.T) {
	game := cil.NewModule("Game", "1.0.0.0")
	lib := cil.NewModule("Lib", "1.0.0.0")

	all := Modification{Name: "all"}
	byName := Modification{Name: "name", Targets: []string{"Game"}}
	byIdentity := Modification{Name: "identity", Targets: []string{"Lib, Version=1.0.0.0"}}
	wrongVersion := Modification{Name: "version", Targets: []string{"Game, Version=2.0.0.0"}}

	tests := []struct {
		mod  Modification
		m    *cil.Module
		want bool
	}{
		{all, game, true},
		{all, lib, true},
		{byName, game, true},
		{byName, lib, false},
		{byIdentity, lib, true},
		{byIdentity, game, false},
		{wrongVersion, game, false},
	}
	for _, tc := range tests {
		if got := tc.mod.Applies(tc.m); got != tc.want {
			t.Errorf("%s.Applies(%s) = %v, want %v", tc.mod.Name, tc.m.Name, got, tc.want)
		}
	}
}
