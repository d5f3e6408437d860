package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/modder/cil"
	"github.com/chazu/modder/cil/ciltest"
	"github.com/chazu/modder/image"
	"github.com/chazu/modder/report"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func gameImage(t *testing.T) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	paths, err := image.Save(dir, ciltest.Game())
	require.NoError(t, err)
	return dir, paths[0]
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCommand()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"patch", "query", "dump", "run"} {
		assert.Contains(t, names, want)
	}
	// '*' is the only wildcard; '?' matches itself.
	assert.Contains(t, cmd.Long, "'*' matches any")
	assert.NotContains(t, cmd.Long, "'?'")
}

func TestPatchWithoutOptionsPrintsHelp(t *testing.T) {
	dir, path := gameImage(t)
	out := filepath.Join(dir, "patched")

	for _, args := range [][]string{
		{"patch", "-a", path, "-o", out},
		{"patch", "-m", "Game.Foo.Bar*", "-o", out},
	} {
		got, err := execute(t, args...)
		require.NoError(t, err)
		assert.Contains(t, got, "Usage:")
		_, err = os.Stat(out)
		assert.True(t, os.IsNotExist(err), "nothing written")
	}
}

func TestPatch(t *testing.T) {
	dir, path := gameImage(t)
	out := filepath.Join(dir, "patched")
	db := filepath.Join(dir, "hooks.db")

	got, err := execute(t, "patch",
		"-m", "Game.Foo.Bar(System.Int32)",
		"-m", "Game.Foo.Other()$b",
		"-a", path, "-o", out, "--report", db)
	require.NoError(t, err)
	assert.Contains(t, got, "hooked 2 method(s), 3 slot(s)")

	patched, err := image.Load(filepath.Join(out, "Game.mod"), nil)
	require.NoError(t, err)
	assert.NotNil(t, ciltest.Foo(patched).NestedType("ModHooks"))

	rep, err := report.ReadSQLite(db)
	require.NoError(t, err)
	assert.Len(t, rep.Entries, 3)
}

func TestPatchBadPattern(t *testing.T) {
	dir, path := gameImage(t)
	_, err := execute(t, "patch", "-m", "Game.Foo.Bar*$z", "-a", path, "-o", filepath.Join(dir, "out"))
	assert.True(t, errors.Is(err, cil.ErrConfiguration))
}

func TestQuery(t *testing.T) {
	_, path := gameImage(t)

	got, err := execute(t, "query", "Game.Foo.Bar*", "-a", path)
	require.NoError(t, err)
	assert.Contains(t, got, "Game.Foo.Bar")
	assert.Contains(t, got, "Game.Foo.BarBaz")

	got, err = execute(t, "query", "Nothing", "-a", path)
	require.NoError(t, err)
	assert.Contains(t, got, "no matches")
}

func TestDump(t *testing.T) {
	_, path := gameImage(t)

	got, err := execute(t, "dump", path, "Game.Foo.Twice*")
	require.NoError(t, err)
	assert.Contains(t, got, "; module Game, Version=1.0.0.0")
	assert.Contains(t, got, "Twice")
	assert.NotContains(t, got, "BarBaz")
}

func TestRun(t *testing.T) {
	dir, _ := gameImage(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "modder.toml"), []byte(`
[project]
name = "cli"

[[modification]]
name = "hooks"
patterns = ["Game.Foo.BarBaz*$e"]
`), 0644))

	got, err := execute(t, "run", dir)
	require.NoError(t, err)
	assert.Contains(t, got, "cli: 1 module(s)")
	_, err = os.Stat(filepath.Join(dir, "out", "Game.mod"))
	assert.NoError(t, err)

	_, err = execute(t, "run", t.TempDir())
	assert.True(t, errors.Is(err, cil.ErrConfiguration))
}
