package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/chazu/modder/cil"
)

// ExpandGlobs resolves file globs relative to dir into existing files, in
// glob order. A file matched by several globs is listed once. A glob that
// matches nothing is an error, since patching a subset silently is worse
// than not patching.
func ExpandGlobs(dir string, globs []string) ([]string, error) {
	seen := map[string]bool{}
	var files []string
	for _, g := range globs {
		pattern := g
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(dir, pattern)
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: bad glob %q: %v", cil.ErrConfiguration, g, err)
		}
		n := 0
		for _, path := range matches {
			info, err := os.Stat(path)
			if err != nil || info.IsDir() || seen[path] {
				continue
			}
			seen[path] = true
			files = append(files, path)
			n++
		}
		if n == 0 && len(matches) == 0 {
			return nil, fmt.Errorf("%w: glob %q matched no files", cil.ErrIO, g)
		}
	}
	return files, nil
}

// InputFiles returns the module images selected by [inputs].
func (m *Manifest) InputFiles() ([]string, error) {
	return ExpandGlobs(m.Dir, m.Inputs.Globs)
}

// Applies reports whether the modification targets module mod. Targets name
// a module either by name or by full identity.
func (mod Modification) Applies(m *cil.Module) bool {
	if len(mod.Targets) == 0 {
		return true
	}
	for _, t := range mod.Targets {
		if t == m.Name || t == m.Identity() {
			return true
		}
	}
	return false
}
