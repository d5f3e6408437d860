package image

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/chazu/modder/cil"
)

// Resolver finds a module referenced by name from another image.
type Resolver interface {
	Resolve(name string) (*cil.Module, error)
}

// MapResolver resolves from modules already in memory, keyed by name.
type MapResolver map[string]*cil.Module

// Resolve implements Resolver.
func (r MapResolver) Resolve(name string) (*cil.Module, error) {
	if m, ok := r[name]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("%w: module %s not loaded", cil.ErrResolution, name)
}

// DirResolver searches directories, in order, for "<name>.mod" and loads the
// first hit. Loaded modules are remembered, so every image sees the same
// instance of a dependency.
type DirResolver struct {
	Dirs []string

	loaded  map[string]*cil.Module
	loading map[string]bool
}

// NewDirResolver creates a resolver over dirs.
func NewDirResolver(dirs ...string) *DirResolver {
	return &DirResolver{
		Dirs:    dirs,
		loaded:  map[string]*cil.Module{},
		loading: map[string]bool{},
	}
}

// Add registers an already loaded module so references to it resolve to m.
func (r *DirResolver) Add(m *cil.Module) {
	r.loaded[m.Name] = m
}

// Loaded returns the module called name if it was already added or resolved.
func (r *DirResolver) Loaded(name string) (*cil.Module, bool) {
	m, ok := r.loaded[name]
	return m, ok
}

// Resolve implements Resolver.
func (r *DirResolver) Resolve(name string) (*cil.Module, error) {
	if m, ok := r.loaded[name]; ok {
		return m, nil
	}
	if r.loading[name] {
		return nil, fmt.Errorf("%w: module %s depends on itself", cil.ErrResolution, name)
	}
	for _, dir := range r.Dirs {
		path := filepath.Join(dir, name+Extension)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("%w: %v", cil.ErrIO, err)
		}

		r.loading[name] = true
		m, err := Load(path, r)
		delete(r.loading, name)
		if err != nil {
			return nil, err
		}
		r.loaded[name] = m
		log.Debugf("Resolved module %s from %s", name, path)
		return m, nil
	}
	return nil, fmt.Errorf("%w: module %s not found in %v", cil.ErrResolution, name, r.Dirs)
}
