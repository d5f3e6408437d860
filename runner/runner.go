// Package runner sequences a patch run: load module images, apply the
// registered modifications in order, then save the results.
//
// Every step is fail-fast. A failed step leaves the in-memory modules in an
// undefined state, so nothing is written after an error.
package runner

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/modder/cil"
	"github.com/chazu/modder/expand"
	"github.com/chazu/modder/hook"
	"github.com/chazu/modder/image"
	"github.com/chazu/modder/manifest"
	"github.com/chazu/modder/mutate"
	"github.com/chazu/modder/query"
	"github.com/chazu/modder/report"
)

var log = commonlog.GetLogger("modder.runner")

// Runner holds the state of one run.
type Runner struct {
	// Modules are the modules being patched, in load order.
	Modules []*cil.Module
	// Cache holds the query expansions of Modules.
	Cache *expand.Cache
	// Report collects every generated hook slot.
	Report *report.Report
	// Resolver supplies referenced modules. Modules loaded by the runner are
	// registered with it, so references between inputs share instances.
	Resolver *image.DirResolver
}

// New creates a runner that looks up referenced modules in searchDirs, in
// addition to the directories of the loaded images.
func New(searchDirs ...string) *Runner {
	return &Runner{
		Cache:    expand.NewCache(),
		Report:   &report.Report{},
		Resolver: image.NewDirResolver(searchDirs...),
	}
}

// Add registers modules that are already in memory as inputs.
func (r *Runner) Add(modules ...*cil.Module) error {
	for _, m := range modules {
		if r.Module(m.Name) != nil {
			return fmt.Errorf("%w: module %s loaded twice", cil.ErrConfiguration, m.Name)
		}
		r.Resolver.Add(m)
		r.Modules = append(r.Modules, m)
	}
	return nil
}

// Module returns the input module called name, or nil.
func (r *Runner) Module(name string) *cil.Module {
	for _, m := range r.Modules {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Load reads module images in order. An image already pulled in as another
// input's dependency is reused rather than read twice.
func (r *Runner) Load(paths ...string) error {
	for _, path := range paths {
		dir := filepath.Dir(path)
		if !contains(r.Resolver.Dirs, dir) {
			r.Resolver.Dirs = append(r.Resolver.Dirs, dir)
		}
	}
	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), image.Extension)
		m, ok := r.Resolver.Loaded(name)
		if !ok {
			var err error
			if m, err = image.Load(path, r.Resolver); err != nil {
				return err
			}
		}
		if err := r.Add(m); err != nil {
			return err
		}
	}
	return nil
}

// LoadGlobs expands globs relative to dir and loads every matched image.
func (r *Runner) LoadGlobs(dir string, globs ...string) error {
	files, err := manifest.ExpandGlobs(dir, globs)
	if err != nil {
		return err
	}
	log.Infof("Loading %d module(s)", len(files))
	return r.Load(files...)
}

// ApplyPattern hooks every method pattern selects across all input modules,
// using the flags written after its '$'.
func (r *Runner) ApplyPattern(pattern string) ([]*hook.Hooked, error) {
	return r.applyPattern(pattern, r.Modules)
}

func (r *Runner) applyPattern(pattern string, modules []*cil.Module) ([]*hook.Hooked, error) {
	q, err := query.Parse(pattern)
	if err != nil {
		return nil, err
	}
	flags, err := hook.FromQuery(q)
	if err != nil {
		return nil, err
	}
	res := q.Run(modules, r.Cache)
	if len(res.Methods()) == 0 {
		log.Warningf("Pattern %q selected no methods", pattern)
		return nil, nil
	}

	hooked, err := hook.Apply(res, flags)
	r.invalidate(res.Modules())
	if err != nil {
		return hooked, err
	}
	for _, h := range hooked {
		for _, m := range r.Modules {
			if m != h.Redirect.DeclaringType.Module {
				if n := h.Rebind(m); n > 0 {
					log.Debugf("Rebound %d call site(s) of %s in %s", n, h.Redirect.FullName(), m.Name)
				}
			}
		}
	}
	r.Report.AddAll(hooked)
	log.Infof("Pattern %q hooked %d method(s) with flags %s", pattern, len(hooked), flags)
	return hooked, nil
}

// Apply runs one registry entry against the modules it targets.
func (r *Runner) Apply(mod manifest.Modification) error {
	var modules []*cil.Module
	for _, m := range r.Modules {
		if mod.Applies(m) {
			modules = append(modules, m)
		}
	}
	if len(modules) == 0 {
		log.Warningf("Modification %q targets no loaded module", mod.Name)
		return nil
	}
	log.Infof("Running modification %q (%s)", mod.Name, mod.Kind)

	switch mod.Kind {
	case manifest.KindHook:
		for _, p := range mod.Patterns {
			if _, err := r.applyPattern(p, modules); err != nil {
				return fmt.Errorf("modification %q: %w", mod.Name, err)
			}
		}
		return nil

	case manifest.KindPublic:
		if len(mod.Patterns) == 0 {
			for _, m := range modules {
				mutate.MakeModulePublic(m)
			}
			return nil
		}
		return r.eachType(mod, modules, func(t *cil.Type) error {
			mutate.MakePublic(t)
			return nil
		})

	case manifest.KindVirtual:
		return r.eachType(mod, modules, func(t *cil.Type) error {
			mutate.MakeVirtual(t)
			return nil
		})

	case manifest.KindInterface:
		return r.eachType(mod, modules, func(t *cil.Type) error {
			_, err := mutate.ImplementInterface(t)
			return err
		})
	}
	return fmt.Errorf("%w: modification %q has unknown kind %q", cil.ErrConfiguration, mod.Name, mod.Kind)
}

// eachType runs fn on every type the modification's patterns select.
func (r *Runner) eachType(mod manifest.Modification, modules []*cil.Module, fn func(*cil.Type) error) error {
	for _, p := range mod.Patterns {
		res, err := query.Find(p, modules, r.Cache)
		if err != nil {
			return fmt.Errorf("modification %q: %w", mod.Name, err)
		}
		types := res.Types()
		if len(types) == 0 {
			log.Warningf("Pattern %q selected no types", p)
		}
		for _, t := range types {
			if err := fn(t); err != nil {
				r.invalidate(res.Modules())
				return fmt.Errorf("modification %q: %w", mod.Name, err)
			}
		}
		r.invalidate(res.Modules())
	}
	return nil
}

func (r *Runner) invalidate(modules []*cil.Module) {
	for _, m := range modules {
		r.Cache.Invalidate(m.Identity())
	}
}

// Verify checks the stack balance of every method body of the inputs.
func (r *Runner) Verify() error {
	for _, m := range r.Modules {
		var err error
		m.ForEachMethod(func(mth *cil.Method) {
			if err == nil && mth.HasBody() && mth.Body.Len() > 0 {
				err = cil.Verify(mth)
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Save writes every input module to dir.
func (r *Runner) Save(dir string) ([]string, error) {
	for _, m := range r.Modules {
		m.ForEachMethod(func(mth *cil.Method) {
			if mth.HasBody() {
				mth.Body.UpdateOffsets()
			}
		})
	}
	return image.Save(dir, r.Modules...)
}

// RunManifest performs a whole run described by a manifest: load the inputs,
// apply the registry in order, verify, save, and write the report when one
// is configured.
func (r *Runner) RunManifest(m *manifest.Manifest) error {
	for _, dir := range m.SearchDirPaths() {
		if !contains(r.Resolver.Dirs, dir) {
			r.Resolver.Dirs = append(r.Resolver.Dirs, dir)
		}
	}
	files, err := m.InputFiles()
	if err != nil {
		return err
	}
	if err := r.Load(files...); err != nil {
		return err
	}
	for _, mod := range m.Registry() {
		if err := r.Apply(mod); err != nil {
			return err
		}
	}
	if err := r.Verify(); err != nil {
		return err
	}
	if _, err := r.Save(m.OutputDir()); err != nil {
		return err
	}
	if path := m.ReportPath(); path != "" {
		if err := r.Report.WriteSQLite(path); err != nil {
			return err
		}
	}
	log.Infof("Run %q finished: %d module(s), %d hook slot(s)", m.Project.Name, len(r.Modules), len(r.Report.Entries))
	return nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
