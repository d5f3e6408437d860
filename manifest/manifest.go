// Package manifest handles modder.toml run configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/chazu/modder/cil"
)

// FileName is the name of the manifest file in a project directory.
const FileName = "modder.toml"

// Manifest represents a modder.toml run configuration.
type Manifest struct {
	Project       Project        `toml:"project"`
	Inputs        Inputs         `toml:"inputs"`
	Output        Output         `toml:"output"`
	Modifications []Modification `toml:"modification"`

	// Dir is the directory containing the modder.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name string `toml:"name"`
}

// Inputs selects the module images to patch.
type Inputs struct {
	Globs []string `toml:"globs"`
	// Search lists extra directories where referenced modules are looked up.
	Search []string `toml:"search"`
}

// Output configures where results are written.
type Output struct {
	Dir    string `toml:"dir"`
	Report string `toml:"report"`
}

// Kind is what a modification does to the members its patterns select.
type Kind string

const (
	KindHook      Kind = "hook"
	KindPublic    Kind = "public"
	KindVirtual   Kind = "virtual"
	KindInterface Kind = "interface"
)

// Modification is one entry of the registry. Modifications run in ascending
// Order; ties keep file order.
type Modification struct {
	Name     string   `toml:"name"`
	Order    int      `toml:"order"`
	Kind     Kind     `toml:"kind"`
	Patterns []string `toml:"patterns"`
	// Targets restricts the modification to modules with these names or
	// identities. Empty means every loaded module.
	Targets []string `toml:"targets"`
}

// Load parses a modder.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read %s: %v", cil.ErrIO, path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parse error in %s: %v", cil.ErrConfiguration, path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot resolve path %s: %v", cil.ErrIO, dir, err)
	}

	// Defaults
	if len(m.Inputs.Globs) == 0 {
		m.Inputs.Globs = []string{"*.mod"}
	}
	if m.Output.Dir == "" {
		m.Output.Dir = "out"
	}
	for i := range m.Modifications {
		if m.Modifications[i].Kind == "" {
			m.Modifications[i].Kind = KindHook
		}
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a modder.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
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

// Validate checks every modification names a known kind and has patterns
// when its kind selects members.
func (m *Manifest) Validate() error {
	seen := map[string]bool{}
	for i, mod := range m.Modifications {
		label := mod.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
		} else if seen[label] {
			return fmt.Errorf("%w: duplicate modification %q", cil.ErrConfiguration, label)
		}
		seen[label] = true

		switch mod.Kind {
		case KindHook, KindVirtual, KindInterface:
			if len(mod.Patterns) == 0 {
				return fmt.Errorf("%w: modification %s (%s) has no patterns", cil.ErrConfiguration, label, mod.Kind)
			}
		case KindPublic:
		default:
			return fmt.Errorf("%w: modification %s has unknown kind %q", cil.ErrConfiguration, label, mod.Kind)
		}
	}
	return nil
}

// Registry returns the modifications in run order.
func (m *Manifest) Registry() []Modification {
	out := append([]Modification(nil), m.Modifications...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// OutputDir returns the absolute output directory.
func (m *Manifest) OutputDir() string {
	return m.abs(m.Output.Dir)
}

// ReportPath returns the absolute path of the hook report, or "" when no
// report is configured.
func (m *Manifest) ReportPath() string {
	if m.Output.Report == "" {
		return ""
	}
	return m.abs(m.Output.Report)
}

// SearchDirPaths returns absolute paths for the configured search directories.
func (m *Manifest) SearchDirPaths() []string {
	var paths []string
	for _, d := range m.Inputs.Search {
		paths = append(paths, m.abs(d))
	}
	return paths
}

func (m *Manifest) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
