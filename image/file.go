package image

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/chazu/modder/cil"
)

// Load reads the module image at path.
func Load(path string, res Resolver) (*cil.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read %s: %v", cil.ErrIO, path, err)
	}
	m, err := Unmarshal(data, res)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Infof("Loaded %s from %s (%s)", m.Identity(), path, humanize.Bytes(uint64(len(data))))
	return m, nil
}

// Path returns the file an image of m is saved to under dir.
func Path(dir string, m *cil.Module) string {
	return filepath.Join(dir, m.Name+Extension)
}

// Save writes every module to dir, creating it when needed, and returns the
// written paths. Each module gets a fresh MVID first.
func Save(dir string, modules ...*cil.Module) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %v", cil.ErrIO, dir, err)
	}
	var paths []string
	for _, m := range modules {
		m.MVID = uuid.New()
		data, err := Marshal(m)
		if err != nil {
			return paths, err
		}
		path := Path(dir, m)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return paths, fmt.Errorf("%w: cannot write %s: %v", cil.ErrIO, path, err)
		}
		log.Infof("Saved %s to %s (%s)", m.Identity(), path, humanize.Bytes(uint64(len(data))))
		paths = append(paths, path)
	}
	return paths, nil
}
