package cil

import (
	"fmt"

	"github.com/google/uuid"
)

// Module is a loaded binary unit. It owns its top-level types; nested types
// hang off their declaring type.
type Module struct {
	Name    string
	Version string

	// MVID changes every time the module is written.
	MVID uuid.UUID

	// References lists the identities of the modules this one depends on.
	References []string

	Types []*Type
}

// NewModule creates an empty module with a fresh MVID.
func NewModule(name, version string) *Module {
	return &Module{
		Name:    name,
		Version: version,
		MVID:    uuid.New(),
	}
}

// Identity returns the stable name+version string used as cache key.
func (m *Module) Identity() string {
	return fmt.Sprintf("%s, Version=%s", m.Name, m.Version)
}

func (m *Module) String() string {
	return m.Identity()
}

// AddType appends a top-level type to the module.
func (m *Module) AddType(t *Type) *Type {
	t.DeclaringType = nil
	t.setModule(m)
	m.Types = append(m.Types, t)
	return t
}

// Type returns the type with the given full name, nested types included.
func (m *Module) Type(fullName string) *Type {
	var found *Type
	m.ForEachType(func(t *Type) {
		if found == nil && t.FullName() == fullName {
			found = t
		}
	})
	return found
}

// MustType is like Type but returns a resolution error when the type is
// missing.
func (m *Module) MustType(fullName string) (*Type, error) {
	if t := m.Type(fullName); t != nil {
		return t, nil
	}
	return nil, fmt.Errorf("%w: type %s not found in %s", ErrResolution, fullName, m.Identity())
}

// AddReference records a dependency on another module.
func (m *Module) AddReference(identity string) {
	for _, r := range m.References {
		if r == identity {
			return
		}
	}
	m.References = append(m.References, identity)
}

// FullName returns the module name.
func (m *Module) FullName() string { return m.Name }
