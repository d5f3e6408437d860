// Package expand flattens loaded modules into searchable indexes and caches
// them per module identity.
package expand

import (
	"github.com/tliron/commonlog"

	"github.com/chazu/modder/cil"
)

var log = commonlog.GetLogger("modder.expand")

// Item is one searchable metadata element.
type Item struct {
	// Module is the name of the module that owns the element.
	Module string
	// Key is the string patterns are matched against.
	Key    string
	Member cil.Member
}

// Index is the flat expansion of one module, in discovery order: the module
// itself, then every type followed by its nested types, methods (each
// followed by its parameters), properties and fields.
type Index struct {
	Identity string
	Items    []Item
}

// Len returns the number of items.
func (ix *Index) Len() int { return len(ix.Items) }

// Outcome tells whether an expansion was served from the cache.
type Outcome int

const (
	Miss Outcome = iota
	Hit
)

func (o Outcome) String() string {
	if o == Hit {
		return "hit"
	}
	return "miss"
}

// Cache maps module identities to their expansion. It is owned by a single
// run and is not safe for concurrent use.
type Cache struct {
	entries map[string]*Index

	// Walks counts full expansions performed.
	Walks int
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: map[string]*Index{}}
}

// Expand returns the index for m, walking the module only when its identity
// has not been expanded before.
func (c *Cache) Expand(m *cil.Module) (*Index, Outcome) {
	id := m.Identity()
	if ix, ok := c.entries[id]; ok {
		log.Infof("Cache hit for module: %s", id)
		return ix, Hit
	}
	ix := Walk(m)
	c.Walks++
	c.entries[id] = ix
	log.Infof("Expanding module %s... found %d item(s)", id, ix.Len())
	return ix, Miss
}

// Invalidate drops the cached expansion of identity. It reports whether an
// entry was present.
func (c *Cache) Invalidate(identity string) bool {
	if _, ok := c.entries[identity]; !ok {
		return false
	}
	delete(c.entries, identity)
	log.Debugf("Invalidated expansion of %s", identity)
	return true
}

// Len returns the number of cached modules.
func (c *Cache) Len() int { return len(c.entries) }

// Walk expands m without consulting any cache.
func Walk(m *cil.Module) *Index {
	w := &walker{module: m.Name}
	w.add(m.Name, m)
	for _, t := range m.Types {
		w.typ(t)
	}
	return &Index{Identity: m.Identity(), Items: w.items}
}

type walker struct {
	module string
	items  []Item
}

func (w *walker) add(key string, member cil.Member) {
	w.items = append(w.items, Item{Module: w.module, Key: key, Member: member})
}

func (w *walker) typ(t *cil.Type) {
	w.add(t.FullName(), t)
	for _, n := range t.NestedTypes {
		w.typ(n)
	}
	for _, m := range t.Methods {
		w.add(m.FullName(), m)
		for _, p := range m.Parameters {
			w.add(p.Type.FullName(), p)
		}
	}
	for _, p := range t.Properties {
		w.add(p.FullName(), p)
	}
	for _, f := range t.Fields {
		w.add(f.FullName(), f)
	}
}
