// Package report records the hook slots generated during a run and exports
// them to SQLite, so mod authors can look up what to subscribe to.
package report

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/modder/cil"
	"github.com/chazu/modder/hook"
)

var log = commonlog.GetLogger("modder.report")

// Entry is one generated hook slot.
type Entry struct {
	Module    string // module identity
	Type      string // declaring type of the hooked method
	Method    string // hooked method, full name
	Kind      string // "pre" or "post"
	Slot      string // slot field, full name
	Callback  string // callback type, full name
	Signature string // callback Invoke signature
	Flags     string
}

// Report collects entries in the order hooks were applied.
type Report struct {
	Entries []Entry
}

// Add records every slot of h.
func (r *Report) Add(h *hook.Hooked) {
	t := h.Redirect.DeclaringType
	module := ""
	if t.Module != nil {
		module = t.Module.Identity()
	}
	for _, s := range h.Slots() {
		r.Entries = append(r.Entries, Entry{
			Module:    module,
			Type:      t.FullName(),
			Method:    h.Redirect.FullName(),
			Kind:      s.Kind,
			Slot:      s.Field.FullName(),
			Callback:  s.Callback.FullName(),
			Signature: s.Signature.String(),
			Flags:     h.Flags.String(),
		})
	}
}

// AddAll records the slots of every hooked method.
func (r *Report) AddAll(hooked []*hook.Hooked) {
	for _, h := range hooked {
		r.Add(h)
	}
}

// Modules returns the identities of the modules that gained slots, sorted.
func (r *Report) Modules() []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range r.Entries {
		if !seen[e.Module] {
			seen[e.Module] = true
			out = append(out, e.Module)
		}
	}
	sort.Strings(out)
	return out
}

const schema = `CREATE TABLE hooks (
	id        INTEGER PRIMARY KEY,
	module    TEXT NOT NULL,
	type      TEXT NOT NULL,
	method    TEXT NOT NULL,
	kind      TEXT NOT NULL,
	slot      TEXT NOT NULL UNIQUE,
	callback  TEXT NOT NULL,
	signature TEXT NOT NULL,
	flags     TEXT NOT NULL
)`

// WriteSQLite writes the report to a fresh database at path, replacing any
// existing file.
func (r *Report) WriteSQLite(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", cil.ErrIO, filepath.Dir(path), err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: replacing %s: %v", cil.ErrIO, path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("%w: opening database: %v", cil.ErrIO, err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("%w: creating table: %v", cil.ErrIO, err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", cil.ErrIO, err)
	}
	stmt, err := tx.Prepare(`INSERT INTO hooks
		(module, type, method, kind, slot, callback, signature, flags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: %v", cil.ErrIO, err)
	}
	defer stmt.Close()

	for _, e := range r.Entries {
		if _, err := stmt.Exec(e.Module, e.Type, e.Method, e.Kind, e.Slot, e.Callback, e.Signature, e.Flags); err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: inserting %s: %v", cil.ErrIO, e.Slot, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", cil.ErrIO, err)
	}
	log.Infof("Wrote %d hook slot(s) to %s", len(r.Entries), path)
	return nil
}

// ReadSQLite loads the entries of a report database, in insertion order.
func ReadSQLite(path string) (*Report, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", cil.ErrIO, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", cil.ErrIO, err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT module, type, method, kind, slot, callback, signature, flags
		FROM hooks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cil.ErrIO, err)
	}
	defer rows.Close()

	r := &Report{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Module, &e.Type, &e.Method, &e.Kind, &e.Slot, &e.Callback, &e.Signature, &e.Flags); err != nil {
			return nil, fmt.Errorf("%w: %v", cil.ErrIO, err)
		}
		r.Entries = append(r.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", cil.ErrIO, err)
	}
	return r, nil
}
