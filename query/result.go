package query

import (
	"fmt"

	"github.com/chazu/modder/cil"
)

// Result is the ordered, undeduplicated list of matches of one query run.
type Result struct {
	Query   *Query
	Matches []Match
}

// Len returns the number of matches.
func (r *Result) Len() int { return len(r.Matches) }

// Methods returns the matched methods in result order.
func (r *Result) Methods() []*cil.Method {
	var out []*cil.Method
	for _, m := range r.Matches {
		if mth, ok := m.Member.(*cil.Method); ok {
			out = append(out, mth)
		}
	}
	return out
}

// Types returns the matched types in result order.
func (r *Result) Types() []*cil.Type {
	var out []*cil.Type
	for _, m := range r.Matches {
		if t, ok := m.Member.(*cil.Type); ok {
			out = append(out, t)
		}
	}
	return out
}

// Fields returns the matched fields in result order.
func (r *Result) Fields() []*cil.Field {
	var out []*cil.Field
	for _, m := range r.Matches {
		if f, ok := m.Member.(*cil.Field); ok {
			out = append(out, f)
		}
	}
	return out
}

// Properties returns the matched properties in result order.
func (r *Result) Properties() []*cil.Property {
	var out []*cil.Property
	for _, m := range r.Matches {
		if p, ok := m.Member.(*cil.Property); ok {
			out = append(out, p)
		}
	}
	return out
}

// Modules returns each module that owns at least one match, once, in first
// appearance order.
func (r *Result) Modules() []*cil.Module {
	var out []*cil.Module
	seen := map[*cil.Module]bool{}
	for _, m := range r.Matches {
		if !seen[m.Module] {
			seen[m.Module] = true
			out = append(out, m.Module)
		}
	}
	return out
}

// Single returns the only match. Zero or several matches are a
// configuration error.
func (r *Result) Single() (Match, error) {
	if len(r.Matches) != 1 {
		return Match{}, fmt.Errorf("%w: query %q expected exactly one match, found %d",
			cil.ErrConfiguration, r.source(), len(r.Matches))
	}
	return r.Matches[0], nil
}

// SingleMethod is like Single but also requires the match to be a method.
func (r *Result) SingleMethod() (*cil.Method, error) {
	m, err := r.Single()
	if err != nil {
		return nil, err
	}
	mth, ok := m.Member.(*cil.Method)
	if !ok {
		return nil, fmt.Errorf("%w: query %q matched %s, not a method", cil.ErrConfiguration, r.source(), m.Key)
	}
	return mth, nil
}

func (r *Result) source() string {
	if r.Query == nil {
		return ""
	}
	return r.Query.Source
}
