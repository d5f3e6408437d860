// Package query selects metadata elements across loaded modules with glob
// patterns.
//
// Grammar:
//
//	patternlist := pattern ('&&' pattern)* ['$' flags]
//	pattern     := ['[' module ']'] name
//
// '*' matches zero or more characters; every other character is literal and
// matches are anchored at both ends. Names are matched against the fully
// qualified name of each element: Namespace.Type for types,
// Namespace.Type.Method(ParamType,...) for methods, Namespace.Type.Member for
// fields and properties. The optional '$' suffix is not part of name matching;
// it is handed to the caller untouched.
//
// Segments joined with '&&' are evaluated independently and their results are
// concatenated in pattern order. They are not intersected.
package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/modder/cil"
	"github.com/chazu/modder/expand"
)

var log = commonlog.GetLogger("modder.query")

// PatternError reports a malformed pattern.
type PatternError struct {
	Pattern string
	Message string
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q: %s", e.Pattern, e.Message)
}

func (e *PatternError) Unwrap() error { return cil.ErrConfiguration }

// Segment is one '&&'-separated part of a pattern.
type Segment struct {
	// Module restricts the segment to modules whose name matches; empty means
	// every module.
	Module string
	Name   string

	module *regexp.Regexp
	name   *regexp.Regexp
}

// MatchesModule reports whether the segment searches module m.
func (s *Segment) MatchesModule(m *cil.Module) bool {
	return s.module == nil || s.module.MatchString(m.Name)
}

// MatchesName reports whether key matches the segment's name pattern.
func (s *Segment) MatchesName(key string) bool {
	return s.name.MatchString(key)
}

// Query is a parsed pattern.
type Query struct {
	Source   string
	Segments []*Segment

	// Flags is the raw text after the first '$', without the '$'.
	Flags    string
	HasFlags bool
}

// Parse parses a pattern list.
func Parse(pattern string) (*Query, error) {
	q := &Query{Source: pattern}

	body := pattern
	if i := strings.IndexByte(pattern, '$'); i >= 0 {
		body = pattern[:i]
		q.Flags = pattern[i+1:]
		q.HasFlags = true
	}

	for _, part := range strings.Split(body, "&&") {
		seg, err := parseSegment(pattern, strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		q.Segments = append(q.Segments, seg)
	}
	return q, nil
}

// MustParse is like Parse but panics on error.
func MustParse(pattern string) *Query {
	q, err := Parse(pattern)
	if err != nil {
		panic(err)
	}
	return q
}

func parseSegment(source, part string) (*Segment, error) {
	seg := &Segment{}
	if strings.HasPrefix(part, "[") {
		end := strings.IndexByte(part, ']')
		if end < 0 {
			return nil, &PatternError{Pattern: source, Message: "unterminated module prefix"}
		}
		seg.Module = part[1:end]
		part = part[end+1:]
		if seg.Module == "" {
			return nil, &PatternError{Pattern: source, Message: "empty module prefix"}
		}
		seg.module = compileGlob(seg.Module)
	}
	if part == "" {
		return nil, &PatternError{Pattern: source, Message: "empty name pattern"}
	}
	seg.Name = part
	seg.name = compileGlob(part)
	return seg, nil
}

// compileGlob turns a '*' glob into an anchored regular expression.
func compileGlob(glob string) *regexp.Regexp {
	parts := strings.Split(glob, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile("^" + strings.Join(parts, ".*") + "$")
}

// Match is one selected element tagged with its owning module.
type Match struct {
	Module *cil.Module
	Key    string
	Member cil.Member
}

// Run evaluates the query over modules in order. Expansions come from cache
// when one is given.
func (q *Query) Run(modules []*cil.Module, cache *expand.Cache) *Result {
	res := &Result{Query: q}
	for _, seg := range q.Segments {
		for _, m := range modules {
			if !seg.MatchesModule(m) {
				continue
			}
			var ix *expand.Index
			if cache != nil {
				ix, _ = cache.Expand(m)
			} else {
				ix = expand.Walk(m)
			}
			for _, it := range ix.Items {
				if seg.MatchesName(it.Key) {
					res.Matches = append(res.Matches, Match{Module: m, Key: it.Key, Member: it.Member})
				}
			}
		}
	}
	log.Debugf("Query %q matched %d item(s)", q.Source, len(res.Matches))
	return res
}

// Find parses pattern and runs it.
func Find(pattern string, modules []*cil.Module, cache *expand.Cache) (*Result, error) {
	q, err := Parse(pattern)
	if err != nil {
		return nil, err
	}
	return q.Run(modules, cache), nil
}
