package core

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Glob is a compiled path filter segment.
type Glob struct {
	pattern string
}

// CompileGlob validates and compiles a single glob pattern.
func CompileGlob(pattern string) (Glob, error) {
	if !doublestar.ValidatePattern(pattern) {
		return Glob{}, fmt.Errorf("%w: %q", ErrInvalidGlob, pattern)
	}
	return Glob{pattern: pattern}, nil
}

// Pattern returns the source pattern the glob was compiled from.
func (g Glob) Pattern() string {
	return g.pattern
}

// Match reports whether the glob matches the given path. A pattern
// without a separator also matches against the path's base name, so
// "*.rs" matches "sub/dir/main.rs".
func (g Glob) Match(path string) bool {
	if ok, _ := doublestar.Match(g.pattern, path); ok {
		return true
	}
	if !strings.ContainsRune(g.pattern, '/') {
		if ok, _ := doublestar.Match(g.pattern, filepath.Base(path)); ok {
			return true
		}
	}
	return false
}

// compileGlobSet splits comma-separated glob text into compiled globs.
// Segments are trimmed and empty segments dropped.
func compileGlobSet(text string) ([]Glob, error) {
	var globs []Glob
	for _, segment := range strings.Split(text, ",") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		glob, err := CompileGlob(segment)
		if err != nil {
			return nil, err
		}
		globs = append(globs, glob)
	}
	return globs, nil
}

// Query is an immutable, validated search request. It is a pure value:
// safe to copy and share, holding no external resources.
type Query struct {
	pattern       string
	isRegex       bool
	caseSensitive bool
	wholeWord     bool
	includes      []Glob
	excludes      []Glob
	re            *regexp.Regexp
}

// FieldErrors reports which input fields of a query build failed.
// Multiple fields may fail on the same build; all are reported together
// so the caller can mark every offending field at once.
type FieldErrors struct {
	Query   error
	Include error
	Exclude error
}

// Any reports whether at least one field failed.
func (e *FieldErrors) Any() bool {
	return e != nil && (e.Query != nil || e.Include != nil || e.Exclude != nil)
}

// Error implements the error interface, joining the per-field failures.
func (e *FieldErrors) Error() string {
	var parts []string
	if e.Query != nil {
		parts = append(parts, "query: "+e.Query.Error())
	}
	if e.Include != nil {
		parts = append(parts, "include: "+e.Include.Error())
	}
	if e.Exclude != nil {
		parts = append(parts, "exclude: "+e.Exclude.Error())
	}
	if len(parts) == 0 {
		return "no field errors"
	}
	return strings.Join(parts, "; ")
}

// BuildQuery validates raw search input and produces an immutable Query.
//
// Both glob fields are always attempted even when the first fails, so
// simultaneous errors surface in one pass. Regex compilation is
// re-attempted on every call since flags may have changed between calls.
// On any failure the returned query is the zero value and must not be
// executed.
func BuildQuery(raw string, wholeWord, caseSensitive, isRegex bool, includeGlobText, excludeGlobText string) (Query, *FieldErrors) {
	ferrs := &FieldErrors{}

	includes, err := compileGlobSet(includeGlobText)
	if err != nil {
		ferrs.Include = err
	}
	excludes, err := compileGlobSet(excludeGlobText)
	if err != nil {
		ferrs.Exclude = err
	}

	if raw == "" {
		ferrs.Query = ErrEmptyPattern
	}

	var re *regexp.Regexp
	if ferrs.Query == nil {
		expr := raw
		if !isRegex {
			expr = regexp.QuoteMeta(raw)
		}
		if wholeWord {
			expr = `\b(?:` + expr + `)\b`
		}
		if !caseSensitive {
			expr = `(?i)` + expr
		}
		re, err = regexp.Compile(expr)
		if err != nil {
			ferrs.Query = fmt.Errorf("%w: %v", ErrInvalidPattern, err)
		}
	}

	if ferrs.Any() {
		return Query{}, ferrs
	}

	return Query{
		pattern:       raw,
		isRegex:       isRegex,
		caseSensitive: caseSensitive,
		wholeWord:     wholeWord,
		includes:      includes,
		excludes:      excludes,
		re:            re,
	}, nil
}

// Pattern returns the raw query text the query was built from.
func (q Query) Pattern() string { return q.pattern }

// IsRegex reports whether the query text was treated as a regular expression.
func (q Query) IsRegex() bool { return q.isRegex }

// CaseSensitive reports whether matching distinguishes letter case.
func (q Query) CaseSensitive() bool { return q.caseSensitive }

// WholeWord reports whether matches are constrained to word boundaries.
func (q Query) WholeWord() bool { return q.wholeWord }

// Regexp returns the compiled matcher. It is nil only for the zero Query.
func (q Query) Regexp() *regexp.Regexp { return q.re }

// MatchesPath reports whether a file path passes the query's
// include/exclude filters: included when no include globs are set or at
// least one matches, and no exclude glob matches.
func (q Query) MatchesPath(path string) bool {
	if len(q.includes) > 0 {
		included := false
		for _, g := range q.includes {
			if g.Match(path) {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}
	for _, g := range q.excludes {
		if g.Match(path) {
			return false
		}
	}
	return true
}
