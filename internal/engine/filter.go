package engine

import (
	"fmt"
	"regexp"
	"strings"
)

// Filter is a keep/drop gate over names. An include pattern, when present,
// must match; an exclude pattern, when present, drops even a name the
// include matched. With neither set everything is kept.
//
// Playlists, collections, and metadata titles each get their own Filter;
// the three never share state.
type Filter struct {
	Include *regexp.Regexp
	Exclude *regexp.Regexp
}

// NewFilter compiles the optional include and exclude patterns. Empty
// strings mean "no pattern".
func NewFilter(include, exclude string) (Filter, error) {
	var f Filter
	var err error
	if include != "" {
		if f.Include, err = regexp.Compile(include); err != nil {
			return Filter{}, fmt.Errorf("include pattern: %w", err)
		}
	}
	if exclude != "" {
		if f.Exclude, err = regexp.Compile(exclude); err != nil {
			return Filter{}, fmt.Errorf("exclude pattern: %w", err)
		}
	}
	return f, nil
}

// Keep reports whether the candidate passes the gate.
func (f Filter) Keep(name string) bool {
	if f.Include != nil && !f.Include.MatchString(name) {
		return false
	}
	if f.Exclude != nil && f.Exclude.MatchString(name) {
		return false
	}
	return true
}

// Template renders destination container names from source names. The
// literal "{name}" is replaced with the source name; an empty template
// passes the name through unchanged.
type Template string

// Apply renders the template for one source name.
func (t Template) Apply(name string) string {
	if t == "" {
		return name
	}
	return strings.ReplaceAll(string(t), "{name}", name)
}
