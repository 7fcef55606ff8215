// Package filter decides which source paths are left out of a snapshot.
package filter

// Exclude holds a single shell-glob exclusion pattern. The zero value and
// a nil *Exclude exclude nothing.
type Exclude struct {
	pattern *compiledPattern
}

// NewExclude compiles pattern. An empty pattern yields a filter that
// matches nothing.
func NewExclude(pattern string) (*Exclude, error) {
	if pattern == "" {
		return &Exclude{}, nil
	}
	cp, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}
	return &Exclude{pattern: cp}, nil
}

// Match reports whether path should be excluded. The path is matched
// exactly as given; no cleaning or rebasing takes place, so callers must
// pass paths in the same form the pattern was written for.
func (e *Exclude) Match(path string) bool {
	if e == nil || e.pattern == nil {
		return false
	}
	return e.pattern.match(path)
}

// Pattern returns the source pattern, or "" when nothing is excluded.
func (e *Exclude) Pattern() string {
	if e == nil || e.pattern == nil {
		return ""
	}
	return e.pattern.original
}
