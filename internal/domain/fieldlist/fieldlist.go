// Package fieldlist implements the required-field allow list of a search.
package fieldlist

import (
	"regexp"
	"strings"
)

// List is an ordered set of field name patterns. A pattern may contain `*`,
// matching any run of characters. A nil *List allows every field.
type List struct {
	patterns []string
	exact    map[string]struct{}
	wildcard []*regexp.Regexp
}

// New builds a List from patterns, dropping blanks and duplicates while keeping
// first-seen order. It returns nil when no pattern remains.
func New(patterns []string) *List {
	l := &List{exact: make(map[string]struct{})}
	seen := make(map[string]struct{}, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		l.patterns = append(l.patterns, p)
		if strings.Contains(p, "*") {
			l.wildcard = append(l.wildcard, compile(p))
		} else {
			l.exact[p] = struct{}{}
		}
	}
	if len(l.patterns) == 0 {
		return nil
	}
	return l
}

func compile(pattern string) *regexp.Regexp {
	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return regexp.MustCompile("^" + strings.Join(parts, ".*") + "$")
}

// Patterns returns the patterns in request order.
func (l *List) Patterns() []string {
	if l == nil {
		return nil
	}
	out := make([]string, len(l.patterns))
	copy(out, l.patterns)
	return out
}

// Len returns the number of patterns.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.patterns)
}

// AllowsAll reports whether every field passes: a nil list or a bare `*` pattern.
func (l *List) AllowsAll() bool {
	if l == nil {
		return true
	}
	for _, p := range l.patterns {
		if p == "*" {
			return true
		}
	}
	return false
}

// Matches reports whether name is allowed.
func (l *List) Matches(name string) bool {
	if l.AllowsAll() {
		return true
	}
	if _, ok := l.exact[name]; ok {
		return true
	}
	for _, re := range l.wildcard {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// Exact returns the patterns without wildcards; backends use it to narrow
// projections. ok is false when any wildcard is present.
func (l *List) Exact() (fields []string, ok bool) {
	if l == nil || len(l.wildcard) > 0 {
		return nil, false
	}
	return l.Patterns(), true
}

// Project returns record restricted to allowed keys. The input is returned as is
// when every field is allowed.
func (l *List) Project(record map[string]any) map[string]any {
	if l.AllowsAll() {
		return record
	}
	out := make(map[string]any, len(record))
	for k, v := range record {
		if l.Matches(k) {
			out[k] = v
		}
	}
	return out
}
