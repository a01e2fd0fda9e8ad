package scanner

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher matches file names against a set of glob patterns.
// Matching is case-insensitive; an empty Matcher matches nothing.
type Matcher struct {
	patterns []string
}

// NewMatcher compiles a set of patterns. Empty patterns are ignored.
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		normalized := strings.ToLower(p)
		if !doublestar.ValidatePattern(normalized) {
			return nil, fmt.Errorf("invalid glob pattern %q", p)
		}
		m.patterns = append(m.patterns, normalized)
	}
	return m, nil
}

// Empty reports whether the matcher holds no pattern
func (m *Matcher) Empty() bool {
	return m == nil || len(m.patterns) == 0
}

// Match reports whether name matches any pattern
func (m *Matcher) Match(name string) bool {
	if m.Empty() {
		return false
	}

	normalized := strings.ToLower(name)
	for _, p := range m.patterns {
		if matched, err := doublestar.Match(p, normalized); err == nil && matched {
			return true
		}
	}
	return false
}
