package audit

import (
	"fmt"
	"regexp"
)

const mask = "[REDACTED]"

// Redactor masks content matching configured sensitive patterns. It is applied
// to audit entries before persistence only; in-memory consumers see the
// original content.
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor compiles the given patterns. An empty pattern list yields a
// pass-through redactor.
func NewRedactor(patterns []string) (*Redactor, error) {
	r := &Redactor{}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("redact pattern %q: %w", p, err)
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

// Active reports whether any pattern is configured.
func (r *Redactor) Active() bool {
	return r != nil && len(r.patterns) > 0
}

// Apply masks every pattern match in s.
func (r *Redactor) Apply(s string) string {
	if !r.Active() {
		return s
	}
	for _, re := range r.patterns {
		s = re.ReplaceAllString(s, mask)
	}
	return s
}
