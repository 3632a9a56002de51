// Package safety holds the pure pre-retrieval input defenses: PII redaction
// and the guardrail chain.
package safety

import "regexp"

type piiPattern struct {
	name    string
	pattern *regexp.Regexp
}

// Sanitizer redacts PII substrings with typed placeholder tokens. Patterns
// run in a fixed order; the first pattern to match a region wins. Obfuscated
// PII (spaced digits, spelled-out "at"/"dot") is not caught; that is an
// accepted limitation, not a bug.
type Sanitizer struct {
	patterns []piiPattern
}

func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		patterns: []piiPattern{
			{"EMAIL", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
			{"PHONE", regexp.MustCompile(`\b(?:\+?\d{1,3})?[-. (]*\d{3}[-. )]*\d{3}[-. ]*\d{4}\b`)},
			{"CREDIT_CARD", regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`)},
			{"SSN", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
		},
	}
}

// Sanitize replaces every PII match with <TYPE_REDACTED>.
func (s *Sanitizer) Sanitize(text string) string {
	out := text
	for _, p := range s.patterns {
		out = p.pattern.ReplaceAllString(out, "<"+p.name+"_REDACTED>")
	}
	return out
}

// ContainsPII reports whether any pattern still matches.
func (s *Sanitizer) ContainsPII(text string) bool {
	for _, p := range s.patterns {
		if p.pattern.MatchString(text) {
			return true
		}
	}
	return false
}
