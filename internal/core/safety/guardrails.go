package safety

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kirillkom/enterprise-rag/internal/core/domain"
)

// Guardrail is one independently swappable safety check.
type Guardrail interface {
	Check(text string) (ok bool, reason string)
}

// ToxicityMatchMode selects substring vs word-boundary blocklist matching.
// Substring is the historical behavior and false-positives on words like
// "skill"; word mode trades those for misses on concatenations.
type ToxicityMatchMode string

const (
	MatchSubstring ToxicityMatchMode = "substring"
	MatchWord      ToxicityMatchMode = "word"
)

// InputValidator rejects empty and oversized input.
type InputValidator struct {
	MaxLength int
}

func NewInputValidator(maxLength int) *InputValidator {
	if maxLength <= 0 {
		maxLength = 2000
	}
	return &InputValidator{MaxLength: maxLength}
}

func (v *InputValidator) Check(text string) (bool, string) {
	if len(text) > v.MaxLength {
		return false, fmt.Sprintf("input exceeds maximum length of %d characters", v.MaxLength)
	}
	if strings.TrimSpace(text) == "" {
		return false, "input is empty"
	}
	return true, "OK"
}

// PromptInjectionGuard matches a fixed set of jailbreak heuristics. It is an
// allowlist-complement, not a classifier; creative phrasings slip through.
type PromptInjectionGuard struct {
	patterns []*regexp.Regexp
}

func NewPromptInjectionGuard() *PromptInjectionGuard {
	return &PromptInjectionGuard{
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)ignore\s+previous\s+instructions`),
			regexp.MustCompile(`(?i)you\s+are\s+now`),
			regexp.MustCompile(`(?i)system\s+prompt`),
			regexp.MustCompile(`(?i)simulat(?:e|ing)`),
			regexp.MustCompile(`(?i)jailbreak`),
			// DAN, D.A.N, D A N
			regexp.MustCompile(`(?i)D[.\s]*A[.\s]*N`),
		},
	}
}

func (g *PromptInjectionGuard) Check(text string) (bool, string) {
	for _, pattern := range g.patterns {
		if pattern.MatchString(text) {
			return false, fmt.Sprintf("potential Prompt Injection detected: pattern %q", pattern.String())
		}
	}
	return true, "OK"
}

var leetReplacer = strings.NewReplacer(
	"0", "o",
	"1", "i",
	"3", "e",
	"4", "a",
	"5", "s",
	"7", "t",
	"!", "i",
	"@", "a",
)

// ToxicityGuard checks a fixed blocklist against leetspeak-normalized text.
type ToxicityGuard struct {
	blocklist []string
	mode      ToxicityMatchMode
}

func NewToxicityGuard(mode ToxicityMatchMode) *ToxicityGuard {
	if mode != MatchWord {
		mode = MatchSubstring
	}
	return &ToxicityGuard{
		blocklist: []string{
			"bomb", "kill", "suicide", "murder", "terrorist", "poison",
			"hack", "exploit", "malware", "virus",
		},
		mode: mode,
	}
}

func (g *ToxicityGuard) Check(text string) (bool, string) {
	normalized := leetReplacer.Replace(strings.ToLower(text))
	for _, word := range g.blocklist {
		if g.matches(normalized, word) {
			return false, fmt.Sprintf("toxic content detected (keyword: %s)", word)
		}
	}
	return true, "OK"
}

func (g *ToxicityGuard) matches(normalized, word string) bool {
	if g.mode == MatchWord {
		for _, token := range strings.FieldsFunc(normalized, func(r rune) bool {
			return !(r >= 'a' && r <= 'z')
		}) {
			if token == word {
				return true
			}
		}
		return false
	}
	return strings.Contains(normalized, word)
}

// Layer runs the guardrails in strict order, short-circuiting on the first
// failure. Structural checks come first so bad input is rejected before any
// model call.
type Layer struct {
	guards []Guardrail
}

func NewLayer(maxLength int, toxicityMode ToxicityMatchMode) *Layer {
	return &Layer{
		guards: []Guardrail{
			NewInputValidator(maxLength),
			NewPromptInjectionGuard(),
			NewToxicityGuard(toxicityMode),
		},
	}
}

// Validate returns nil if the text passes every guardrail, else a
// domain.ErrSecurityViolation-kind error carrying the specific reason.
func (l *Layer) Validate(text string) error {
	for _, guard := range l.guards {
		if ok, reason := guard.Check(text); !ok {
			return fmt.Errorf("%w: %s", domain.ErrSecurityViolation, reason)
		}
	}
	return nil
}
