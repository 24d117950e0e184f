package agent

import "regexp"

// InputGuard scans inbound user messages for common prompt-injection
// phrasing before they're folded into the LLM conversation. It is a
// heuristic tripwire, not a filter: matches are reported to the caller
// (loop.go) which decides whether to log, warn, or block based on
// injectionAction.
type InputGuard struct {
	patterns []namedPattern
}

type namedPattern struct {
	name string
	re   *regexp.Regexp
}

// NewInputGuard builds an InputGuard with the default pattern set.
func NewInputGuard() *InputGuard {
	patterns := []namedPattern{
		{"ignore_instructions", regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions|prompts?)`)},
		{"reveal_system_prompt", regexp.MustCompile(`(?i)(reveal|print|show|repeat)\s+(your\s+)?(system\s+prompt|instructions)`)},
		{"override_role", regexp.MustCompile(`(?i)you\s+are\s+now\s+(in\s+)?(developer|admin|jailbreak|dan)\s+mode`)},
		{"pretend_no_rules", regexp.MustCompile(`(?i)pretend\s+(you\s+have\s+)?no\s+(rules|restrictions|guidelines)`)},
		{"act_as_unfiltered", regexp.MustCompile(`(?i)act\s+as\s+(an?\s+)?(unfiltered|uncensored|unrestricted)`)},
		{"disregard_safety", regexp.MustCompile(`(?i)disregard\s+(your\s+)?(safety|ethical)\s+guidelines`)},
	}
	return &InputGuard{patterns: patterns}
}

// Scan returns the names of every pattern that matched message, or nil if
// none did.
func (g *InputGuard) Scan(message string) []string {
	if g == nil || message == "" {
		return nil
	}
	var matches []string
	for _, p := range g.patterns {
		if p.re.MatchString(message) {
			matches = append(matches, p.name)
		}
	}
	return matches
}
