package patterns

import (
	"strings"

	ac "github.com/petar-dambovaliev/aho-corasick"
)

// TokenPair is a scan-orientation token spelled in two cases, plus the
// textual rewrite that collapses it into one case-insensitive form.
type TokenPair struct {
	Token   string
	Variant string
	// Find is replaced by Replacement wherever it occurs in a pattern.
	Find        string
	Replacement string
}

// Apply rewrites every occurrence of Find in pattern.
func (tp TokenPair) Apply(pattern string) string {
	return strings.ReplaceAll(pattern, tp.Find, tp.Replacement)
}

// DefaultTokens is the fixed table of known case-variant tokens. Patterns
// that contain none of these are never rewritten.
var DefaultTokens = []TokenPair{
	{Token: "SAG", Variant: "Sag", Find: "SAG|Sag", Replacement: "(?i)Sag"},
	{Token: "AX", Variant: "Ax", Find: "AX|Ax", Replacement: "(?i)Ax"},
	{Token: "COR", Variant: "Cor", Find: "COR", Replacement: "(?i)Cor"},
}

// tokenScanner finds which table tokens occur literally in a pattern.
type tokenScanner struct {
	pairs     []TokenPair
	literals  []string
	automaton *ac.AhoCorasick
}

func newTokenScanner(pairs []TokenPair) *tokenScanner {
	literals := make([]string, 0, len(pairs)*2)
	for _, p := range pairs {
		literals = append(literals, p.Token, p.Variant)
	}

	s := &tokenScanner{pairs: pairs, literals: literals}
	if len(literals) == 0 {
		return s
	}

	builder := ac.NewAhoCorasickBuilder(ac.Opts{
		AsciiCaseInsensitive: false,
		MatchKind:            ac.LeftMostLongestMatch,
	})
	automaton := builder.Build(literals)
	s.automaton = &automaton
	return s
}

// pairsIn returns the table entries whose token and variant both appear in
// pattern, in table order.
func (s *tokenScanner) pairsIn(pattern string) []TokenPair {
	if s.automaton == nil || pattern == "" {
		return nil
	}

	seen := make(map[string]bool, len(s.literals))
	for _, m := range s.automaton.FindAll(pattern) {
		seen[s.literals[m.Pattern()]] = true
	}

	var found []TokenPair
	for _, p := range s.pairs {
		if seen[p.Token] && seen[p.Variant] {
			found = append(found, p)
		}
	}
	return found
}

// rewrite applies every table substitution to pattern, in table order.
func (s *tokenScanner) rewrite(pattern string) string {
	for _, p := range s.pairs {
		pattern = p.Apply(pattern)
	}
	return pattern
}
