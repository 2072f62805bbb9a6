package highlight

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/paperglass/docreview/internal/token"
)

var foldCaser = cases.Fold()

// normalize strips all whitespace and case-folds, the comparison form used
// by the heuristic fallback matcher.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return foldCaser.String(b.String())
}

// matchTokens returns every token whose normalized content contains the
// normalized needle as a substring. Approximate by design: many-to-many and
// order-insensitive, used only when no server mapping exists.
func matchTokens(tokens []token.Token, needle string) []token.Token {
	n := normalize(needle)
	if n == "" {
		return nil
	}
	var out []token.Token
	for _, t := range tokens {
		if strings.Contains(normalize(t.Content), n) {
			out = append(out, t)
		}
	}
	return out
}
