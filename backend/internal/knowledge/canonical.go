package knowledge

import (
	"regexp"
	"strings"
)

// ============================================================================
// Entity Name Canonicalization
// ============================================================================

var whitespaceRe = regexp.MustCompile(`\s+`)

// aliases maps common variants onto a canonical key so re-mentions of the
// same real-world entity land on one node. Keys and values are already in
// canonical (folded) form.
var aliases = map[string]string{
	"mom":         "mother",
	"mum":         "mother",
	"dad":         "father",
	"workplace":   "work",
	"job":         "work",
	"office":      "work",
	"gym":         "exercise",
	"working out": "exercise",
	"anxiety":     "anxious",
	"happiness":   "happy",
	"sadness":     "sad",
}

// Canonicalize normalizes a raw entity mention into a stable comparison key:
// case-fold, trim, collapse whitespace, strip leading articles and trailing
// punctuation, then resolve known aliases.
func Canonicalize(name string) string {
	c := strings.ToLower(strings.TrimSpace(name))
	c = whitespaceRe.ReplaceAllString(c, " ")
	c = strings.TrimRight(c, ".,!?;:")

	for _, article := range []string{"the ", "a ", "an "} {
		if strings.HasPrefix(c, article) && len(c) > len(article) {
			c = c[len(article):]
			break
		}
	}

	if canonical, ok := aliases[c]; ok {
		return canonical
	}
	return c
}
