package rules

import (
	"strings"

	"golang.org/x/text/width"
)

// Fold maps full-width digits, letters and punctuation to their ASCII forms
// so that one set of patterns covers both renderings. Matching always runs
// on folded text; extracted titles keep the recognized form.
func Fold(s string) string {
	return width.Fold.String(s)
}

// ContainsAny reports whether s contains any of the keywords
func ContainsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(s, k) {
			return true
		}
	}
	return false
}
