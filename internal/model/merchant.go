package model

import (
	"strings"
	"unicode"
)

// NormalizeMerchant lowercases a merchant name, strips punctuation, and
// collapses runs of whitespace so matching keys are stable across
// statement formats.
func NormalizeMerchant(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
