package identity

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldingNormalizer upper-cases and strips diacritics so that "josé",
// "José", and "JOSE" all collapse to the same lookup key.
type foldingNormalizer struct{}

// NewKeyNormalizer returns the default KeyNormalizer used for usernames,
// emails, and role names.
func NewKeyNormalizer() KeyNormalizer {
	return foldingNormalizer{}
}

func (foldingNormalizer) Normalize(key string) string {
	if key == "" {
		return ""
	}
	// transformers keep state, build a fresh chain per call so Normalize is
	// safe from concurrent goroutines
	strip := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(strip, key); err == nil {
		key = folded
	}
	return strings.ToUpper(key)
}
