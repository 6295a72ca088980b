package text

import (
	"strings"
)

// punctuation is the filter set stripped before splitting. Tokens are what
// remain after lowercasing, mapping every filtered rune to a space and
// splitting on whitespace.
const punctuation = "!\"#$%&()*+,-./:;<=>?@[\\]^_`{|}~"

// Tokenize normalizes a sentence into word tokens: lowercase, punctuation
// stripped, split on whitespace. An empty or punctuation-only sentence yields
// an empty slice.
func Tokenize(sentence string) []string {
	lowered := strings.ToLower(sentence)
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(punctuation, r) {
			return ' '
		}
		return r
	}, lowered)
	return strings.Fields(cleaned)
}
