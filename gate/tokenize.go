package gate

import (
	"strings"
	"unicode"
)

// Tokenize splits text into lower-cased word tokens: maximal runs of Unicode
// letters, with apostrophes kept when they sit between two letters ("don't").
func Tokenize(text string) []string {
	runes := []rune(text)
	tokens := make([]string, 0, len(runes)/5+1)

	start := -1
	for i, r := range runes {
		if unicode.IsLetter(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 && isApostrophe(r) && i+1 < len(runes) && unicode.IsLetter(runes[i+1]) {
			continue
		}
		if start >= 0 {
			tokens = append(tokens, strings.ToLower(string(runes[start:i])))
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, strings.ToLower(string(runes[start:])))
	}
	return tokens
}

func isApostrophe(r rune) bool {
	return r == '\'' || r == '’'
}

// Words splits text into lower-cased runs of letters and digits. Every other
// rune, apostrophes included, is a boundary, so "shit's" yields "shit" and "s".
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
