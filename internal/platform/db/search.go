package db

import (
	"strings"
	"unicode"
)

// PrefixQuery turns free text into a to_tsquery expression that matches
// every word as a prefix ("ann card" -> "ann:* & card:*"). Characters with
// meaning in tsquery syntax are dropped. Returns "" when nothing remains.
func PrefixQuery(q string) string {
	words := strings.FieldsFunc(q, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(words))
	for _, w := range words {
		terms = append(terms, strings.ToLower(w)+":*")
	}
	return strings.Join(terms, " & ")
}
