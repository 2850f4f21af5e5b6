package lesson

import (
	"strings"
	"unicode"
)

var punctuationReplacer = strings.NewReplacer(
	"'", "",
	`"`, "",
	"?", ".",
	"!", ".",
)

// Sanitize rewrites a line of dialogue into text the speech engine handles
// reliably: quotes are dropped, ? and ! become periods, and anything other
// than letters, digits, whitespace, commas and periods is removed.
func Sanitize(text string) string {
	text = punctuationReplacer.Replace(text)
	text = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r):
			return r
		case r == ',' || r == '.':
			return r
		default:
			return -1
		}
	}, text)
	return strings.TrimSpace(text)
}
