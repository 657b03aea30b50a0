package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// truncate cuts s to at most n bytes on a rune boundary. Invalid UTF-8 is
// dropped first.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func hasControl(s string) bool {
	return strings.ContainsFunc(s, unicode.IsControl)
}
