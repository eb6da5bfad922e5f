package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeString trims input, drops control characters other than newlines and
// tabs, and truncates to maxLen bytes without splitting a UTF-8 sequence.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(input))

	if maxLen <= 0 || len(cleaned) <= maxLen {
		return cleaned
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(cleaned[cut]) {
		cut--
	}
	return strings.TrimSpace(cleaned[:cut])
}
