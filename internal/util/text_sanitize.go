package util

import (
	"strings"
	"unicode/utf8"
)

// SanitizeText removes NUL bytes and non-printing controls that PDF extractors
// leave behind and that Postgres text columns reject.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\x00", "")
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}

	r := make([]rune, 0, len(s))
	for _, ch := range s {
		if ch == '\n' || ch == '\r' || ch == '\t' {
			r = append(r, ch)
			continue
		}
		if ch < 0x20 {
			continue
		}
		r = append(r, ch)
	}
	return strings.TrimSpace(string(r))
}

// CollapseWhitespace joins all whitespace runs into single spaces.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to maxRunes runes and marks the cut with "...".
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return strings.TrimSpace(string(runes[:maxRunes])) + "..."
}
