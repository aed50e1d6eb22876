package ui

import "unicode/utf8"

// TruncateSimple cuts text to maxLen runes, ending with "..." when
// anything was removed.
func TruncateSimple(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	runes := []rune(text)
	return string(runes[:maxLen-3]) + "..."
}
