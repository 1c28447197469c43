package util

import (
	"strings"
	"unicode/utf8"
)

func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}

// TruncateWithMarker cuts s at maxChars bytes and appends marker.
// The marker counts against the limit so the result never exceeds
// maxChars. The cut backs off to a rune boundary so truncation never
// leaves invalid UTF-8 in front of the marker.
func TruncateWithMarker(s string, maxChars int, marker string) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	cut := maxChars - len(marker)
	if cut < 0 {
		cut = 0
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + marker
}
