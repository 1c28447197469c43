package util

import (
	"testing"
	"unicode/utf8"
)

func TestSanitizePostgresText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain utf8",
			input: "hello world",
			want:  "hello world",
		},
		{
			name:  "contains null byte",
			input: "hel\x00lo",
			want:  "hello",
		},
		{
			name:  "contains invalid utf8",
			input: string([]byte{'a', 0xff, 'b'}),
			want:  "ab",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizePostgresText(tt.input)
			if got != tt.want {
				t.Fatalf("unexpected sanitized value: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncateWithMarker(t *testing.T) {
	if got := TruncateWithMarker("short", 100, "..."); got != "short" {
		t.Fatalf("expected untouched string, got %q", got)
	}

	got := TruncateWithMarker("abcdefghij", 8, "...")
	if got != "abcde..." {
		t.Fatalf("unexpected truncation: got %q", got)
	}
	if len(got) != 8 {
		t.Fatalf("result exceeds limit: %d", len(got))
	}

	if got := TruncateWithMarker("abcdefghij", 0, "..."); got != "abcdefghij" {
		t.Fatalf("maxChars=0 should disable truncation, got %q", got)
	}
}

func TestTruncateWithMarkerKeepsValidUTF8(t *testing.T) {
	// Each ü is two bytes; a byte-index cut at 5 would land mid-rune.
	got := TruncateWithMarker("üüüüüü", 8, "...")
	if !utf8.ValidString(got) {
		t.Fatalf("truncation produced invalid utf8: %q", got)
	}
	if len(got) > 8 {
		t.Fatalf("result exceeds limit: %d", len(got))
	}
	if got != "üü..." {
		t.Fatalf("unexpected truncation: got %q", got)
	}
}
