package chunkmeta

import (
	"strings"
	"testing"
)

func TestBuildHeader(t *testing.T) {
	header := BuildHeader("table", 3, "Quarterly revenue")
	if header != "[[META type=table page=3 caption=Quarterly_revenue]]" {
		t.Fatalf("unexpected header: %q", header)
	}

	header = BuildHeader("text", 1, "")
	if header != "[[META type=text page=1]]" {
		t.Fatalf("unexpected header: %q", header)
	}
}

func TestBuildHeader_SanitizesValues(t *testing.T) {
	header := BuildHeader("table", 2, "bad]caption\nwith newline")
	if strings.Count(header, "]]") != 1 {
		t.Fatalf("caption brackets must be stripped: %q", header)
	}
	if strings.Contains(header, "\n") {
		t.Fatalf("newlines must be stripped: %q", header)
	}

	long := strings.Repeat("x", 500)
	header = BuildHeader("figure", 1, long)
	meta, ok := ParseHeader(header + "\nbody")
	if !ok {
		t.Fatal("expected parsable header")
	}
	if len(meta["caption"]) > maxValueChars+len("…") {
		t.Fatalf("caption not capped: %d chars", len(meta["caption"]))
	}
}

func TestParseHeader(t *testing.T) {
	text := "[[META type=table page=3 caption=rev]]\nrow one\nrow two"
	meta, ok := ParseHeader(text)
	if !ok {
		t.Fatal("expected header to parse")
	}
	if meta["type"] != "table" {
		t.Fatalf("expected type table, got %q", meta["type"])
	}
	if Page(meta) != 3 {
		t.Fatalf("expected page 3, got %d", Page(meta))
	}
	if meta["caption"] != "rev" {
		t.Fatalf("expected caption rev, got %q", meta["caption"])
	}
}

func TestParseHeader_NoHeader(t *testing.T) {
	for _, text := range []string{
		"plain text without header",
		"[[META broken",
		"",
	} {
		if _, ok := ParseHeader(text); ok {
			t.Fatalf("expected no header for %q", text)
		}
	}
}

func TestPage_MissingOrInvalid(t *testing.T) {
	if got := Page(map[string]string{"type": "text"}); got != -1 {
		t.Fatalf("expected -1 for missing page, got %d", got)
	}
	if got := Page(map[string]string{"page": "abc"}); got != -1 {
		t.Fatalf("expected -1 for invalid page, got %d", got)
	}
}

func TestPageFromText(t *testing.T) {
	if got := PageFromText("[[META type=text page=7]]\nbody"); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	if got := PageFromText("no tag here"); got != -1 {
		t.Fatalf("expected -1, got %d", got)
	}
}

func TestStripHeader(t *testing.T) {
	text := "[[META type=text page=1]]\nbody line"
	if got := StripHeader(text); got != "body line" {
		t.Fatalf("unexpected stripped text: %q", got)
	}
	if got := StripHeader("no header"); got != "no header" {
		t.Fatalf("text without header must pass through, got %q", got)
	}
}
