package chunkmeta

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Chunk texts may begin with a single structured header line of the form
//
//	[[META type=table page=3 caption=Quarterly revenue]]
//
// encoding where the chunk came from inside the source document. The
// header is written by the ingestion flow and consumed at query time to
// regroup fragments of the same page, table, or figure.

const headerPrefix = "[[META"

const maxValueChars = 120

var pageRe = regexp.MustCompile(`page=(\d+)`)

func sanitizeValue(value string) string {
	value = strings.ReplaceAll(value, "]", "")
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.TrimSpace(value)
	if len(value) > maxValueChars {
		value = value[:maxValueChars] + "…"
	}
	return value
}

// BuildHeader renders the header line for a chunk. Caption is optional.
func BuildHeader(blockType string, page int, caption string) string {
	parts := []string{
		fmt.Sprintf("type=%s", sanitizeValue(blockType)),
		fmt.Sprintf("page=%d", page),
	}
	if caption != "" {
		caption = strings.ReplaceAll(sanitizeValue(caption), " ", "_")
		parts = append(parts, fmt.Sprintf("caption=%s", caption))
	}
	return headerPrefix + " " + strings.Join(parts, " ") + "]]"
}

// ParseHeader reads the key=value pairs from the first line of text.
// The second return value is false when no header is present.
func ParseHeader(text string) (map[string]string, bool) {
	line, _, _ := strings.Cut(text, "\n")
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, headerPrefix) || !strings.HasSuffix(line, "]]") {
		return nil, false
	}

	body := strings.TrimSuffix(strings.TrimPrefix(line, headerPrefix), "]]")
	meta := make(map[string]string)
	for _, token := range strings.Fields(body) {
		key, value, ok := strings.Cut(token, "=")
		if !ok || key == "" {
			continue
		}
		meta[key] = value
	}
	if len(meta) == 0 {
		return nil, false
	}
	return meta, true
}

// Page returns the page number from a parsed header, or -1 when absent
// or unparsable.
func Page(meta map[string]string) int {
	raw, ok := meta["page"]
	if !ok {
		return -1
	}
	page, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return page
}

// PageFromText scans raw chunk text for a page tag without requiring a
// well-formed header line. Returns -1 when no tag is found.
func PageFromText(text string) int {
	m := pageRe.FindStringSubmatch(text)
	if m == nil {
		return -1
	}
	page, err := strconv.Atoi(m[1])
	if err != nil {
		return -1
	}
	return page
}

// StripHeader removes the header line from text, if present.
func StripHeader(text string) string {
	if _, ok := ParseHeader(text); !ok {
		return text
	}
	_, rest, found := strings.Cut(text, "\n")
	if !found {
		return ""
	}
	return strings.TrimPrefix(rest, "\n")
}
