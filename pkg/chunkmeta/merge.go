package chunkmeta

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/common"
)

const mergeTruncationMarker = "\n...(merged truncated)"

// mergeKey groups fragments of the same logical block. Tables and
// figures group on (type, page, caption); plain text groups on page
// alone. Chunks without a header never merge.
func mergeKey(hit common.ChunkHit, index int) string {
	meta, ok := ParseHeader(hit.Text)
	if !ok {
		return fmt.Sprintf("solo:%d:%s", index, hit.ChunkID)
	}

	blockType := meta["type"]
	page := Page(meta)
	switch blockType {
	case "table", "figure":
		return fmt.Sprintf("%s:%d:%s", blockType, page, meta["caption"])
	}
	return fmt.Sprintf("text:%d", page)
}

// MergeHitsByPage collapses candidates that belong to the same page or
// to the same table/figure into single records, concatenating bodies in
// input order. Page-based chunking splits one logical block across
// several chunks; merging restores enough context for reranking and
// answer generation. Merged text is capped at maxChars.
func MergeHitsByPage(hits []common.ChunkHit, maxChars int) []common.ChunkHit {
	if len(hits) <= 1 {
		return hits
	}

	order := make([]string, 0, len(hits))
	merged := make(map[string]*common.ChunkHit, len(hits))

	for i, hit := range hits {
		key := mergeKey(hit, i)
		existing, ok := merged[key]
		if !ok {
			h := hit
			merged[key] = &h
			order = append(order, key)
			continue
		}

		body := StripHeader(hit.Text)
		if strings.TrimSpace(body) == "" {
			continue
		}
		joined := existing.Text + "\n\n" + body
		if maxChars > 0 && len(joined) > maxChars {
			cut := maxChars - len(mergeTruncationMarker)
			for cut > 0 && !utf8.RuneStart(joined[cut]) {
				cut--
			}
			if cut < len(existing.Text) {
				continue
			}
			joined = joined[:cut] + mergeTruncationMarker
		}
		existing.Text = joined
	}

	out := make([]common.ChunkHit, 0, len(order))
	for _, key := range order {
		out = append(out, *merged[key])
	}
	return out
}
