package chunkmeta

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/common"
)

func TestMergeHitsByPage_SameTableCollapses(t *testing.T) {
	hits := []common.ChunkHit{
		{ChunkID: "c1", Text: "[[META type=table page=3]]\nrow A"},
		{ChunkID: "c2", Text: "[[META type=table page=3]]\nrow B"},
	}

	merged := MergeHitsByPage(hits, 0)
	if len(merged) != 1 {
		t.Fatalf("expected 1 merged hit, got %d", len(merged))
	}
	if merged[0].ChunkID != "c1" {
		t.Fatalf("merged record must keep first chunk id, got %s", merged[0].ChunkID)
	}
	want := "[[META type=table page=3]]\nrow A\n\nrow B"
	if merged[0].Text != want {
		t.Fatalf("unexpected merged text: %q", merged[0].Text)
	}
}

func TestMergeHitsByPage_DifferentPagesStaySeparate(t *testing.T) {
	hits := []common.ChunkHit{
		{ChunkID: "c1", Text: "[[META type=text page=1]]\nA"},
		{ChunkID: "c2", Text: "[[META type=text page=2]]\nB"},
	}

	merged := MergeHitsByPage(hits, 0)
	if len(merged) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(merged))
	}
}

func TestMergeHitsByPage_CaptionSplitsTables(t *testing.T) {
	hits := []common.ChunkHit{
		{ChunkID: "c1", Text: "[[META type=table page=3 caption=a]]\nA"},
		{ChunkID: "c2", Text: "[[META type=table page=3 caption=b]]\nB"},
	}

	merged := MergeHitsByPage(hits, 0)
	if len(merged) != 2 {
		t.Fatalf("tables with different captions must not merge, got %d", len(merged))
	}
}

func TestMergeHitsByPage_HeaderlessChunksNeverMerge(t *testing.T) {
	hits := []common.ChunkHit{
		{ChunkID: "c1", Text: "plain A"},
		{ChunkID: "c2", Text: "plain B"},
	}

	merged := MergeHitsByPage(hits, 0)
	if len(merged) != 2 {
		t.Fatalf("headerless chunks must stay separate, got %d", len(merged))
	}
}

func TestMergeHitsByPage_PreservesInputOrder(t *testing.T) {
	hits := []common.ChunkHit{
		{ChunkID: "c1", Text: "[[META type=text page=2]]\nA"},
		{ChunkID: "c2", Text: "[[META type=text page=1]]\nB"},
		{ChunkID: "c3", Text: "[[META type=text page=2]]\nC"},
	}

	merged := MergeHitsByPage(hits, 0)
	if len(merged) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(merged))
	}
	if merged[0].ChunkID != "c1" || merged[1].ChunkID != "c2" {
		t.Fatalf("first-seen order not preserved: %s, %s", merged[0].ChunkID, merged[1].ChunkID)
	}
	if !strings.Contains(merged[0].Text, "C") {
		t.Fatalf("page 2 fragments not merged: %q", merged[0].Text)
	}
}

func TestMergeHitsByPage_TruncatesAtCeiling(t *testing.T) {
	long := strings.Repeat("x", 200)
	hits := []common.ChunkHit{
		{ChunkID: "c1", Text: "[[META type=text page=1]]\n" + long},
		{ChunkID: "c2", Text: "[[META type=text page=1]]\n" + long},
	}

	merged := MergeHitsByPage(hits, 300)
	if len(merged) != 1 {
		t.Fatalf("expected 1 merged hit, got %d", len(merged))
	}
	if len(merged[0].Text) > 300 {
		t.Fatalf("merged text exceeds cap: %d", len(merged[0].Text))
	}
	if !strings.HasSuffix(merged[0].Text, mergeTruncationMarker) {
		t.Fatalf("expected truncation marker, got tail %q", merged[0].Text[len(merged[0].Text)-30:])
	}
}

func TestMergeHitsByPage_TruncationKeepsValidUTF8(t *testing.T) {
	// Two-byte runes so a byte-index cut can land mid-rune.
	body := strings.Repeat("ü", 50)
	hits := []common.ChunkHit{
		{ChunkID: "c1", Text: "[[META type=text page=1]]\n" + body},
		{ChunkID: "c2", Text: "[[META type=text page=1]]\n" + body},
	}

	merged := MergeHitsByPage(hits, 173)
	if len(merged) != 1 {
		t.Fatalf("expected 1 merged hit, got %d", len(merged))
	}
	if !utf8.ValidString(merged[0].Text) {
		t.Fatalf("merged text is invalid utf8: %q", merged[0].Text)
	}
	if len(merged[0].Text) > 173 {
		t.Fatalf("merged text exceeds cap: %d", len(merged[0].Text))
	}
	if !strings.HasSuffix(merged[0].Text, mergeTruncationMarker) {
		t.Fatalf("expected truncation marker, got tail %q", merged[0].Text[len(merged[0].Text)-30:])
	}
}
