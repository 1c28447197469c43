package pgx

import (
	"errors"
	"testing"

	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/store"
)

func TestTextHashStable(t *testing.T) {
	a := textHash("hello world")
	b := textHash("hello world")
	if a != b {
		t.Fatalf("expected stable hash, got %q and %q", a, b)
	}
	if a == textHash("hello world!") {
		t.Fatalf("expected different inputs to hash differently")
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
}

func TestValidateEmbedding(t *testing.T) {
	t.Setenv("AI_EMBED_DIM", "4")

	if err := validateEmbedding(nil); err != nil {
		t.Fatalf("nil embedding should be allowed: %v", err)
	}
	if err := validateEmbedding([]float32{1, 2, 3, 4}); err != nil {
		t.Fatalf("matching dimension should pass: %v", err)
	}

	err := validateEmbedding([]float32{1, 2, 3})
	if err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
	if !errors.Is(err, store.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestVectorOrNil(t *testing.T) {
	if vectorOrNil(nil) != nil {
		t.Fatalf("nil embedding should map to nil parameter")
	}
	if vectorOrNil([]float32{1, 2}) == nil {
		t.Fatalf("non-nil embedding should produce a vector parameter")
	}
}

func TestNullIfEmpty(t *testing.T) {
	if nullIfEmpty("") != nil {
		t.Fatalf("empty string should map to nil")
	}
	got := nullIfEmpty("x")
	if got == nil || *got != "x" {
		t.Fatalf("non-empty string should round-trip, got %v", got)
	}
}
