package store

import (
	"errors"
	"testing"
)

func TestChunkRange(t *testing.T) {
	var ranges [][2]int
	err := ChunkRange(10, 4, func(start, end int) error {
		ranges = append(ranges, [2]int{start, end})
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	want := [][2]int{{0, 4}, {4, 8}, {8, 10}}
	if len(ranges) != len(want) {
		t.Fatalf("expected %d ranges, got %d", len(want), len(ranges))
	}
	for i := range want {
		if ranges[i] != want[i] {
			t.Fatalf("range %d: got %v want %v", i, ranges[i], want[i])
		}
	}
}

func TestChunkRange_ZeroTotal(t *testing.T) {
	calls := 0
	err := ChunkRange(0, 4, func(start, end int) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected 0 calls, got %d", calls)
	}
}

func TestChunkRange_PropagatesError(t *testing.T) {
	wantErr := errors.New("boom")
	err := ChunkRange(10, 4, func(start, end int) error {
		if start == 4 {
			return wantErr
		}
		return nil
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestDedupeStrings(t *testing.T) {
	got := DedupeStrings([]string{"a", "b", "a", "", "c", "b"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	if got := DedupeStrings(nil); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}
