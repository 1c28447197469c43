package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/common"
)

func newScorer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, time.Second)
}

func scoreServer(t *testing.T, scores map[string]float64) *Client {
	return newScorer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rerank" {
			http.NotFound(w, r)
			return
		}
		var req rerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		results := make([]Result, 0, len(req.Documents))
		for _, doc := range req.Documents {
			results = append(results, Result{Doc: doc, Score: scores[doc]})
		}
		for i := range results {
			for j := i + 1; j < len(results); j++ {
				if results[j].Score > results[i].Score {
					results[i], results[j] = results[j], results[i]
				}
			}
		}
		for i := range results {
			results[i].Rank = i + 1
		}
		json.NewEncoder(w).Encode(rerankResponse{Results: results})
	})
}

func hitTexts(hits []common.ChunkHit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Text
	}
	return out
}

func TestNewClientEmptyURLDisables(t *testing.T) {
	if NewClient("", time.Second) != nil {
		t.Fatalf("empty base URL should return nil client")
	}
}

func TestRerankHitsReorders(t *testing.T) {
	client := scoreServer(t, map[string]float64{"a": 0.5, "b": 0.9, "c": 0.7})

	hits := []common.ChunkHit{{ChunkID: "1", Text: "a"}, {ChunkID: "2", Text: "b"}, {ChunkID: "3", Text: "c"}}
	got := client.RerankHits(context.Background(), "query", hits, 0.4)

	want := []string{"b", "c", "a"}
	texts := hitTexts(got)
	if len(texts) != len(want) {
		t.Fatalf("expected %d hits, got %d", len(want), len(texts))
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Fatalf("position %d: expected %q, got %q", i, want[i], texts[i])
		}
	}
	if got[0].Score == nil || *got[0].Score != 0.9 {
		t.Fatalf("expected top score 0.9, got %v", got[0].Score)
	}
}

func TestRerankHitsMinScoreFilters(t *testing.T) {
	client := scoreServer(t, map[string]float64{"a": 0.9, "b": 0.1})

	hits := []common.ChunkHit{{ChunkID: "1", Text: "a"}, {ChunkID: "2", Text: "b"}}
	got := client.RerankHits(context.Background(), "query", hits, 0.4)

	if len(got) != 1 || got[0].ChunkID != "1" {
		t.Fatalf("expected only chunk 1 to survive the threshold, got %v", hitTexts(got))
	}
}

func TestRerankHitsAllFilteredFallsBack(t *testing.T) {
	client := scoreServer(t, map[string]float64{"a": 0.2, "b": 0.1})

	hits := []common.ChunkHit{{ChunkID: "1", Text: "a"}, {ChunkID: "2", Text: "b"}}
	got := client.RerankHits(context.Background(), "query", hits, 0.4)

	if len(got) != 2 {
		t.Fatalf("expected pre-threshold order to survive, got %d hits", len(got))
	}
	if got[0].ChunkID != "1" || got[1].ChunkID != "2" {
		t.Fatalf("expected score order 1,2, got %s,%s", got[0].ChunkID, got[1].ChunkID)
	}
}

func TestRerankHitsServiceErrorKeepsOrder(t *testing.T) {
	client := newScorer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	hits := []common.ChunkHit{{ChunkID: "1", Text: "a"}, {ChunkID: "2", Text: "b"}}
	got := client.RerankHits(context.Background(), "query", hits, 0.4)

	if len(got) != 2 || got[0].ChunkID != "1" || got[1].ChunkID != "2" {
		t.Fatalf("expected original order on service error, got %v", hitTexts(got))
	}
}

func TestHealthy(t *testing.T) {
	client := newScorer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	})
	if err := client.Healthy(context.Background()); err != nil {
		t.Fatalf("expected healthy, got %v", err)
	}
}
