package query

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/ai"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/common"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/store"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/tenant"
)

type fakeAI struct {
	extraction    string
	extractionErr error
	embeddingErr  error
}

func (f *fakeAI) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	if f.embeddingErr != nil {
		return nil, f.embeddingErr
	}
	return []float32{0.1, 0.2}, nil
}

func (f *fakeAI) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return "", nil
}

func (f *fakeAI) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	if f.extractionErr != nil {
		return f.extractionErr
	}
	return json.Unmarshal([]byte(f.extraction), out)
}

func (f *fakeAI) GenerateChat(ctx context.Context, messages []ai.ChatMessage, opts ...ai.GenerateOption) (string, error) {
	return "", nil
}

func (f *fakeAI) ResetMetrics()               {}
func (f *fakeAI) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

type fakeChunks struct {
	vectorHits []common.ChunkHit
	searchErr  error
	byID       map[string]common.ChunkHit
	sources    map[string]common.DocSource

	lastQueryText string
}

func (f *fakeChunks) SearchChunks(ctx context.Context, tc tenant.Context, queryText string, emb []float32, topK int) ([]common.ChunkHit, error) {
	f.lastQueryText = queryText
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.vectorHits, nil
}

func (f *fakeChunks) GetChunksByIDs(ctx context.Context, tc tenant.Context, chunkIDs []string) ([]common.ChunkHit, error) {
	hits := []common.ChunkHit{}
	for _, id := range chunkIDs {
		if h, ok := f.byID[id]; ok {
			hits = append(hits, h)
		}
	}
	return hits, nil
}

func (f *fakeChunks) FetchDocSources(ctx context.Context, tc tenant.Context, docIDs []string) (map[string]common.DocSource, error) {
	return f.sources, nil
}

type fakeGraph struct {
	exact       map[string][]common.Entity
	similar     []store.EntitySimilarity
	neighbors   []common.Neighbor
	chunkScores []common.ChunkScore
	scoresErr   error

	lastChunkEntityIDs []string
}

func (f *fakeGraph) FindByNameOrAlias(ctx context.Context, tc tenant.Context, query string, limit int) ([]common.Entity, error) {
	return f.exact[strings.ToLower(query)], nil
}

func (f *fakeGraph) FindByEmbedding(ctx context.Context, tc tenant.Context, emb []float32, limit int, minSimilarity *float64) ([]store.EntitySimilarity, error) {
	return f.similar, nil
}

func (f *fakeGraph) GetNeighborEntities(ctx context.Context, tc tenant.Context, entityIDs []string, edgeType string, limit int) ([]common.Neighbor, error) {
	return f.neighbors, nil
}

func (f *fakeGraph) ListChunkIDsByEntities(ctx context.Context, tc tenant.Context, entityIDs []string, limit int) ([]common.ChunkScore, error) {
	f.lastChunkEntityIDs = entityIDs
	if f.scoresErr != nil {
		return nil, f.scoresErr
	}
	return f.chunkScores, nil
}

type fakeScorer struct {
	called  bool
	reverse bool
}

func (f *fakeScorer) RerankHits(ctx context.Context, query string, hits []common.ChunkHit, minScore float64) []common.ChunkHit {
	f.called = true
	if !f.reverse {
		return hits
	}
	out := make([]common.ChunkHit, len(hits))
	for i, h := range hits {
		out[len(hits)-1-i] = h
	}
	return out
}

func testTenant(t *testing.T) tenant.Context {
	t.Helper()
	tc, err := tenant.New("acme", 1, "req-1")
	if err != nil {
		t.Fatalf("tenant.New: %v", err)
	}
	return tc
}

func hit(id, doc, text string) common.ChunkHit {
	return common.ChunkHit{ChunkID: id, DocID: doc, Text: text}
}

const extractionJSON = `{"entities":[{"name":"alice","type":"person"}]}`

func TestQueryEmptyText(t *testing.T) {
	e := NewEngine(&fakeChunks{}, &fakeGraph{}, &fakeAI{}, nil, Options{})
	if _, err := e.Query(context.Background(), testTenant(t), "   "); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestQueryVectorOnly(t *testing.T) {
	chunks := &fakeChunks{
		vectorHits: []common.ChunkHit{hit("c1", "d1", "first"), hit("c2", "d1", "second")},
		sources:    map[string]common.DocSource{"d1": {DocID: "d1", Title: "Doc"}},
	}
	e := NewEngine(chunks, &fakeGraph{}, &fakeAI{}, nil, Options{GraphEnabled: false, TopK: 2})

	res, err := e.Query(context.Background(), testTenant(t), "hello")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(res.Hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(res.Hits))
	}
	if res.Context != "first\n\nsecond" {
		t.Fatalf("unexpected context: %q", res.Context)
	}
	if res.AugmentedQuery != "hello" {
		t.Fatalf("expected unaugmented query, got %q", res.AugmentedQuery)
	}
	if len(res.Sources) != 1 || res.Sources[0].DocID != "d1" {
		t.Fatalf("expected doc source d1, got %v", res.Sources)
	}
}

func TestQueryGraphCandidatesComeFirst(t *testing.T) {
	chunks := &fakeChunks{
		vectorHits: []common.ChunkHit{hit("c2", "d1", "vector"), hit("c3", "d1", "vector only")},
		byID: map[string]common.ChunkHit{
			"c1": hit("c1", "d1", "graph"),
			"c2": hit("c2", "d1", "vector"),
		},
	}
	graph := &fakeGraph{
		exact:       map[string][]common.Entity{"alice": {{EntityID: "e1", Name: "Alice", OccurrenceCount: 3, IsActive: true}}},
		chunkScores: []common.ChunkScore{{ChunkID: "c1", Score: 5}, {ChunkID: "c2", Score: 2}},
	}
	e := NewEngine(chunks, graph, &fakeAI{extraction: extractionJSON}, nil, Options{GraphEnabled: true, TopK: 3})

	res, err := e.Query(context.Background(), testTenant(t), "who is alice")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	want := []string{"c1", "c2", "c3"}
	if len(res.Hits) != len(want) {
		t.Fatalf("expected %d hits, got %d", len(want), len(res.Hits))
	}
	for i, id := range want {
		if res.Hits[i].ChunkID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, res.Hits[i].ChunkID)
		}
	}
	if len(res.Seeds) != 1 || res.Seeds[0].EntityID != "e1" || !res.Seeds[0].Exact {
		t.Fatalf("expected exact seed e1, got %v", res.Seeds)
	}
}

func TestQueryAugmentsWithSeedAndNeighborNames(t *testing.T) {
	chunks := &fakeChunks{vectorHits: []common.ChunkHit{hit("c1", "d1", "text")}}
	graph := &fakeGraph{
		exact: map[string][]common.Entity{"alice": {{EntityID: "e1", Name: "Alice", IsActive: true}}},
		neighbors: []common.Neighbor{
			{DstEntity: "e2", DstName: "Bob", Weight: 0.9},
			{DstEntity: "e3", DstName: "alice", Weight: 0.5},
		},
	}
	e := NewEngine(chunks, graph, &fakeAI{extraction: extractionJSON}, nil, Options{GraphEnabled: true})

	res, err := e.Query(context.Background(), testTenant(t), "who is alice")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.AugmentedQuery != "who is alice\n\nAlice, Bob" {
		t.Fatalf("unexpected augmented query: %q", res.AugmentedQuery)
	}
	if chunks.lastQueryText != res.AugmentedQuery {
		t.Fatalf("vector search should use the augmented query, got %q", chunks.lastQueryText)
	}
}

func TestQueryGraphChunksFetchedForSeedsOnly(t *testing.T) {
	chunks := &fakeChunks{
		vectorHits: []common.ChunkHit{hit("c1", "d1", "text")},
		byID:       map[string]common.ChunkHit{"c1": hit("c1", "d1", "text")},
	}
	graph := &fakeGraph{
		exact:       map[string][]common.Entity{"alice": {{EntityID: "e1", Name: "Alice", IsActive: true}}},
		neighbors:   []common.Neighbor{{DstEntity: "e2", DstName: "Bob", Weight: 0.9}},
		chunkScores: []common.ChunkScore{{ChunkID: "c1", Score: 1}},
	}
	e := NewEngine(chunks, graph, &fakeAI{extraction: extractionJSON}, nil, Options{GraphEnabled: true})

	if _, err := e.Query(context.Background(), testTenant(t), "who is alice"); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(graph.lastChunkEntityIDs) != 1 || graph.lastChunkEntityIDs[0] != "e1" {
		t.Fatalf("chunk fetch should use seed ids only, got %v", graph.lastChunkEntityIDs)
	}
}

func TestQueryGraphFailureDegrades(t *testing.T) {
	chunks := &fakeChunks{vectorHits: []common.ChunkHit{hit("c1", "d1", "text")}}
	graph := &fakeGraph{
		exact:     map[string][]common.Entity{"alice": {{EntityID: "e1", Name: "Alice", IsActive: true}}},
		scoresErr: errors.New("graph down"),
	}
	e := NewEngine(chunks, graph, &fakeAI{extraction: extractionJSON}, nil, Options{GraphEnabled: true})

	res, err := e.Query(context.Background(), testTenant(t), "who is alice")
	if err != nil {
		t.Fatalf("expected degradation, got error: %v", err)
	}
	if len(res.Hits) != 1 || res.Hits[0].ChunkID != "c1" {
		t.Fatalf("expected vector-only hit, got %v", res.Hits)
	}
	if res.AugmentedQuery != "who is alice" {
		t.Fatalf("degraded request should use the original query, got %q", res.AugmentedQuery)
	}
}

func TestQueryExtractionFailureDegrades(t *testing.T) {
	chunks := &fakeChunks{vectorHits: []common.ChunkHit{hit("c1", "d1", "text")}}
	e := NewEngine(chunks, &fakeGraph{}, &fakeAI{extractionErr: errors.New("model down")}, nil, Options{GraphEnabled: true})

	res, err := e.Query(context.Background(), testTenant(t), "who is alice")
	if err != nil {
		t.Fatalf("expected degradation, got error: %v", err)
	}
	if len(res.Hits) != 1 {
		t.Fatalf("expected vector-only hit, got %v", res.Hits)
	}
}

func TestQueryVectorFailureIsFatal(t *testing.T) {
	chunks := &fakeChunks{searchErr: errors.New("pg down")}
	e := NewEngine(chunks, &fakeGraph{}, &fakeAI{}, nil, Options{GraphEnabled: false})

	if _, err := e.Query(context.Background(), testTenant(t), "hello"); err == nil {
		t.Fatalf("expected vector path failure to be fatal")
	}
}

func TestQueryRerankApplied(t *testing.T) {
	chunks := &fakeChunks{vectorHits: []common.ChunkHit{hit("c1", "d1", "a"), hit("c2", "d1", "b")}}
	scorer := &fakeScorer{reverse: true}
	e := NewEngine(chunks, &fakeGraph{}, &fakeAI{}, scorer, Options{GraphEnabled: false, TopK: 2})

	res, err := e.Query(context.Background(), testTenant(t), "hello")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !scorer.called {
		t.Fatalf("expected scorer to run")
	}
	if res.Hits[0].ChunkID != "c2" {
		t.Fatalf("expected reranked order, got %s first", res.Hits[0].ChunkID)
	}
}

func TestQueryExpiredContextSkipsRerank(t *testing.T) {
	chunks := &fakeChunks{vectorHits: []common.ChunkHit{hit("c1", "d1", "a"), hit("c2", "d1", "b")}}
	scorer := &fakeScorer{reverse: true}
	e := NewEngine(chunks, &fakeGraph{}, &fakeAI{}, scorer, Options{GraphEnabled: false, TopK: 2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.Query(ctx, testTenant(t), "hello")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if scorer.called {
		t.Fatalf("expected rerank to be skipped after deadline")
	}
	if res.Hits[0].ChunkID != "c1" {
		t.Fatalf("expected merged order to be served, got %s first", res.Hits[0].ChunkID)
	}
}

func TestQueryTruncatesCandidatesBeforeMerge(t *testing.T) {
	vectorHits := make([]common.ChunkHit, 6)
	for i := range vectorHits {
		vectorHits[i] = hit(string(rune('a'+i)), "d1", "text")
	}
	chunks := &fakeChunks{vectorHits: vectorHits}
	e := NewEngine(chunks, &fakeGraph{}, &fakeAI{}, nil, Options{GraphEnabled: false, RerankCandidates: 4, TopK: 10})

	res, err := e.Query(context.Background(), testTenant(t), "hello")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(res.Hits) != 4 {
		t.Fatalf("expected candidate quota of 4, got %d", len(res.Hits))
	}
}

func TestQueryContextTruncation(t *testing.T) {
	long := strings.Repeat("x", 100)
	chunks := &fakeChunks{vectorHits: []common.ChunkHit{hit("c1", "d1", long)}}
	e := NewEngine(chunks, &fakeGraph{}, &fakeAI{}, nil, Options{GraphEnabled: false, MaxContextChars: 50})

	res, err := e.Query(context.Background(), testTenant(t), "hello")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(res.Context) > 50 {
		t.Fatalf("context exceeds ceiling: %d chars", len(res.Context))
	}
	if !strings.HasSuffix(res.Context, contextTruncationMarker) {
		t.Fatalf("expected truncation marker, got %q", res.Context)
	}
}
