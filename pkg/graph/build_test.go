package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/ai"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/common"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/store"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/tenant"
)

type fakeWriter struct {
	entities []store.UpsertEntityParams
	mentions []common.Mention
	edges    []store.UpsertEdgeParams
}

func (f *fakeWriter) UpsertEntity(_ context.Context, _ tenant.Context, params store.UpsertEntityParams) (common.Entity, error) {
	f.entities = append(f.entities, params)
	return common.Entity{
		EntityID:       fmt.Sprintf("id-%s", params.Name),
		Name:           params.Name,
		Type:           params.Type,
		Classification: params.Classification,
	}, nil
}

func (f *fakeWriter) UpsertEdge(_ context.Context, _ tenant.Context, params store.UpsertEdgeParams) (common.Edge, error) {
	f.edges = append(f.edges, params)
	return common.Edge{SrcEntity: params.SrcEntity, DstEntity: params.DstEntity}, nil
}

func (f *fakeWriter) UpsertMention(_ context.Context, _ tenant.Context, mention common.Mention) error {
	f.mentions = append(f.mentions, mention)
	return nil
}

type fakeEmbedder struct {
	ai.Client
	err error
}

func (f *fakeEmbedder) GenerateEmbedding(_ context.Context, _ []byte) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

func testTenant(t *testing.T) tenant.Context {
	t.Helper()
	tc, err := tenant.New("acme", 3, "req-1")
	if err != nil {
		t.Fatalf("tenant.New: %v", err)
	}
	return tc
}

func TestBuildDeduplicatesEntitiesAndSumsNothing(t *testing.T) {
	writer := &fakeWriter{}
	b := NewBuilder(writer, &fakeEmbedder{})

	chunkIDs := []string{"c1", "c2"}
	stats, err := b.Build(context.Background(), testTenant(t), chunkIDs, []Observation{
		{Name: "Alice", Type: "person", ChunkIndex: 0, MentionCount: 2},
		{Name: "alice ", Type: "person", ChunkIndex: 1, Aliases: []string{"A."}},
		{Name: "Velox", Type: "org", ChunkIndex: 0},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if stats.Entities != 2 {
		t.Fatalf("expected 2 entities, got %d", stats.Entities)
	}
	if stats.Mentions != 3 {
		t.Fatalf("expected 3 mentions, got %d", stats.Mentions)
	}
	if len(writer.entities) != 2 {
		t.Fatalf("expected 2 entity upserts, got %d", len(writer.entities))
	}
	if got := writer.entities[0].Aliases; len(got) != 1 || got[0] != "A." {
		t.Fatalf("expected merged aliases [A.], got %v", got)
	}
	if writer.mentions[0].MentionCount != 2 {
		t.Fatalf("expected mention count 2, got %d", writer.mentions[0].MentionCount)
	}
	if writer.mentions[1].MentionCount != 1 {
		t.Fatalf("expected defaulted mention count 1, got %d", writer.mentions[1].MentionCount)
	}
}

func TestBuildWritesCoOccurrenceEdgesBothDirections(t *testing.T) {
	writer := &fakeWriter{}
	b := NewBuilder(writer, &fakeEmbedder{})

	_, err := b.Build(context.Background(), testTenant(t), []string{"c1"}, []Observation{
		{Name: "Alice", Type: "person", ChunkIndex: 0, Classification: 1},
		{Name: "Velox", Type: "org", ChunkIndex: 0, Classification: 3},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(writer.edges) != 2 {
		t.Fatalf("expected 2 directed edges, got %d", len(writer.edges))
	}
	pairs := []string{
		writer.edges[0].SrcEntity + "->" + writer.edges[0].DstEntity,
		writer.edges[1].SrcEntity + "->" + writer.edges[1].DstEntity,
	}
	sort.Strings(pairs)
	want := []string{"id-Alice->id-Velox", "id-Velox->id-Alice"}
	if pairs[0] != want[0] || pairs[1] != want[1] {
		t.Fatalf("expected symmetric pair %v, got %v", want, pairs)
	}
	for _, e := range writer.edges {
		if e.EdgeType != CoOccurrenceEdgeType {
			t.Fatalf("expected edge type %q, got %q", CoOccurrenceEdgeType, e.EdgeType)
		}
		if e.Classification != 3 {
			t.Fatalf("expected edge classification 3, got %d", e.Classification)
		}
		if len(e.EvidenceChunkIDs) != 1 || e.EvidenceChunkIDs[0] != "c1" {
			t.Fatalf("expected evidence [c1], got %v", e.EvidenceChunkIDs)
		}
	}
}

func TestBuildSkipsOutOfRangeObservations(t *testing.T) {
	writer := &fakeWriter{}
	b := NewBuilder(writer, &fakeEmbedder{})

	stats, err := b.Build(context.Background(), testTenant(t), []string{"c1"}, []Observation{
		{Name: "Alice", Type: "person", ChunkIndex: 5},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if stats.Entities != 0 || stats.Mentions != 0 || stats.Edges != 0 {
		t.Fatalf("expected empty stats, got %+v", stats)
	}
}

func TestBuildSurvivesEmbeddingFailure(t *testing.T) {
	writer := &fakeWriter{}
	b := NewBuilder(writer, &fakeEmbedder{err: errors.New("embed down")})

	stats, err := b.Build(context.Background(), testTenant(t), []string{"c1"}, []Observation{
		{Name: "Alice", Type: "person", ChunkIndex: 0},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if stats.Entities != 1 {
		t.Fatalf("expected 1 entity, got %d", stats.Entities)
	}
	if writer.entities[0].Embedding != nil {
		t.Fatalf("expected nil embedding after failure, got %v", writer.entities[0].Embedding)
	}
}
