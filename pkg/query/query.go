package query

import (
	"context"

	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/ai"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/common"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/rerank"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/store"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/tenant"
)

// Scoring constants for hybrid entity matching. Exact name matches
// always outrank embedding matches; occurrence count acts as a soft
// popularity prior on both.
const (
	exactMatchBase     = 1.0
	embeddingSimWeight = 0.7
	occurrenceWeight   = 0.2
)

const contextTruncationMarker = "\n...(truncated)"

// Options tunes the retrieval pipeline. Zero values fall back to the
// defaults from DefaultOptions.
type Options struct {
	GraphEnabled     bool
	GraphCandidates  int
	VectorCandidates int
	RerankCandidates int
	TopK             int
	MaxContextChars  int
	MergeMaxChars    int
	MinRerankScore   float64
	EntityMatchLimit int
	NeighborLimit    int
	PromptVariant    string
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		GraphEnabled:     true,
		GraphCandidates:  20,
		VectorCandidates: 40,
		RerankCandidates: 10,
		TopK:             3,
		MaxContextChars:  8000,
		MergeMaxChars:    9000,
		MinRerankScore:   rerank.DefaultMinScore,
		EntityMatchLimit: 3,
		NeighborLimit:    10,
		PromptVariant:    "strict",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.GraphCandidates <= 0 {
		o.GraphCandidates = d.GraphCandidates
	}
	if o.VectorCandidates <= 0 {
		o.VectorCandidates = d.VectorCandidates
	}
	if o.RerankCandidates <= 0 {
		o.RerankCandidates = d.RerankCandidates
	}
	if o.TopK <= 0 {
		o.TopK = d.TopK
	}
	if o.MaxContextChars <= 0 {
		o.MaxContextChars = d.MaxContextChars
	}
	if o.MergeMaxChars <= 0 {
		o.MergeMaxChars = d.MergeMaxChars
	}
	if o.MinRerankScore <= 0 {
		o.MinRerankScore = d.MinRerankScore
	}
	if o.EntityMatchLimit <= 0 {
		o.EntityMatchLimit = d.EntityMatchLimit
	}
	if o.NeighborLimit <= 0 {
		o.NeighborLimit = d.NeighborLimit
	}
	if o.PromptVariant == "" {
		o.PromptVariant = d.PromptVariant
	}
	return o
}

// ChunkSearcher is the slice of the chunk store the pipeline needs.
type ChunkSearcher interface {
	SearchChunks(ctx context.Context, tc tenant.Context, queryText string, queryEmbedding []float32, topK int) ([]common.ChunkHit, error)
	GetChunksByIDs(ctx context.Context, tc tenant.Context, chunkIDs []string) ([]common.ChunkHit, error)
	FetchDocSources(ctx context.Context, tc tenant.Context, docIDs []string) (map[string]common.DocSource, error)
}

// GraphSearcher is the slice of the graph store the pipeline needs.
type GraphSearcher interface {
	FindByNameOrAlias(ctx context.Context, tc tenant.Context, query string, limit int) ([]common.Entity, error)
	FindByEmbedding(ctx context.Context, tc tenant.Context, queryEmbedding []float32, limit int, minSimilarity *float64) ([]store.EntitySimilarity, error)
	GetNeighborEntities(ctx context.Context, tc tenant.Context, entityIDs []string, edgeType string, limit int) ([]common.Neighbor, error)
	ListChunkIDsByEntities(ctx context.Context, tc tenant.Context, entityIDs []string, limit int) ([]common.ChunkScore, error)
}

// Scorer reranks merged candidates. *rerank.Client satisfies it; a nil
// Scorer disables the rerank stage.
type Scorer interface {
	RerankHits(ctx context.Context, query string, hits []common.ChunkHit, minScore float64) []common.ChunkHit
}

// EntityMatch is a graph entity resolved from the query, with its
// hybrid match score.
type EntityMatch struct {
	EntityID string  `json:"entity_id"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Score    float64 `json:"score"`
	Exact    bool    `json:"exact"`
}

// Result is the assembled answer context with its provenance.
type Result struct {
	Context        string             `json:"context"`
	Hits           []common.ChunkHit  `json:"hits"`
	Sources        []common.DocSource `json:"sources"`
	AugmentedQuery string             `json:"augmented_query"`
	Seeds          []EntityMatch      `json:"seeds,omitempty"`
}

// Engine runs the hybrid retrieval pipeline: graph seeds and vector
// search feed a shared candidate pool that is merged, reranked, and
// assembled into an answer context.
type Engine struct {
	chunks   ChunkSearcher
	graph    GraphSearcher
	aiClient ai.Client
	scorer   Scorer
	opts     Options
}

// NewEngine wires the pipeline. scorer may be nil to disable reranking.
func NewEngine(chunks ChunkSearcher, graph GraphSearcher, aiClient ai.Client, scorer Scorer, opts Options) *Engine {
	return &Engine{
		chunks:   chunks,
		graph:    graph,
		aiClient: aiClient,
		scorer:   scorer,
		opts:     opts.withDefaults(),
	}
}
