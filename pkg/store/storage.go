package store

import (
	"context"
	"errors"

	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/common"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/tenant"
)

var (
	// ErrNotFound is returned when a document, version, chunk, entity,
	// or edge does not exist within the caller's tenant scope.
	ErrNotFound = errors.New("row not found")

	// ErrDimensionMismatch is returned before any I/O when an embedding
	// does not match the configured vector dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// IngestDocumentParams describes a document and its first version.
type IngestDocumentParams struct {
	Title          string
	SourceURI      string
	Classification int
	ParserVer      string
	EmbedModel     string
	ContentHash    string
	Chunks         []common.ChunkInput
}

// AddVersionParams appends a new version to an existing document.
type AddVersionParams struct {
	DocID       string
	VersionNo   int
	ContentHash string
	ParserVer   string
	EmbedModel  string
	Chunks      []common.ChunkInput
}

// EntitySimilarity pairs an entity with its cosine similarity to a query.
type EntitySimilarity struct {
	common.Entity
	Similarity float64
}

// UpsertEntityParams describes an entity observation. On natural-key
// collision the store merges instead of inserting.
type UpsertEntityParams struct {
	Name           string
	Type           string
	Classification int
	Aliases        []string
	Description    string
	Confidence     string
	Embedding      []float32
}

// UpsertEdgeParams describes one directed edge observation.
type UpsertEdgeParams struct {
	SrcEntity        string
	DstEntity        string
	EdgeType         string
	Weight           float64
	Confidence       string
	Classification   int
	EvidenceChunkIDs []string
	Notes            string
}

// UpdateEntityParams is a partial entity update; nil fields are untouched.
type UpdateEntityParams struct {
	EntityID    string
	Description *string
	Aliases     []string
	Confidence  *string
	IsActive    *bool
}

// SearchEntitiesParams filters the administrative entity listing.
type SearchEntitiesParams struct {
	Query      string
	Type       string
	ActiveOnly bool
	Limit      int
}

// ChunkStorage persists documents, versions, and chunks, and serves
// nearest-neighbor retrieval with audit logging.
type ChunkStorage interface {
	IngestDocument(ctx context.Context, tc tenant.Context, params IngestDocumentParams) (string, error)
	AddVersion(ctx context.Context, tc tenant.Context, params AddVersionParams) (string, error)
	SearchChunks(ctx context.Context, tc tenant.Context, queryText string, queryEmbedding []float32, topK int) ([]common.ChunkHit, error)
	UpdateChunkText(ctx context.Context, tc tenant.Context, chunkID string, newText string, newEmbedding []float32) error
	FindDocsByDirHint(ctx context.Context, tc tenant.Context, hint string, limit int) ([]common.Document, error)
	DeleteDocument(ctx context.Context, tc tenant.Context, docID string) (int64, error)

	ListChunks(ctx context.Context, tc tenant.Context, versionID string) ([]common.Chunk, error)
	ListDocChunkIDs(ctx context.Context, tc tenant.Context, docID string) ([]string, error)
	GetChunksByIDs(ctx context.Context, tc tenant.Context, chunkIDs []string) ([]common.ChunkHit, error)
	GetLatestVersion(ctx context.Context, tc tenant.Context, docID string) (common.DocumentVersion, error)
	FetchDocMeta(ctx context.Context, tc tenant.Context, docID string) (common.Document, error)
	FetchDocSources(ctx context.Context, tc tenant.Context, docIDs []string) (map[string]common.DocSource, error)
	ClearTenantDocs(ctx context.Context, tc tenant.Context) (int64, error)
}

// GraphStorage persists entities, edges, mentions, summaries, and the
// maintenance job queue.
type GraphStorage interface {
	UpsertEntity(ctx context.Context, tc tenant.Context, params UpsertEntityParams) (common.Entity, error)
	UpsertEdge(ctx context.Context, tc tenant.Context, params UpsertEdgeParams) (common.Edge, error)
	UpsertMention(ctx context.Context, tc tenant.Context, mention common.Mention) error

	FindByNameOrAlias(ctx context.Context, tc tenant.Context, query string, limit int) ([]common.Entity, error)
	FindByEmbedding(ctx context.Context, tc tenant.Context, queryEmbedding []float32, limit int, minSimilarity *float64) ([]EntitySimilarity, error)
	GetNeighborEntities(ctx context.Context, tc tenant.Context, entityIDs []string, edgeType string, limit int) ([]common.Neighbor, error)
	ListChunkIDsByEntities(ctx context.Context, tc tenant.Context, entityIDs []string, limit int) ([]common.ChunkScore, error)

	UpdateEntity(ctx context.Context, tc tenant.Context, params UpdateEntityParams) error
	DeactivateEntity(ctx context.Context, tc tenant.Context, entityID string) error
	SearchEntities(ctx context.Context, tc tenant.Context, params SearchEntitiesParams) ([]common.Entity, error)
	ListIsolatedEntities(ctx context.Context, tc tenant.Context, limit int) ([]common.Entity, error)
	ListEdgesByEntity(ctx context.Context, tc tenant.Context, entityID string) ([]common.Edge, error)
	UpdateEdge(ctx context.Context, tc tenant.Context, edgeID string, weight *float64, notes *string) error
	DeleteEdge(ctx context.Context, tc tenant.Context, edgeID string) error
	FetchChunkEntities(ctx context.Context, tc tenant.Context, chunkIDs []string) ([]common.Mention, error)
	GetEntitySummary(ctx context.Context, tc tenant.Context, entityID string) (string, error)
	UpsertEntitySummary(ctx context.Context, tc tenant.Context, entityID string, summary string) error

	DecrementEntityOccurrence(ctx context.Context, tc tenant.Context, entityID string, by int) error
	DecrementEdgeEvidence(ctx context.Context, tc tenant.Context, srcEntity, dstEntity, edgeType string, by int) error
	DeactivateEntitiesWithZeroOccurrence(ctx context.Context, tc tenant.Context, entityIDs []string) (int64, error)

	EnqueueJob(ctx context.Context, tc tenant.Context, jobType string, payload []byte) (string, error)
	FetchPendingJobs(ctx context.Context, tc tenant.Context, limit int) ([]common.GraphJob, error)
	MarkJobDone(ctx context.Context, tc tenant.Context, jobID string, success bool, errMessage string) error
}
