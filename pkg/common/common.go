package common

import "time"

// Confidence levels used for entities, edges, and mentions.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// NormalizeConfidence maps arbitrary model output onto the three
// supported confidence levels, defaulting to medium.
func NormalizeConfidence(value string) string {
	switch value {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return value
	}
	return ConfidenceMedium
}

// Document is an ingested source document. It is immutable except
// through new versions; deletion cascades to versions and chunks.
type Document struct {
	DocID          string    `json:"doc_id"`
	AppID          string    `json:"app_id"`
	Title          string    `json:"title"`
	SourceURI      string    `json:"source_uri"`
	Classification int       `json:"classification"`
	CreatedAt      time.Time `json:"created_at"`
}

// DocumentVersion is one chunking/embedding pass over a document.
// The latest version is the one with the greatest (created_at, version_no).
type DocumentVersion struct {
	VersionID   string    `json:"version_id"`
	DocID       string    `json:"doc_id"`
	VersionNo   int       `json:"version_no"`
	ContentHash string    `json:"content_hash"`
	ParserVer   string    `json:"parser_ver"`
	EmbedModel  string    `json:"embed_model"`
	CreatedAt   time.Time `json:"created_at"`
}

// Chunk is one text segment of a document version. The text may begin
// with a structured header line encoding page, block type, and caption.
type Chunk struct {
	ChunkID        string `json:"chunk_id"`
	DocID          string `json:"doc_id"`
	VersionID      string `json:"version_id"`
	ChunkIndex     int    `json:"chunk_index"`
	Text           string `json:"text"`
	Hash           string `json:"hash"`
	Classification int    `json:"classification"`
}

// ChunkInput is a chunk supplied by the ingestion flow. Embedding may be
// nil, in which case the caller embeds it before the store write.
type ChunkInput struct {
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// ChunkHit is a retrieved chunk with an optional ranking score.
type ChunkHit struct {
	ChunkID   string   `json:"chunk_id"`
	DocID     string   `json:"doc_id"`
	VersionID string   `json:"version_id"`
	Text      string   `json:"text"`
	Score     *float64 `json:"score,omitempty"`
}

// DocSource is citation metadata resolved for a retrieved chunk.
type DocSource struct {
	DocID     string `json:"doc_id"`
	Title     string `json:"title"`
	SourceURI string `json:"source_uri"`
}

// Entity is a graph node deduplicated on (tenant, name, type, classification).
// A deactivated entity is excluded from retrieval but kept as a tombstone.
type Entity struct {
	EntityID        string     `json:"entity_id"`
	Name            string     `json:"name"`
	Type            string     `json:"type"`
	Classification  int        `json:"classification"`
	Aliases         []string   `json:"aliases"`
	Description     string     `json:"description,omitempty"`
	Confidence      string     `json:"confidence"`
	OccurrenceCount int        `json:"occurrence_count"`
	FirstOccurrence *time.Time `json:"first_occurrence,omitempty"`
	LastOccurrence  *time.Time `json:"last_occurrence,omitempty"`
	IsActive        bool       `json:"is_active"`
}

// Edge is a directed relation between two entities. Weight saturates
// at 1.0 as co-occurrence evidence accumulates.
type Edge struct {
	EdgeID           string   `json:"edge_id"`
	SrcEntity        string   `json:"src_entity"`
	DstEntity        string   `json:"dst_entity"`
	EdgeType         string   `json:"edge_type"`
	Weight           float64  `json:"weight"`
	Confidence       string   `json:"confidence"`
	Classification   int      `json:"classification"`
	EvidenceCount    int      `json:"evidence_count"`
	EvidenceChunkIDs []string `json:"evidence_chunk_ids"`
	Notes            string   `json:"notes,omitempty"`
}

// Neighbor is the destination side of an edge joined with its entity row.
type Neighbor struct {
	EdgeID    string  `json:"edge_id"`
	SrcEntity string  `json:"src_entity"`
	DstEntity string  `json:"dst_entity"`
	DstName   string  `json:"dst_name"`
	DstType   string  `json:"dst_type"`
	EdgeType  string  `json:"edge_type"`
	Weight    float64 `json:"weight"`
}

// Mention links an entity to a chunk it was extracted from.
type Mention struct {
	EntityID       string `json:"entity_id"`
	ChunkID        string `json:"chunk_id"`
	MentionCount   int    `json:"mention_count"`
	Confidence     string `json:"confidence"`
	Classification int    `json:"classification"`
	CharOffset     *int   `json:"char_offset,omitempty"`
	ContextSnippet string `json:"context_snippet,omitempty"`
}

// ChunkScore is an aggregated mention score for one chunk.
type ChunkScore struct {
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"score"`
}

// Graph job lifecycle states.
const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
)

// JobTypeDocDeleted is the compensating job enqueued after a document delete.
const JobTypeDocDeleted = "doc_deleted"

// GraphJob is a queued unit of compensating graph maintenance work.
type GraphJob struct {
	JobID        string     `json:"job_id"`
	AppID        string     `json:"app_id"`
	JobType      string     `json:"job_type"`
	Payload      []byte     `json:"payload"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// JobMention is one entity-chunk mention snapshot inside a delete payload.
type JobMention struct {
	EntityID     string `json:"entity_id"`
	ChunkID      string `json:"chunk_id"`
	MentionCount int    `json:"mention_count"`
}

// DocDeletedPayload is the payload of a JobTypeDocDeleted job.
type DocDeletedPayload struct {
	DocID    string       `json:"doc_id"`
	ChunkIDs []string     `json:"chunks"`
	Mentions []JobMention `json:"mentions"`
}
