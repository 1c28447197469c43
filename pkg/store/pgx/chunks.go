package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/common"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/logger"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/store"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/tenant"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

const insertChunkSQL = `
INSERT INTO chunks (app_id, doc_id, version_id, chunk_index, text, hash, classification, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

// IngestDocument creates a document, its first version, and all chunks
// in one transaction. It returns the new document id.
func (s *ChunkDBStorage) IngestDocument(
	ctx context.Context,
	tc tenant.Context,
	params store.IngestDocumentParams,
) (string, error) {
	for _, c := range params.Chunks {
		if err := validateEmbedding(c.Embedding); err != nil {
			return "", err
		}
	}

	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	var docID string
	err = tx.QueryRow(ctx, `
		INSERT INTO docs (app_id, title, source_uri, classification)
		VALUES ($1, $2, $3, $4)
		RETURNING doc_id::text
	`, tc.AppID, params.Title, params.SourceURI, params.Classification).Scan(&docID)
	if err != nil {
		return "", fmt.Errorf("insert doc: %w", err)
	}

	var versionID string
	err = tx.QueryRow(ctx, `
		INSERT INTO doc_versions (app_id, doc_id, version_no, content_hash, parser_ver, embed_model)
		VALUES ($1, $2, 1, $3, $4, $5)
		RETURNING version_id::text
	`, tc.AppID, docID, params.ContentHash, params.ParserVer, params.EmbedModel).Scan(&versionID)
	if err != nil {
		return "", fmt.Errorf("insert version: %w", err)
	}

	for _, c := range params.Chunks {
		_, err = tx.Exec(ctx, insertChunkSQL,
			tc.AppID, docID, versionID, c.ChunkIndex, c.Text, textHash(c.Text),
			params.Classification, vectorOrNil(c.Embedding))
		if err != nil {
			return "", fmt.Errorf("insert chunk %d: %w", c.ChunkIndex, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}

	logger.Debug("[Store][IngestDocument] Document ingested",
		"doc", docID, "version", versionID, "chunks", len(params.Chunks))
	return docID, nil
}

// AddVersion appends a new version with its chunks to an existing
// document. A VersionNo of zero picks the next free number.
func (s *ChunkDBStorage) AddVersion(
	ctx context.Context,
	tc tenant.Context,
	params store.AddVersionParams,
) (string, error) {
	for _, c := range params.Chunks {
		if err := validateEmbedding(c.Embedding); err != nil {
			return "", err
		}
	}

	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	var classification int
	err = tx.QueryRow(ctx, `SELECT classification FROM docs WHERE doc_id = $1`, params.DocID).
		Scan(&classification)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", err
	}

	versionNo := params.VersionNo
	if versionNo <= 0 {
		err = tx.QueryRow(ctx, `
			SELECT COALESCE(MAX(version_no), 0) + 1 FROM doc_versions WHERE doc_id = $1
		`, params.DocID).Scan(&versionNo)
		if err != nil {
			return "", err
		}
	}

	var versionID string
	err = tx.QueryRow(ctx, `
		INSERT INTO doc_versions (app_id, doc_id, version_no, content_hash, parser_ver, embed_model)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING version_id::text
	`, tc.AppID, params.DocID, versionNo, params.ContentHash, params.ParserVer, params.EmbedModel).
		Scan(&versionID)
	if err != nil {
		return "", fmt.Errorf("insert version: %w", err)
	}

	for _, c := range params.Chunks {
		_, err = tx.Exec(ctx, insertChunkSQL,
			tc.AppID, params.DocID, versionID, c.ChunkIndex, c.Text, textHash(c.Text),
			classification, vectorOrNil(c.Embedding))
		if err != nil {
			return "", fmt.Errorf("insert chunk %d: %w", c.ChunkIndex, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return versionID, nil
}

// SearchChunks returns the topK nearest chunks by embedding distance and
// writes an audit row in the same transaction, so a served result always
// has a matching audit entry.
func (s *ChunkDBStorage) SearchChunks(
	ctx context.Context,
	tc tenant.Context,
	queryText string,
	queryEmbedding []float32,
	topK int,
) ([]common.ChunkHit, error) {
	if queryEmbedding == nil {
		return nil, fmt.Errorf("%w: got 0", store.ErrDimensionMismatch)
	}
	if err := validateEmbedding(queryEmbedding); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 5
	}

	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT chunk_id::text, doc_id::text, version_id::text, text,
		       embedding <-> $1 AS distance
		FROM chunks
		WHERE embedding IS NOT NULL
		ORDER BY embedding <-> $1
		LIMIT $2
	`, pgvector.NewVector(queryEmbedding), topK)
	if err != nil {
		return nil, err
	}

	hits := make([]common.ChunkHit, 0, topK)
	for rows.Next() {
		var hit common.ChunkHit
		var distance float64
		if err := rows.Scan(&hit.ChunkID, &hit.DocID, &hit.VersionID, &hit.Text, &distance); err != nil {
			rows.Close()
			return nil, err
		}
		hit.Score = &distance
		hits = append(hits, hit)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.auditSearch(ctx, tx, tc, queryText, topK, hits); err != nil {
		return nil, fmt.Errorf("audit search: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return hits, nil
}

func (s *ChunkDBStorage) auditSearch(
	ctx context.Context,
	tx pgxv5.Tx,
	tc tenant.Context,
	queryText string,
	topK int,
	hits []common.ChunkHit,
) error {
	chunkIDs := make([]string, 0, len(hits))
	docIDs := make([]string, 0, len(hits))
	var scoreMin, scoreMax *float64
	for _, h := range hits {
		chunkIDs = append(chunkIDs, h.ChunkID)
		docIDs = append(docIDs, h.DocID)
		if h.Score == nil {
			continue
		}
		if scoreMin == nil || *h.Score < *scoreMin {
			v := *h.Score
			scoreMin = &v
		}
		if scoreMax == nil || *h.Score > *scoreMax {
			v := *h.Score
			scoreMax = &v
		}
	}

	chunkJSON, err := json.Marshal(chunkIDs)
	if err != nil {
		return err
	}
	docJSON, err := json.Marshal(docIDs)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO audit_search (app_id, request_id, query_text, top_k, hit_chunk_ids, hit_doc_ids, score_min, score_max)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, tc.AppID, tc.RequestID, queryText, topK, chunkJSON, docJSON, scoreMin, scoreMax)
	return err
}

// UpdateChunkText replaces a chunk's text, hash, and embedding.
func (s *ChunkDBStorage) UpdateChunkText(
	ctx context.Context,
	tc tenant.Context,
	chunkID string,
	newText string,
	newEmbedding []float32,
) error {
	if err := validateEmbedding(newEmbedding); err != nil {
		return err
	}

	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE chunks SET text = $2, hash = $3, embedding = COALESCE($4, embedding)
		WHERE chunk_id = $1
	`, chunkID, newText, textHash(newText), vectorOrNil(newEmbedding))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return tx.Commit(ctx)
}

// FindDocsByDirHint lists documents whose source URI starts with the
// hint or whose title contains it.
func (s *ChunkDBStorage) FindDocsByDirHint(
	ctx context.Context,
	tc tenant.Context,
	hint string,
	limit int,
) ([]common.Document, error) {
	if limit <= 0 {
		limit = 50
	}

	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT doc_id::text, app_id, title, source_uri, classification, created_at
		FROM docs
		WHERE $1 = '' OR source_uri LIKE $1 || '%' OR title ILIKE '%' || $1 || '%'
		ORDER BY created_at DESC
		LIMIT $2
	`, hint, limit)
	if err != nil {
		return nil, err
	}

	docs := make([]common.Document, 0, limit)
	for rows.Next() {
		var d common.Document
		if err := rows.Scan(&d.DocID, &d.AppID, &d.Title, &d.SourceURI, &d.Classification, &d.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		docs = append(docs, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return docs, nil
}

// DeleteDocument removes a document; versions and chunks cascade. It
// returns the number of chunks that were deleted with it.
func (s *ChunkDBStorage) DeleteDocument(
	ctx context.Context,
	tc tenant.Context,
	docID string,
) (int64, error) {
	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var chunkCount int64
	err = tx.QueryRow(ctx, `SELECT count(*) FROM chunks WHERE doc_id = $1`, docID).Scan(&chunkCount)
	if err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `DELETE FROM docs WHERE doc_id = $1`, docID)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		return 0, store.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	logger.Debug("[Store][DeleteDocument] Document deleted", "doc", docID, "chunks", chunkCount)
	return chunkCount, nil
}

// ListChunks returns all chunks of one version in chunk order.
func (s *ChunkDBStorage) ListChunks(
	ctx context.Context,
	tc tenant.Context,
	versionID string,
) ([]common.Chunk, error) {
	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT chunk_id::text, doc_id::text, version_id::text, chunk_index, text, hash, classification
		FROM chunks
		WHERE version_id = $1
		ORDER BY chunk_index
	`, versionID)
	if err != nil {
		return nil, err
	}

	chunks := []common.Chunk{}
	for rows.Next() {
		var c common.Chunk
		if err := rows.Scan(&c.ChunkID, &c.DocID, &c.VersionID, &c.ChunkIndex, &c.Text, &c.Hash, &c.Classification); err != nil {
			rows.Close()
			return nil, err
		}
		chunks = append(chunks, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return chunks, nil
}

// ListDocChunkIDs returns the ids of every chunk of a document across
// all of its versions. Used to snapshot graph evidence before a delete.
func (s *ChunkDBStorage) ListDocChunkIDs(
	ctx context.Context,
	tc tenant.Context,
	docID string,
) ([]string, error) {
	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT chunk_id::text
		FROM chunks
		WHERE doc_id = $1
		ORDER BY version_id, chunk_index
	`, docID)
	if err != nil {
		return nil, err
	}

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

// GetChunksByIDs fetches chunks by id. Ids outside the tenant's scope
// are silently absent from the result; callers decide how to order.
func (s *ChunkDBStorage) GetChunksByIDs(
	ctx context.Context,
	tc tenant.Context,
	chunkIDs []string,
) ([]common.ChunkHit, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}

	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT chunk_id::text, doc_id::text, version_id::text, text
		FROM chunks
		WHERE chunk_id = ANY($1::uuid[])
	`, chunkIDs)
	if err != nil {
		return nil, err
	}

	hits := make([]common.ChunkHit, 0, len(chunkIDs))
	for rows.Next() {
		var hit common.ChunkHit
		if err := rows.Scan(&hit.ChunkID, &hit.DocID, &hit.VersionID, &hit.Text); err != nil {
			rows.Close()
			return nil, err
		}
		hits = append(hits, hit)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return hits, nil
}

// GetLatestVersion returns the most recent version of a document.
func (s *ChunkDBStorage) GetLatestVersion(
	ctx context.Context,
	tc tenant.Context,
	docID string,
) (common.DocumentVersion, error) {
	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return common.DocumentVersion{}, err
	}
	defer tx.Rollback(ctx)

	var v common.DocumentVersion
	err = tx.QueryRow(ctx, `
		SELECT version_id::text, doc_id::text, version_no, content_hash, parser_ver, embed_model, created_at
		FROM doc_versions
		WHERE doc_id = $1
		ORDER BY created_at DESC, version_no DESC
		LIMIT 1
	`, docID).Scan(&v.VersionID, &v.DocID, &v.VersionNo, &v.ContentHash, &v.ParserVer, &v.EmbedModel, &v.CreatedAt)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return common.DocumentVersion{}, store.ErrNotFound
	}
	if err != nil {
		return common.DocumentVersion{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return common.DocumentVersion{}, err
	}
	return v, nil
}

// FetchDocMeta returns a single document's metadata.
func (s *ChunkDBStorage) FetchDocMeta(
	ctx context.Context,
	tc tenant.Context,
	docID string,
) (common.Document, error) {
	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return common.Document{}, err
	}
	defer tx.Rollback(ctx)

	var d common.Document
	err = tx.QueryRow(ctx, `
		SELECT doc_id::text, app_id, title, source_uri, classification, created_at
		FROM docs
		WHERE doc_id = $1
	`, docID).Scan(&d.DocID, &d.AppID, &d.Title, &d.SourceURI, &d.Classification, &d.CreatedAt)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return common.Document{}, store.ErrNotFound
	}
	if err != nil {
		return common.Document{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return common.Document{}, err
	}
	return d, nil
}

// FetchDocSources resolves citation metadata for the given documents.
func (s *ChunkDBStorage) FetchDocSources(
	ctx context.Context,
	tc tenant.Context,
	docIDs []string,
) (map[string]common.DocSource, error) {
	sources := map[string]common.DocSource{}
	if len(docIDs) == 0 {
		return sources, nil
	}

	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT doc_id::text, title, source_uri
		FROM docs
		WHERE doc_id = ANY($1::uuid[])
	`, docIDs)
	if err != nil {
		return nil, err
	}

	for rows.Next() {
		var src common.DocSource
		if err := rows.Scan(&src.DocID, &src.Title, &src.SourceURI); err != nil {
			rows.Close()
			return nil, err
		}
		sources[src.DocID] = src
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return sources, nil
}

// ClearTenantDocs deletes every document of the calling tenant and
// returns the number of documents removed. Row level security scopes
// the delete; no explicit app filter is needed.
func (s *ChunkDBStorage) ClearTenantDocs(
	ctx context.Context,
	tc tenant.Context,
) (int64, error) {
	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM docs`)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	logger.Warn("[Store][ClearTenantDocs] Tenant documents cleared", "app", tc.AppID, "docs", tag.RowsAffected())
	return tag.RowsAffected(), nil
}
