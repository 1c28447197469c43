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

const entityColumns = `
entity_id::text, name, type, classification, aliases, description,
confidence, occurrence_count, first_occurrence, last_occurrence, is_active
`

func scanEntity(row pgxv5.Row) (common.Entity, error) {
	var e common.Entity
	var description *string
	err := row.Scan(
		&e.EntityID, &e.Name, &e.Type, &e.Classification, &e.Aliases, &description,
		&e.Confidence, &e.OccurrenceCount, &e.FirstOccurrence, &e.LastOccurrence, &e.IsActive,
	)
	if err != nil {
		return common.Entity{}, err
	}
	if description != nil {
		e.Description = *description
	}
	return e, nil
}

const edgeColumns = `
edge_id::text, src_entity::text, dst_entity::text, edge_type, weight::float8,
confidence, classification, evidence_count, evidence_chunk_ids, notes
`

func scanEdge(row pgxv5.Row) (common.Edge, error) {
	var e common.Edge
	var notes *string
	err := row.Scan(
		&e.EdgeID, &e.SrcEntity, &e.DstEntity, &e.EdgeType, &e.Weight,
		&e.Confidence, &e.Classification, &e.EvidenceCount, &e.EvidenceChunkIDs, &notes,
	)
	if err != nil {
		return common.Edge{}, err
	}
	if notes != nil {
		e.Notes = *notes
	}
	return e, nil
}

// UpsertEntity inserts an entity or merges it into the existing row
// with the same (name, type, classification). Merging bumps the
// occurrence count, refreshes last_occurrence, and reactivates
// tombstoned entities.
func (s *GraphDBStorage) UpsertEntity(
	ctx context.Context,
	tc tenant.Context,
	params store.UpsertEntityParams,
) (common.Entity, error) {
	if err := validateEmbedding(params.Embedding); err != nil {
		return common.Entity{}, err
	}

	aliases := params.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	aliasJSON, err := json.Marshal(aliases)
	if err != nil {
		return common.Entity{}, err
	}

	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return common.Entity{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO entity (app_id, name, type, classification, aliases, description, confidence, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (app_id, name, type, classification) DO UPDATE SET
			aliases          = EXCLUDED.aliases,
			description      = COALESCE(EXCLUDED.description, entity.description),
			confidence       = EXCLUDED.confidence,
			embedding        = COALESCE(EXCLUDED.embedding, entity.embedding),
			occurrence_count = entity.occurrence_count + 1,
			last_occurrence  = now(),
			is_active        = true
		RETURNING `+entityColumns,
		tc.AppID, params.Name, params.Type, params.Classification, aliasJSON,
		nullIfEmpty(params.Description), common.NormalizeConfidence(params.Confidence),
		vectorOrNil(params.Embedding))

	entity, err := scanEntity(row)
	if err != nil {
		return common.Entity{}, fmt.Errorf("upsert entity: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return common.Entity{}, err
	}
	return entity, nil
}

// UpsertEdge inserts a directed edge or folds a new observation into the
// existing one: weight accumulates and saturates at 1.0, the evidence
// count increments, and evidence chunk ids are unioned without duplicates.
func (s *GraphDBStorage) UpsertEdge(
	ctx context.Context,
	tc tenant.Context,
	params store.UpsertEdgeParams,
) (common.Edge, error) {
	weight := params.Weight
	if weight <= 0 {
		weight = 0.5
	}
	if weight > 1 {
		weight = 1
	}

	evidence := params.EvidenceChunkIDs
	if evidence == nil {
		evidence = []string{}
	}
	evidenceJSON, err := json.Marshal(evidence)
	if err != nil {
		return common.Edge{}, err
	}

	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return common.Edge{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO entity_edge (app_id, src_entity, dst_entity, edge_type, weight, confidence, classification, evidence_chunk_ids, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (app_id, src_entity, dst_entity, edge_type) DO UPDATE SET
			weight             = LEAST(entity_edge.weight + EXCLUDED.weight, 1.000),
			confidence         = EXCLUDED.confidence,
			evidence_count     = entity_edge.evidence_count + 1,
			evidence_chunk_ids = (
				SELECT COALESCE(jsonb_agg(DISTINCT elem), '[]'::jsonb)
				FROM jsonb_array_elements_text(entity_edge.evidence_chunk_ids || EXCLUDED.evidence_chunk_ids) AS elem
			),
			notes      = COALESCE(EXCLUDED.notes, entity_edge.notes),
			updated_at = now()
		RETURNING `+edgeColumns,
		tc.AppID, params.SrcEntity, params.DstEntity, params.EdgeType, weight,
		common.NormalizeConfidence(params.Confidence), params.Classification,
		evidenceJSON, nullIfEmpty(params.Notes))

	edge, err := scanEdge(row)
	if err != nil {
		return common.Edge{}, fmt.Errorf("upsert edge: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return common.Edge{}, err
	}
	return edge, nil
}

// UpsertMention links an entity to a chunk. Repeated observations sum
// mention counts; confidence and classification take the latest value.
func (s *GraphDBStorage) UpsertMention(
	ctx context.Context,
	tc tenant.Context,
	mention common.Mention,
) error {
	count := mention.MentionCount
	if count <= 0 {
		count = 1
	}

	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO entity_chunk (app_id, entity_id, chunk_id, mention_count, confidence, classification, char_offset, context_snippet)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (app_id, entity_id, chunk_id) DO UPDATE SET
			mention_count   = entity_chunk.mention_count + EXCLUDED.mention_count,
			confidence      = EXCLUDED.confidence,
			classification  = EXCLUDED.classification,
			char_offset     = COALESCE(EXCLUDED.char_offset, entity_chunk.char_offset),
			context_snippet = COALESCE(EXCLUDED.context_snippet, entity_chunk.context_snippet)
	`, tc.AppID, mention.EntityID, mention.ChunkID, count,
		common.NormalizeConfidence(mention.Confidence), mention.Classification,
		mention.CharOffset, nullIfEmpty(mention.ContextSnippet))
	if err != nil {
		return fmt.Errorf("upsert mention: %w", err)
	}
	return tx.Commit(ctx)
}

// FindByNameOrAlias matches active entities whose name or aliases
// contain the query as a case-insensitive substring, so "ACME" still
// finds "ACME Corporation".
func (s *GraphDBStorage) FindByNameOrAlias(
	ctx context.Context,
	tc tenant.Context,
	query string,
	limit int,
) ([]common.Entity, error) {
	if limit <= 0 {
		limit = 10
	}

	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	likeQuery := "%" + query + "%"
	rows, err := tx.Query(ctx, `
		SELECT `+entityColumns+`
		FROM entity
		WHERE is_active
		  AND (name ILIKE $1 OR aliases::text ILIKE $1)
		ORDER BY occurrence_count DESC, name
		LIMIT $2
	`, likeQuery, limit)
	if err != nil {
		return nil, err
	}

	entities, err := collectEntities(rows)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return entities, nil
}

// FindByEmbedding returns active entities nearest to the query vector by
// cosine similarity, optionally filtered by a minimum similarity.
func (s *GraphDBStorage) FindByEmbedding(
	ctx context.Context,
	tc tenant.Context,
	queryEmbedding []float32,
	limit int,
	minSimilarity *float64,
) ([]store.EntitySimilarity, error) {
	if queryEmbedding == nil {
		return nil, fmt.Errorf("%w: got 0", store.ErrDimensionMismatch)
	}
	if err := validateEmbedding(queryEmbedding); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT `+entityColumns+`, 1 - (embedding <=> $1) AS similarity
		FROM entity
		WHERE is_active AND embedding IS NOT NULL
		  AND ($3::float8 IS NULL OR 1 - (embedding <=> $1) >= $3)
		ORDER BY embedding <=> $1
		LIMIT $2
	`, pgvector.NewVector(queryEmbedding), limit, minSimilarity)
	if err != nil {
		return nil, err
	}

	matches := make([]store.EntitySimilarity, 0, limit)
	for rows.Next() {
		var m store.EntitySimilarity
		var description *string
		err := rows.Scan(
			&m.EntityID, &m.Name, &m.Type, &m.Classification, &m.Aliases, &description,
			&m.Confidence, &m.OccurrenceCount, &m.FirstOccurrence, &m.LastOccurrence, &m.IsActive,
			&m.Similarity,
		)
		if err != nil {
			rows.Close()
			return nil, err
		}
		if description != nil {
			m.Description = *description
		}
		matches = append(matches, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return matches, nil
}

// GetNeighborEntities expands one hop from the given entities along
// outgoing edges, strongest edges first. Co-occurrence edges are stored
// in both directions, so outgoing edges cover the full neighborhood.
func (s *GraphDBStorage) GetNeighborEntities(
	ctx context.Context,
	tc tenant.Context,
	entityIDs []string,
	edgeType string,
	limit int,
) ([]common.Neighbor, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT ee.edge_id::text, ee.src_entity::text, ee.dst_entity::text,
		       e.name, e.type, ee.edge_type, ee.weight::float8
		FROM entity_edge ee
		JOIN entity e ON e.entity_id = ee.dst_entity
		WHERE ee.src_entity = ANY($1::uuid[])
		  AND e.is_active
		  AND ($2 = '' OR ee.edge_type = $2)
		  AND NOT (ee.dst_entity = ANY($1::uuid[]))
		ORDER BY ee.weight DESC, ee.edge_id
		LIMIT $3
	`, entityIDs, edgeType, limit)
	if err != nil {
		return nil, err
	}

	neighbors := make([]common.Neighbor, 0, limit)
	for rows.Next() {
		var n common.Neighbor
		if err := rows.Scan(&n.EdgeID, &n.SrcEntity, &n.DstEntity, &n.DstName, &n.DstType, &n.EdgeType, &n.Weight); err != nil {
			rows.Close()
			return nil, err
		}
		neighbors = append(neighbors, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return neighbors, nil
}

// ListChunkIDsByEntities aggregates mention counts per chunk for the
// given entities, strongest chunks first.
func (s *GraphDBStorage) ListChunkIDsByEntities(
	ctx context.Context,
	tc tenant.Context,
	entityIDs []string,
	limit int,
) ([]common.ChunkScore, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT chunk_id::text, SUM(mention_count)::float8 AS score
		FROM entity_chunk
		WHERE entity_id = ANY($1::uuid[])
		GROUP BY chunk_id
		ORDER BY score DESC, chunk_id
		LIMIT $2
	`, entityIDs, limit)
	if err != nil {
		return nil, err
	}

	scores := make([]common.ChunkScore, 0, limit)
	for rows.Next() {
		var cs common.ChunkScore
		if err := rows.Scan(&cs.ChunkID, &cs.Score); err != nil {
			rows.Close()
			return nil, err
		}
		scores = append(scores, cs)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return scores, nil
}

// UpdateEntity applies a partial update; nil fields keep their value.
func (s *GraphDBStorage) UpdateEntity(
	ctx context.Context,
	tc tenant.Context,
	params store.UpdateEntityParams,
) error {
	var aliasJSON []byte
	if params.Aliases != nil {
		var err error
		aliasJSON, err = json.Marshal(params.Aliases)
		if err != nil {
			return err
		}
	}

	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE entity SET
			description = COALESCE($2, description),
			confidence  = COALESCE($3, confidence),
			is_active   = COALESCE($4, is_active),
			aliases     = COALESCE($5, aliases)
		WHERE entity_id = $1
	`, params.EntityID, params.Description, params.Confidence, params.IsActive, aliasJSON)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return tx.Commit(ctx)
}

// DeactivateEntity tombstones an entity. The row stays so historic
// evidence keeps resolving, but retrieval skips it.
func (s *GraphDBStorage) DeactivateEntity(
	ctx context.Context,
	tc tenant.Context,
	entityID string,
) error {
	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE entity SET is_active = false, confidence = 'low'
		WHERE entity_id = $1
	`, entityID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return tx.Commit(ctx)
}

// SearchEntities is the administrative listing with optional name,
// type, and active filters.
func (s *GraphDBStorage) SearchEntities(
	ctx context.Context,
	tc tenant.Context,
	params store.SearchEntitiesParams,
) ([]common.Entity, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}

	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT `+entityColumns+`
		FROM entity
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR type = $2)
		  AND (NOT $3::bool OR is_active)
		ORDER BY occurrence_count DESC, name
		LIMIT $4
	`, params.Query, params.Type, params.ActiveOnly, limit)
	if err != nil {
		return nil, err
	}

	entities, err := collectEntities(rows)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return entities, nil
}

// ListIsolatedEntities returns active entities with no edges in either
// direction, candidates for curation or cleanup.
func (s *GraphDBStorage) ListIsolatedEntities(
	ctx context.Context,
	tc tenant.Context,
	limit int,
) ([]common.Entity, error) {
	if limit <= 0 {
		limit = 50
	}

	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT `+entityColumns+`
		FROM entity e
		WHERE e.is_active
		  AND NOT EXISTS (
		      SELECT 1 FROM entity_edge ee
		      WHERE ee.src_entity = e.entity_id OR ee.dst_entity = e.entity_id)
		ORDER BY e.occurrence_count DESC, e.name
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}

	entities, err := collectEntities(rows)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return entities, nil
}

// ListEdgesByEntity returns all edges touching an entity.
func (s *GraphDBStorage) ListEdgesByEntity(
	ctx context.Context,
	tc tenant.Context,
	entityID string,
) ([]common.Edge, error) {
	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT `+edgeColumns+`
		FROM entity_edge
		WHERE src_entity = $1 OR dst_entity = $1
		ORDER BY weight DESC, edge_id
	`, entityID)
	if err != nil {
		return nil, err
	}

	edges := []common.Edge{}
	for rows.Next() {
		edge, err := scanEdge(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		edges = append(edges, edge)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return edges, nil
}

// UpdateEdge adjusts an edge's weight and notes; nil fields keep their
// value. Weights are clamped to [0, 1].
func (s *GraphDBStorage) UpdateEdge(
	ctx context.Context,
	tc tenant.Context,
	edgeID string,
	weight *float64,
	notes *string,
) error {
	if weight != nil {
		w := *weight
		if w < 0 {
			w = 0
		}
		if w > 1 {
			w = 1
		}
		weight = &w
	}

	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE entity_edge SET
			weight     = COALESCE($2, weight),
			notes      = COALESCE($3, notes),
			updated_at = now()
		WHERE edge_id = $1
	`, edgeID, weight, notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return tx.Commit(ctx)
}

// DeleteEdge removes an edge permanently.
func (s *GraphDBStorage) DeleteEdge(
	ctx context.Context,
	tc tenant.Context,
	edgeID string,
) error {
	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM entity_edge WHERE edge_id = $1`, edgeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return tx.Commit(ctx)
}

// FetchChunkEntities lists which entities are mentioned in the given
// chunks, used to snapshot mentions before a document delete.
func (s *GraphDBStorage) FetchChunkEntities(
	ctx context.Context,
	tc tenant.Context,
	chunkIDs []string,
) ([]common.Mention, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}

	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT entity_id::text, chunk_id::text, mention_count, confidence, classification, char_offset, context_snippet
		FROM entity_chunk
		WHERE chunk_id = ANY($1::uuid[])
		ORDER BY entity_id, chunk_id
	`, chunkIDs)
	if err != nil {
		return nil, err
	}

	mentions := []common.Mention{}
	for rows.Next() {
		var m common.Mention
		var snippet *string
		if err := rows.Scan(&m.EntityID, &m.ChunkID, &m.MentionCount, &m.Confidence, &m.Classification, &m.CharOffset, &snippet); err != nil {
			rows.Close()
			return nil, err
		}
		if snippet != nil {
			m.ContextSnippet = *snippet
		}
		mentions = append(mentions, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return mentions, nil
}

// GetEntitySummary returns the cached summary for an entity.
func (s *GraphDBStorage) GetEntitySummary(
	ctx context.Context,
	tc tenant.Context,
	entityID string,
) (string, error) {
	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	var summary string
	err = tx.QueryRow(ctx, `SELECT summary FROM entity_summary WHERE entity_id = $1`, entityID).
		Scan(&summary)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return summary, nil
}

// UpsertEntitySummary stores or replaces the cached summary for an entity.
func (s *GraphDBStorage) UpsertEntitySummary(
	ctx context.Context,
	tc tenant.Context,
	entityID string,
	summary string,
) error {
	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO entity_summary (entity_id, app_id, summary)
		VALUES ($1, $2, $3)
		ON CONFLICT (entity_id) DO UPDATE SET
			summary    = EXCLUDED.summary,
			updated_at = now()
	`, entityID, tc.AppID, summary)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// DecrementEntityOccurrence lowers an entity's occurrence count,
// flooring at zero.
func (s *GraphDBStorage) DecrementEntityOccurrence(
	ctx context.Context,
	tc tenant.Context,
	entityID string,
	by int,
) error {
	if by <= 0 {
		return nil
	}

	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE entity SET occurrence_count = GREATEST(occurrence_count - $2, 0)
		WHERE entity_id = $1
	`, entityID, by)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// DecrementEdgeEvidence lowers one edge's evidence count, flooring at
// zero. The edge row is kept even at zero evidence.
func (s *GraphDBStorage) DecrementEdgeEvidence(
	ctx context.Context,
	tc tenant.Context,
	srcEntity, dstEntity, edgeType string,
	by int,
) error {
	if by <= 0 {
		return nil
	}

	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE entity_edge SET
			evidence_count = GREATEST(evidence_count - $4, 0),
			updated_at     = now()
		WHERE src_entity = $1 AND dst_entity = $2 AND edge_type = $3
	`, srcEntity, dstEntity, edgeType, by)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// DeactivateEntitiesWithZeroOccurrence tombstones the given entities if
// their occurrence count has dropped to zero, and returns how many were
// deactivated.
func (s *GraphDBStorage) DeactivateEntitiesWithZeroOccurrence(
	ctx context.Context,
	tc tenant.Context,
	entityIDs []string,
) (int64, error) {
	if len(entityIDs) == 0 {
		return 0, nil
	}

	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE entity SET is_active = false, confidence = 'low'
		WHERE entity_id = ANY($1::uuid[]) AND occurrence_count <= 0 AND is_active
	`, entityIDs)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	if tag.RowsAffected() > 0 {
		logger.Debug("[Store][DeactivateEntities] Entities tombstoned", "count", tag.RowsAffected())
	}
	return tag.RowsAffected(), nil
}

func collectEntities(rows pgxv5.Rows) ([]common.Entity, error) {
	entities := []common.Entity{}
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		entities = append(entities, entity)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entities, nil
}
