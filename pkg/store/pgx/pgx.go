package pgx

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/gavinc318-ctrl/Nexora-graprag/internal/util"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/store"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/tenant"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// ChunkDBStorage implements store.ChunkStorage on PostgreSQL with
// pgvector for nearest-neighbor search.
type ChunkDBStorage struct {
	conn pgxIConn
}

// GraphDBStorage implements store.GraphStorage on PostgreSQL. Entities
// and edges are merged on natural-key conflicts rather than duplicated.
type GraphDBStorage struct {
	conn pgxIConn
}

var (
	_ store.ChunkStorage = (*ChunkDBStorage)(nil)
	_ store.GraphStorage = (*GraphDBStorage)(nil)
)

// NewChunkDBStorage creates a chunk store on an existing connection pool.
func NewChunkDBStorage(conn pgxIConn) *ChunkDBStorage {
	return &ChunkDBStorage{conn: conn}
}

// NewGraphDBStorage creates a graph store on an existing connection pool.
func NewGraphDBStorage(conn pgxIConn) *GraphDBStorage {
	return &GraphDBStorage{conn: conn}
}

const setTenantSQL = `
SELECT set_config('app.current_app', $1, true),
       set_config('app.clearance', $2, true),
       set_config('app.request_id', $3, true)
`

// beginTenantTx opens a transaction and applies the tenant's row level
// security settings. The settings are transaction-scoped so pooled
// connections never leak one tenant's scope into another's queries.
func beginTenantTx(ctx context.Context, conn pgxIConn, tc tenant.Context) (pgxv5.Tx, error) {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, setTenantSQL, tc.AppID, fmt.Sprintf("%d", tc.Clearance), tc.RequestID); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("apply tenant settings: %w", err)
	}
	return tx, nil
}

// embeddingDim returns the configured vector dimension. It must match
// the dimension of the vector columns created by the migrations.
func embeddingDim() int {
	return int(util.GetEnvNumeric("AI_EMBED_DIM", 1536))
}

// validateEmbedding rejects wrong-size vectors before any I/O happens.
// A nil embedding is allowed and stored as NULL.
func validateEmbedding(embedding []float32) error {
	if embedding == nil {
		return nil
	}
	if dim := embeddingDim(); len(embedding) != dim {
		return fmt.Errorf("%w: got %d want %d", store.ErrDimensionMismatch, len(embedding), dim)
	}
	return nil
}

// vectorOrNil converts an embedding to a pgvector parameter, mapping
// nil to SQL NULL.
func vectorOrNil(embedding []float32) any {
	if embedding == nil {
		return nil
	}
	return pgvector.NewVector(embedding)
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func textHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
