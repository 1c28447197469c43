package pgx

import (
	"context"
	"math"
	"os"
	"sync"
	"testing"

	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/store"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/tenant"

	"github.com/jackc/pgx/v5/pgxpool"
	gonanoid "github.com/matoous/go-nanoid/v2"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	pgxv5 "github.com/jackc/pgx/v5"
)

// newIntegrationStore connects to the database named by
// TEST_DATABASE_URL (migrated schema expected) and returns a graph
// store scoped to a fresh tenant, so runs do not see each other's rows.
func newIntegrationStore(t *testing.T) (*GraphDBStorage, tenant.Context) {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgxv5.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	id, err := gonanoid.New()
	if err != nil {
		t.Fatalf("nanoid: %v", err)
	}
	tc, err := tenant.New("it-"+id, 10, "req-it")
	if err != nil {
		t.Fatalf("tenant.New: %v", err)
	}
	return NewGraphDBStorage(pool), tc
}

func TestUpsertEntityMergesOnNaturalKey(t *testing.T) {
	s, tc := newIntegrationStore(t)
	ctx := context.Background()

	first, err := s.UpsertEntity(ctx, tc, store.UpsertEntityParams{
		Name: "ACME Corporation", Type: "org", Confidence: "high",
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if first.OccurrenceCount != 1 {
		t.Fatalf("expected occurrence_count 1, got %d", first.OccurrenceCount)
	}

	second, err := s.UpsertEntity(ctx, tc, store.UpsertEntityParams{
		Name: "ACME Corporation", Type: "org", Confidence: "high",
		Aliases: []string{"ACME"},
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.EntityID != first.EntityID {
		t.Fatalf("expected merge into %s, got new row %s", first.EntityID, second.EntityID)
	}
	if second.OccurrenceCount != 2 {
		t.Fatalf("expected occurrence_count 2, got %d", second.OccurrenceCount)
	}
	if len(second.Aliases) != 1 || second.Aliases[0] != "ACME" {
		t.Fatalf("expected alias ACME, got %v", second.Aliases)
	}
}

func TestFindByNameOrAliasMatchesSubstrings(t *testing.T) {
	s, tc := newIntegrationStore(t)
	ctx := context.Background()

	ent, err := s.UpsertEntity(ctx, tc, store.UpsertEntityParams{
		Name: "ACME Corporation", Type: "org",
		Aliases: []string{"Acme Holdings"},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	for _, q := range []string{"acme", "Corporation", "holdings"} {
		found, err := s.FindByNameOrAlias(ctx, tc, q, 10)
		if err != nil {
			t.Fatalf("find %q: %v", q, err)
		}
		hit := false
		for _, e := range found {
			if e.EntityID == ent.EntityID {
				hit = true
			}
		}
		if !hit {
			t.Fatalf("query %q should match %q", q, ent.Name)
		}
	}

	found, err := s.FindByNameOrAlias(ctx, tc, "globex", 10)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	for _, e := range found {
		if e.EntityID == ent.EntityID {
			t.Fatalf("query %q should not match %q", "globex", ent.Name)
		}
	}
}

func TestUpsertEdgeWeightSaturates(t *testing.T) {
	s, tc := newIntegrationStore(t)
	ctx := context.Background()

	src, err := s.UpsertEntity(ctx, tc, store.UpsertEntityParams{Name: "Alice", Type: "person"})
	if err != nil {
		t.Fatalf("src upsert: %v", err)
	}
	dst, err := s.UpsertEntity(ctx, tc, store.UpsertEntityParams{Name: "Bob", Type: "person"})
	if err != nil {
		t.Fatalf("dst upsert: %v", err)
	}

	params := store.UpsertEdgeParams{
		SrcEntity: src.EntityID, DstEntity: dst.EntityID,
		EdgeType: "co_occurs", Weight: 0.7,
	}

	first, err := s.UpsertEdge(ctx, tc, params)
	if err != nil {
		t.Fatalf("first edge upsert: %v", err)
	}
	if math.Abs(first.Weight-0.7) > 1e-9 {
		t.Fatalf("expected weight 0.7, got %v", first.Weight)
	}

	second, err := s.UpsertEdge(ctx, tc, params)
	if err != nil {
		t.Fatalf("second edge upsert: %v", err)
	}
	if second.EdgeID != first.EdgeID {
		t.Fatalf("expected merge into %s, got new row %s", first.EdgeID, second.EdgeID)
	}
	if second.Weight != 1.0 {
		t.Fatalf("expected weight saturated at 1.0, got %v", second.Weight)
	}
	if second.EvidenceCount != 2 {
		t.Fatalf("expected evidence_count 2, got %d", second.EvidenceCount)
	}
}

func TestFetchPendingJobsClaimsEachJobOnce(t *testing.T) {
	s, tc := newIntegrationStore(t)
	ctx := context.Background()

	enqueued := map[string]bool{}
	for i := 0; i < 4; i++ {
		jobID, err := s.EnqueueJob(ctx, tc, "doc_deleted", []byte(`{}`))
		if err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		enqueued[jobID] = true
	}

	var wg sync.WaitGroup
	claimed := make([][]string, 2)
	errs := make([]error, 2)
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			jobs, err := s.FetchPendingJobs(ctx, tc, 4)
			if err != nil {
				errs[w] = err
				return
			}
			for _, j := range jobs {
				claimed[w] = append(claimed[w], j.JobID)
			}
		}(w)
	}
	wg.Wait()

	for w, err := range errs {
		if err != nil {
			t.Fatalf("worker %d fetch: %v", w, err)
		}
	}

	seen := map[string]int{}
	for _, ids := range claimed {
		for _, id := range ids {
			seen[id]++
		}
	}
	for id := range enqueued {
		if seen[id] != 1 {
			t.Fatalf("job %s claimed %d times, want exactly once", id, seen[id])
		}
	}

	// Claimed jobs are running now, so a later fetch must not redeliver.
	again, err := s.FetchPendingJobs(ctx, tc, 4)
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	for _, j := range again {
		if enqueued[j.JobID] {
			t.Fatalf("job %s redelivered after claim", j.JobID)
		}
	}
}
