package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/common"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/graph"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/logger"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/tenant"
)

// JobStore is the slice of the graph store the worker needs.
type JobStore interface {
	FetchPendingJobs(ctx context.Context, tc tenant.Context, limit int) ([]common.GraphJob, error)
	MarkJobDone(ctx context.Context, tc tenant.Context, jobID string, success bool, errMessage string) error
	DecrementEntityOccurrence(ctx context.Context, tc tenant.Context, entityID string, by int) error
	DecrementEdgeEvidence(ctx context.Context, tc tenant.Context, srcEntity, dstEntity, edgeType string, by int) error
	DeactivateEntitiesWithZeroOccurrence(ctx context.Context, tc tenant.Context, entityIDs []string) (int64, error)
}

const defaultBatchSize = 10

// Worker drains the graph maintenance job queue for a set of tenants.
// The queue table is tenant-scoped, so each tenant is polled under its
// own scope.
type Worker struct {
	store     JobStore
	tenants   []tenant.Context
	batchSize int
}

// New creates a worker polling jobs for the given tenant scopes.
func New(store JobStore, tenants []tenant.Context) *Worker {
	return &Worker{
		store:     store,
		tenants:   tenants,
		batchSize: defaultBatchSize,
	}
}

// Run polls for pending jobs until the context is canceled. The sleep
// between rounds is jittered so multiple workers do not poll in
// lock-step.
func (w *Worker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	logger.Info("[Worker] Graph maintenance loop started",
		"tenants", len(w.tenants), "interval", interval.String())

	for {
		for _, tc := range w.tenants {
			if ctx.Err() != nil {
				return
			}
			if _, err := w.ProcessJobsOnce(ctx, tc, w.batchSize); err != nil {
				logger.Error("[Worker] Job round failed", "app", tc.AppID, "err", err)
			}
		}

		if !sleepWithJitter(ctx, interval) {
			logger.Info("[Worker] Graph maintenance loop stopped")
			return
		}
	}
}

// ProcessJobsOnce claims up to limit pending jobs for one tenant and
// processes them. It returns the number of jobs claimed. A failed job
// is marked failed with its error and is not retried.
func (w *Worker) ProcessJobsOnce(ctx context.Context, tc tenant.Context, limit int) (int, error) {
	jobs, err := w.store.FetchPendingJobs(ctx, tc, limit)
	if err != nil {
		return 0, fmt.Errorf("fetch pending jobs: %w", err)
	}

	for _, job := range jobs {
		if err := w.processJob(ctx, tc, job); err != nil {
			logger.Error("[Worker] Job failed", "job", job.JobID, "type", job.JobType, "err", err)
			msg := fmt.Sprintf("%s: %s", job.JobType, err.Error())
			if markErr := w.store.MarkJobDone(ctx, tc, job.JobID, false, msg); markErr != nil {
				logger.Error("[Worker] Failed to mark job failed", "job", job.JobID, "err", markErr)
			}
			continue
		}
		if err := w.store.MarkJobDone(ctx, tc, job.JobID, true, ""); err != nil {
			logger.Error("[Worker] Failed to mark job done", "job", job.JobID, "err", err)
		}
	}
	return len(jobs), nil
}

func (w *Worker) processJob(ctx context.Context, tc tenant.Context, job common.GraphJob) error {
	switch job.JobType {
	case common.JobTypeDocDeleted:
		return w.processDocDeleted(ctx, tc, job)
	default:
		return fmt.Errorf("unknown job type %q", job.JobType)
	}
}

// processDocDeleted compensates the graph for a deleted document: every
// snapshotted mention lowers its entity's occurrence count, every
// co-mentioned entity pair within a chunk loses one unit of edge
// evidence in both directions, and entities that reach zero occurrences
// are tombstoned.
func (w *Worker) processDocDeleted(ctx context.Context, tc tenant.Context, job common.GraphJob) error {
	var payload common.DocDeletedPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	decrements := map[string]int{}
	byChunk := map[string][]string{}
	for _, m := range payload.Mentions {
		count := m.MentionCount
		if count <= 0 {
			count = 1
		}
		decrements[m.EntityID] += count
		byChunk[m.ChunkID] = append(byChunk[m.ChunkID], m.EntityID)
	}

	for _, chunkID := range payload.ChunkIDs {
		entities := uniqueStrings(byChunk[chunkID])
		for i := 0; i < len(entities); i++ {
			for j := i + 1; j < len(entities); j++ {
				if err := w.store.DecrementEdgeEvidence(ctx, tc, entities[i], entities[j], graph.CoOccurrenceEdgeType, 1); err != nil {
					return fmt.Errorf("decrement edge %s->%s: %w", entities[i], entities[j], err)
				}
				if err := w.store.DecrementEdgeEvidence(ctx, tc, entities[j], entities[i], graph.CoOccurrenceEdgeType, 1); err != nil {
					return fmt.Errorf("decrement edge %s->%s: %w", entities[j], entities[i], err)
				}
			}
		}
	}

	entityIDs := make([]string, 0, len(decrements))
	for entityID, by := range decrements {
		if err := w.store.DecrementEntityOccurrence(ctx, tc, entityID, by); err != nil {
			return fmt.Errorf("decrement entity %s: %w", entityID, err)
		}
		entityIDs = append(entityIDs, entityID)
	}

	deactivated, err := w.store.DeactivateEntitiesWithZeroOccurrence(ctx, tc, entityIDs)
	if err != nil {
		return fmt.Errorf("deactivate entities: %w", err)
	}

	logger.Debug("[Worker] Document delete compensated", "job", job.JobID,
		"doc", payload.DocID, "entities", len(entityIDs), "deactivated", deactivated)
	return nil
}

func uniqueStrings(values []string) []string {
	out := make([]string, 0, len(values))
	seen := map[string]bool{}
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// sleepWithJitter waits for the interval plus up to 25% jitter,
// returning false when the context is canceled first.
func sleepWithJitter(ctx context.Context, interval time.Duration) bool {
	jitter := time.Duration(rand.Int63n(int64(interval)/4 + 1))
	timer := time.NewTimer(interval + jitter)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
