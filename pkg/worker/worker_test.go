package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/common"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/graph"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/tenant"
)

type fakeJobStore struct {
	jobs []common.GraphJob

	entityDecrements map[string]int
	edgeDecrements   []string
	deactivateCalls  [][]string
	marked           map[string]string

	decrementErr error
}

func newFakeJobStore(jobs ...common.GraphJob) *fakeJobStore {
	return &fakeJobStore{
		jobs:             jobs,
		entityDecrements: map[string]int{},
		marked:           map[string]string{},
	}
}

func (f *fakeJobStore) FetchPendingJobs(ctx context.Context, tc tenant.Context, limit int) ([]common.GraphJob, error) {
	jobs := f.jobs
	f.jobs = nil
	return jobs, nil
}

func (f *fakeJobStore) MarkJobDone(ctx context.Context, tc tenant.Context, jobID string, success bool, errMessage string) error {
	if success {
		f.marked[jobID] = "done"
	} else {
		f.marked[jobID] = "failed: " + errMessage
	}
	return nil
}

func (f *fakeJobStore) DecrementEntityOccurrence(ctx context.Context, tc tenant.Context, entityID string, by int) error {
	if f.decrementErr != nil {
		return f.decrementErr
	}
	f.entityDecrements[entityID] += by
	return nil
}

func (f *fakeJobStore) DecrementEdgeEvidence(ctx context.Context, tc tenant.Context, src, dst, edgeType string, by int) error {
	f.edgeDecrements = append(f.edgeDecrements, fmt.Sprintf("%s->%s:%s:%d", src, dst, edgeType, by))
	return nil
}

func (f *fakeJobStore) DeactivateEntitiesWithZeroOccurrence(ctx context.Context, tc tenant.Context, entityIDs []string) (int64, error) {
	sorted := append([]string{}, entityIDs...)
	sort.Strings(sorted)
	f.deactivateCalls = append(f.deactivateCalls, sorted)
	return int64(len(entityIDs)), nil
}

func testTenant(t *testing.T) tenant.Context {
	t.Helper()
	tc, err := tenant.New("acme", 1, "req-1")
	if err != nil {
		t.Fatalf("tenant.New: %v", err)
	}
	return tc
}

func docDeletedJob(t *testing.T, id string, payload common.DocDeletedPayload) common.GraphJob {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return common.GraphJob{JobID: id, JobType: common.JobTypeDocDeleted, Payload: raw, Status: common.JobStatusRunning}
}

func TestProcessJobsOnceDecrementsAndDeactivates(t *testing.T) {
	store := newFakeJobStore(docDeletedJob(t, "j1", common.DocDeletedPayload{
		DocID:    "d1",
		ChunkIDs: []string{"c1", "c2"},
		Mentions: []common.JobMention{
			{EntityID: "e1", ChunkID: "c1", MentionCount: 2},
			{EntityID: "e2", ChunkID: "c1", MentionCount: 1},
			{EntityID: "e1", ChunkID: "c2", MentionCount: 1},
		},
	}))
	w := New(store, nil)

	claimed, err := w.ProcessJobsOnce(context.Background(), testTenant(t), 10)
	if err != nil {
		t.Fatalf("ProcessJobsOnce: %v", err)
	}
	if claimed != 1 {
		t.Fatalf("expected 1 claimed job, got %d", claimed)
	}

	if store.entityDecrements["e1"] != 3 || store.entityDecrements["e2"] != 1 {
		t.Fatalf("unexpected entity decrements: %v", store.entityDecrements)
	}

	// c1 holds the only co-mentioned pair; both directions lose one unit.
	wantEdges := []string{
		"e1->e2:" + graph.CoOccurrenceEdgeType + ":1",
		"e2->e1:" + graph.CoOccurrenceEdgeType + ":1",
	}
	if len(store.edgeDecrements) != len(wantEdges) {
		t.Fatalf("expected %d edge decrements, got %v", len(wantEdges), store.edgeDecrements)
	}
	for i, want := range wantEdges {
		if store.edgeDecrements[i] != want {
			t.Fatalf("edge decrement %d: expected %s, got %s", i, want, store.edgeDecrements[i])
		}
	}

	if len(store.deactivateCalls) != 1 {
		t.Fatalf("expected one deactivation sweep, got %d", len(store.deactivateCalls))
	}
	if got := store.deactivateCalls[0]; len(got) != 2 || got[0] != "e1" || got[1] != "e2" {
		t.Fatalf("unexpected deactivation candidates: %v", got)
	}

	if store.marked["j1"] != "done" {
		t.Fatalf("expected job marked done, got %q", store.marked["j1"])
	}
}

func TestProcessJobsOnceMarksFailedWithTypedMessage(t *testing.T) {
	store := newFakeJobStore(docDeletedJob(t, "j1", common.DocDeletedPayload{
		DocID:    "d1",
		Mentions: []common.JobMention{{EntityID: "e1", ChunkID: "c1", MentionCount: 1}},
	}))
	store.decrementErr = errors.New("pg down")
	w := New(store, nil)

	if _, err := w.ProcessJobsOnce(context.Background(), testTenant(t), 10); err != nil {
		t.Fatalf("job failures must not fail the round: %v", err)
	}

	mark := store.marked["j1"]
	if !strings.HasPrefix(mark, "failed: "+common.JobTypeDocDeleted+": ") {
		t.Fatalf("expected typed failure message, got %q", mark)
	}
	if !strings.Contains(mark, "pg down") {
		t.Fatalf("expected cause in failure message, got %q", mark)
	}
}

func TestProcessJobsOnceUnknownTypeFails(t *testing.T) {
	store := newFakeJobStore(common.GraphJob{JobID: "j1", JobType: "mystery", Payload: []byte(`{}`)})
	w := New(store, nil)

	if _, err := w.ProcessJobsOnce(context.Background(), testTenant(t), 10); err != nil {
		t.Fatalf("ProcessJobsOnce: %v", err)
	}
	if !strings.HasPrefix(store.marked["j1"], "failed: mystery: ") {
		t.Fatalf("expected unknown type to fail the job, got %q", store.marked["j1"])
	}
}

func TestProcessJobsOnceInvalidPayloadFails(t *testing.T) {
	store := newFakeJobStore(common.GraphJob{JobID: "j1", JobType: common.JobTypeDocDeleted, Payload: []byte(`not json`)})
	w := New(store, nil)

	if _, err := w.ProcessJobsOnce(context.Background(), testTenant(t), 10); err != nil {
		t.Fatalf("ProcessJobsOnce: %v", err)
	}
	if !strings.Contains(store.marked["j1"], "decode payload") {
		t.Fatalf("expected decode failure, got %q", store.marked["j1"])
	}
}
