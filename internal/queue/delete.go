package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gavinc318-ctrl/Nexora-graprag/internal/storage"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/common"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/leaselock"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/logger"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/store"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/tenant"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

// DeleteMessage is the payload published to the delete queue.
type DeleteMessage struct {
	DocID     string `json:"doc_id"`
	AppID     string `json:"app_id"`
	Clearance int    `json:"clearance"`
	RequestID string `json:"request_id,omitempty"`
}

// ProcessDeleteMessage removes a document and everything hanging off
// it: object store assets, chunk rows (cascading to versions), and a
// queued graph maintenance job that settles entity and edge statistics.
//
// The graph evidence snapshot must be taken before the chunk rows go
// away, because mention rows cascade with their chunks. A lease keyed
// on the document serializes concurrent deletes of the same document
// across worker instances.
func ProcessDeleteMessage(
	ctx context.Context,
	s3Client *awss3.Client,
	chunkStore store.ChunkStorage,
	graphStore store.GraphStorage,
	locks *leaselock.Client,
	msg []byte,
) error {
	data := new(DeleteMessage)
	if err := json.Unmarshal(msg, data); err != nil {
		return fmt.Errorf("decode delete message: %w", err)
	}

	tc, err := tenant.New(data.AppID, data.Clearance, data.RequestID)
	if err != nil {
		return err
	}

	start := time.Now()
	lease, err := locks.Acquire(ctx, leaselock.DocumentKey(tc.AppID, data.DocID), leaselock.Options{
		TTL:         10 * time.Minute,
		RenewEvery:  4 * time.Minute,
		Wait:        true,
		TokenPrefix: fmt.Sprintf("delete/%s/", data.DocID),
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = lease.Release(context.Background())
	}()
	ctx = lease.Context

	chunkIDs, err := chunkStore.ListDocChunkIDs(ctx, tc, data.DocID)
	if err != nil {
		return fmt.Errorf("snapshot chunk ids: %w", err)
	}

	var mentions []common.Mention
	if len(chunkIDs) > 0 {
		mentions, err = graphStore.FetchChunkEntities(ctx, tc, chunkIDs)
		if err != nil {
			return fmt.Errorf("snapshot mentions: %w", err)
		}
	}

	if s3Client != nil {
		if err := storage.DeleteFolder(ctx, s3Client, storage.DocumentPrefix(tc.AppID, data.DocID)); err != nil {
			return err
		}
	}

	deleted, err := chunkStore.DeleteDocument(ctx, tc, data.DocID)
	if errors.Is(err, store.ErrNotFound) {
		logger.Warn("[Queue] Document already gone", "doc_id", data.DocID)
		return nil
	}
	if err != nil {
		return err
	}

	payload := common.DocDeletedPayload{
		DocID:    data.DocID,
		ChunkIDs: chunkIDs,
	}
	for _, m := range mentions {
		payload.Mentions = append(payload.Mentions, common.JobMention{
			EntityID:     m.EntityID,
			ChunkID:      m.ChunkID,
			MentionCount: m.MentionCount,
		})
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	jobID, err := graphStore.EnqueueJob(ctx, tc, common.JobTypeDocDeleted, payloadJSON)
	if err != nil {
		return fmt.Errorf("enqueue graph job: %w", err)
	}

	logger.Info(
		"[Queue] Document deleted",
		"doc_id", data.DocID,
		"chunks", deleted,
		"mentions", len(payload.Mentions),
		"job_id", jobID,
		"duration_sec", time.Since(start).Seconds(),
	)
	return nil
}
