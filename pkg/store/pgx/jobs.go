package pgx

import (
	"context"

	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/common"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/store"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/tenant"
)

// EnqueueJob inserts a pending maintenance job and returns its id.
func (s *GraphDBStorage) EnqueueJob(
	ctx context.Context,
	tc tenant.Context,
	jobType string,
	payload []byte,
) (string, error) {
	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	var jobID string
	err = tx.QueryRow(ctx, `
		INSERT INTO graph_job (app_id, job_type, payload)
		VALUES ($1, $2, $3)
		RETURNING job_id::text
	`, tc.AppID, jobType, payload).Scan(&jobID)
	if err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return jobID, nil
}

// FetchPendingJobs claims up to limit pending jobs, oldest first, and
// transitions them to running in the same transaction. FOR UPDATE SKIP
// LOCKED lets concurrent workers claim disjoint jobs without blocking
// each other.
func (s *GraphDBStorage) FetchPendingJobs(
	ctx context.Context,
	tc tenant.Context,
	limit int,
) ([]common.GraphJob, error) {
	if limit <= 0 {
		limit = 10
	}

	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		WITH picked AS (
			SELECT job_id FROM graph_job
			WHERE status = 'pending'
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE graph_job g SET status = 'running', started_at = now()
		FROM picked
		WHERE g.job_id = picked.job_id
		RETURNING g.job_id::text, g.app_id, g.job_type, g.payload, g.status,
		          COALESCE(g.error_message, ''), g.created_at, g.started_at, g.finished_at
	`, limit)
	if err != nil {
		return nil, err
	}

	jobs := []common.GraphJob{}
	for rows.Next() {
		var j common.GraphJob
		if err := rows.Scan(&j.JobID, &j.AppID, &j.JobType, &j.Payload, &j.Status,
			&j.ErrorMessage, &j.CreatedAt, &j.StartedAt, &j.FinishedAt); err != nil {
			rows.Close()
			return nil, err
		}
		jobs = append(jobs, j)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return jobs, nil
}

// MarkJobDone finishes a running job. Failed jobs keep their error
// message and are not retried automatically.
func (s *GraphDBStorage) MarkJobDone(
	ctx context.Context,
	tc tenant.Context,
	jobID string,
	success bool,
	errMessage string,
) error {
	status := common.JobStatusDone
	if !success {
		status = common.JobStatusFailed
	}

	tx, err := beginTenantTx(ctx, s.conn, tc)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE graph_job SET
			status        = $2,
			error_message = $3,
			finished_at   = now()
		WHERE job_id = $1
	`, jobID, status, nullIfEmpty(errMessage))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return tx.Commit(ctx)
}
