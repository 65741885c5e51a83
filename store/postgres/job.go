package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/drainq"
	"github.com/xraph/drainq/id"
	"github.com/xraph/drainq/job"
)

const jobColumns = `
	id, tenant_id, topic, intent, payload, external_id, order_id, event_time,
	status, attempts, next_run_at, started_at, finished_at, error, worker_id,
	created_at, updated_at`

// InsertJob persists a new job in queued state and assigns its ID.
func (s *Store) InsertJob(ctx context.Context, j *job.Job) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO drainq_jobs (
			tenant_id, topic, intent, payload, external_id, order_id,
			event_time, status, attempts, next_run_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 'queued', $8, $9)
		RETURNING id, created_at, updated_at`,
		j.TenantID, j.Topic, j.Intent, string(j.Payload),
		nullString(j.ExternalID), nullString(j.OrderID),
		j.EventTime, j.Attempts, j.NextRunAt,
	).Scan(&j.ID, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return drainq.ErrDuplicateJob
		}
		return fmt.Errorf("drainq/postgres: insert job: %w", err)
	}
	j.Status = job.StatusQueued
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID int64) (*job.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM drainq_jobs WHERE id = $1`, jobID)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, drainq.ErrJobNotFound
		}
		return nil, fmt.Errorf("drainq/postgres: get job: %w", err)
	}
	return j, nil
}

// ExistsByExternalID reports whether any job carries the key.
func (s *Store) ExistsByExternalID(ctx context.Context, tenantID, topic, externalID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM drainq_jobs
			WHERE tenant_id = $1 AND topic = $2 AND external_id = $3
		)`,
		tenantID, topic, externalID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("drainq/postgres: exists by external id: %w", err)
	}
	return exists, nil
}

// ExistsActiveByOrderID reports whether a queued or processing job carries
// the key.
func (s *Store) ExistsActiveByOrderID(ctx context.Context, tenantID, topic, orderID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM drainq_jobs
			WHERE tenant_id = $1 AND topic = $2 AND order_id = $3
			  AND status IN ('queued', 'processing')
		)`,
		tenantID, topic, orderID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("drainq/postgres: exists by order id: %w", err)
	}
	return exists, nil
}

// ClaimNext selects the oldest eligible job of the tenant and moves it to
// processing, both inside one transaction. The update is conditional on
// the row still being queued; losing that race yields (nil, nil).
func (s *Store) ClaimNext(ctx context.Context, tenantID string, opts job.ClaimOpts, workerID id.WorkerID) (*job.Job, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("drainq/postgres: claim begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var jobID int64
	err = tx.QueryRow(ctx, `
		SELECT id FROM drainq_jobs
		WHERE tenant_id = $1
		  AND status = 'queued'
		  AND (next_run_at IS NULL OR next_run_at <= NOW())
		  AND ($2::text[] IS NULL OR intent = ANY($2))
		ORDER BY next_run_at ASC NULLS FIRST, id ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`,
		tenantID, intentsArg(opts.Intents),
	).Scan(&jobID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil //nolint:nilnil // no eligible job
		}
		return nil, fmt.Errorf("drainq/postgres: claim select: %w", err)
	}

	row := tx.QueryRow(ctx, `
		UPDATE drainq_jobs
		SET status = 'processing', started_at = NOW(), worker_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'queued'
		RETURNING `+jobColumns,
		jobID, workerID,
	)
	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil //nolint:nilnil // lost the race to another claimer
		}
		return nil, fmt.Errorf("drainq/postgres: claim update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("drainq/postgres: claim commit: %w", err)
	}
	return j, nil
}

// CompleteJob marks a processing job completed.
func (s *Store) CompleteJob(ctx context.Context, jobID int64) error {
	return s.finish(ctx, "complete job", `
		UPDATE drainq_jobs
		SET status = 'completed', finished_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'processing'`,
		jobID,
	)
}

// RetryJob returns a processing job to queued.
func (s *Store) RetryJob(ctx context.Context, jobID int64, attempts int, nextRunAt time.Time, errMsg string) error {
	return s.finish(ctx, "retry job", `
		UPDATE drainq_jobs
		SET status = 'queued', attempts = $2, next_run_at = $3, error = $4,
		    started_at = NULL, finished_at = NULL, worker_id = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'`,
		jobID, attempts, nextRunAt, errMsg,
	)
}

// FailJob marks a processing job failed.
func (s *Store) FailJob(ctx context.Context, jobID int64, errMsg string) error {
	return s.finish(ctx, "fail job", `
		UPDATE drainq_jobs
		SET status = 'failed', error = $2, finished_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'processing'`,
		jobID, errMsg,
	)
}

// finish runs a conditional update and maps zero affected rows to
// ErrJobNotFound or ErrInvalidTransition.
func (s *Store) finish(ctx context.Context, op, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("drainq/postgres: %s: %w", op, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM drainq_jobs WHERE id = $1)`, args[0],
	).Scan(&exists); err != nil {
		return fmt.Errorf("drainq/postgres: %s: %w", op, err)
	}
	if !exists {
		return drainq.ErrJobNotFound
	}
	return drainq.ErrInvalidTransition
}

// RecoverStuckJobs returns stale processing jobs of the tenant to queued.
func (s *Store) RecoverStuckJobs(ctx context.Context, tenantID string, startedBefore time.Time, note string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE drainq_jobs
		SET status = 'queued', started_at = NULL, worker_id = NULL, error = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND status = 'processing' AND started_at < $2`,
		tenantID, startedBefore, note,
	)
	if err != nil {
		return 0, fmt.Errorf("drainq/postgres: recover stuck jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountQueued returns the tenant's queued jobs matching opts.
func (s *Store) CountQueued(ctx context.Context, tenantID string, opts job.ClaimOpts) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM drainq_jobs
		WHERE tenant_id = $1 AND status = 'queued'
		  AND ($2::text[] IS NULL OR intent = ANY($2))`,
		tenantID, intentsArg(opts.Intents),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("drainq/postgres: count queued: %w", err)
	}
	return n, nil
}

// QueueSize returns the number of queued and processing jobs.
func (s *Store) QueueSize(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM drainq_jobs WHERE status IN ('queued', 'processing')`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("drainq/postgres: queue size: %w", err)
	}
	return n, nil
}

// DeadLetters returns up to limit failed jobs, newest first. A limit of
// zero or less returns all of them.
func (s *Store) DeadLetters(ctx context.Context, limit int) ([]*job.Job, error) {
	// LIMIT NULL is LIMIT ALL.
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM drainq_jobs
		WHERE status = 'failed'
		ORDER BY finished_at DESC NULLS LAST, id DESC
		LIMIT $1`,
		lim,
	)
	if err != nil {
		return nil, fmt.Errorf("drainq/postgres: dead letters: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// TenantsNeedingAttention returns tenants with due queued jobs or stale
// processing jobs.
func (s *Store) TenantsNeedingAttention(ctx context.Context, stuckBefore time.Time, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT tenant_id FROM drainq_jobs
		WHERE (status = 'queued' AND (next_run_at IS NULL OR next_run_at <= NOW()))
		   OR (status = 'processing' AND started_at < $1)
		ORDER BY tenant_id
		LIMIT $2`,
		stuckBefore, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("drainq/postgres: tenants needing attention: %w", err)
	}

	tenants, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("drainq/postgres: tenants needing attention: %w", err)
	}
	return tenants, nil
}

// scanJob scans a single row in jobColumns order.
func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		j          job.Job
		externalID *string
		orderID    *string
		status     string
	)
	err := row.Scan(
		&j.ID, &j.TenantID, &j.Topic, &j.Intent, &j.Payload,
		&externalID, &orderID, &j.EventTime,
		&status, &j.Attempts, &j.NextRunAt, &j.StartedAt, &j.FinishedAt,
		&j.Error, &j.WorkerID,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.Status = job.Status(status)
	if externalID != nil {
		j.ExternalID = *externalID
	}
	if orderID != nil {
		j.OrderID = *orderID
	}
	return &j, nil
}

// collectJobs collects all jobs from query rows.
func collectJobs(rows pgx.Rows) ([]*job.Job, error) {
	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("drainq/postgres: scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("drainq/postgres: iterate jobs: %w", err)
	}
	return jobs, nil
}
