package job

import (
	"context"
	"time"

	"github.com/xraph/drainq/id"
)

// ClaimOpts restricts which queued jobs a claim or backlog count considers.
type ClaimOpts struct {
	// Intents limits the match to these intents. Empty means all intents.
	Intents []string
}

// Matches reports whether intent passes the filter.
func (o ClaimOpts) Matches(intent string) bool {
	if len(o.Intents) == 0 {
		return true
	}
	for _, i := range o.Intents {
		if i == intent {
			return true
		}
	}
	return false
}

// Store defines the persistence contract for jobs.
//
// Completion, retry and failure updates only apply to rows that are still
// processing; otherwise they return drainq.ErrInvalidTransition.
type Store interface {
	// InsertJob persists j in queued status and sets j.ID, j.CreatedAt and
	// j.UpdatedAt. A unique-key violation returns drainq.ErrDuplicateJob.
	InsertJob(ctx context.Context, j *Job) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID int64) (*Job, error)

	// ExistsByExternalID reports whether any job with the key exists.
	ExistsByExternalID(ctx context.Context, tenantID, topic, externalID string) (bool, error)

	// ExistsActiveByOrderID reports whether a queued or processing job with
	// the key exists.
	ExistsActiveByOrderID(ctx context.Context, tenantID, topic, orderID string) (bool, error)

	// ClaimNext atomically moves the oldest eligible queued job of the
	// tenant to processing and returns it. It returns (nil, nil) when no job
	// is eligible or another claimer won the row.
	ClaimNext(ctx context.Context, tenantID string, opts ClaimOpts, workerID id.WorkerID) (*Job, error)

	// CompleteJob marks a processing job completed.
	CompleteJob(ctx context.Context, jobID int64) error

	// RetryJob returns a processing job to queued with the new attempt
	// count, next run time and error message.
	RetryJob(ctx context.Context, jobID int64, attempts int, nextRunAt time.Time, errMsg string) error

	// FailJob marks a processing job failed.
	FailJob(ctx context.Context, jobID int64, errMsg string) error

	// RecoverStuckJobs returns the tenant's processing jobs started before
	// the cutoff to queued, leaving attempts unchanged.
	RecoverStuckJobs(ctx context.Context, tenantID string, startedBefore time.Time, note string) (int64, error)

	// CountQueued returns the tenant's queued jobs matching opts,
	// regardless of NextRunAt.
	CountQueued(ctx context.Context, tenantID string, opts ClaimOpts) (int64, error)

	// QueueSize returns the number of queued and processing jobs.
	QueueSize(ctx context.Context) (int64, error)

	// DeadLetters returns up to limit failed jobs, newest first. A limit of
	// zero or less returns all of them.
	DeadLetters(ctx context.Context, limit int) ([]*Job, error)

	// TenantsNeedingAttention returns up to limit tenants that have due
	// queued jobs or processing jobs started before stuckBefore.
	TenantsNeedingAttention(ctx context.Context, stuckBefore time.Time, limit int) ([]string, error)
}
