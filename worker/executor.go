// Package worker runs jobs: an Executor that invokes registered handlers
// through middleware and records the outcome, a Reaper that recovers stuck
// jobs, and a Pool that drains tenants in bounded bursts.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/drainq"
	"github.com/xraph/drainq/backoff"
	"github.com/xraph/drainq/job"
	"github.com/xraph/drainq/middleware"
	"github.com/xraph/drainq/observability"
	"github.com/xraph/drainq/sanitize"
)

// Outcome is the state a job was left in after one execution.
type Outcome int

const (
	// OutcomeCompleted means the handler succeeded.
	OutcomeCompleted Outcome = iota + 1
	// OutcomeRetried means the job went back to the queue with a delay.
	OutcomeRetried
	// OutcomeFailed means the job is a dead letter.
	OutcomeFailed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeRetried:
		return "retried"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Executor runs a single claimed job through middleware and its handler,
// then persists completion, retry, or dead letter.
type Executor struct {
	registry   *job.Registry
	store      job.Store
	backoff    backoff.Strategy
	maxRetries int
	mw         middleware.Middleware
	recorder   *observability.Recorder
	logger     *slog.Logger
	now        func() time.Time
}

// NewExecutor creates an Executor with the given dependencies.
func NewExecutor(
	registry *job.Registry,
	store job.Store,
	bo backoff.Strategy,
	maxRetries int,
	recorder *observability.Recorder,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	return &Executor{
		registry:   registry,
		store:      store,
		backoff:    bo,
		maxRetries: maxRetries,
		mw:         middleware.Chain(mws...),
		recorder:   recorder,
		logger:     logger,
		now:        time.Now,
	}
}

// Execute runs j, which must have been claimed (status processing).
// A missing handler counts as a handler failure. The returned error is
// non-nil only when the final state could not be persisted; the job then
// stays processing until the reaper recovers it.
func (e *Executor) Execute(ctx context.Context, j *job.Job) (Outcome, error) {
	handler, ok := e.registry.Get(j.Intent)

	terminal := func(ctx context.Context) error {
		if !ok {
			return fmt.Errorf("%w: intent %q", drainq.ErrNoHandler, j.Intent)
		}
		return handler(ctx, j.Payload)
	}

	if err := e.mw(ctx, j, terminal); err != nil {
		return e.handleFailure(ctx, j, err)
	}
	return e.handleSuccess(ctx, j)
}

// handleSuccess marks the job completed.
func (e *Executor) handleSuccess(ctx context.Context, j *job.Job) (Outcome, error) {
	if err := e.store.CompleteJob(ctx, j.ID); err != nil {
		e.logger.Error("failed to mark job completed",
			slog.Int64("job_id", j.ID),
			slog.String("tenant_id", j.TenantID),
			slog.String("error", sanitize.Error(err)),
		)
		return OutcomeCompleted, err
	}

	e.recorder.JobCompleted(ctx)
	return OutcomeCompleted, nil
}

// handleFailure retries the job while attempts remain, otherwise
// dead-letters it. A retry that cannot be persisted dead-letters the job
// immediately.
func (e *Executor) handleFailure(ctx context.Context, j *job.Job, handlerErr error) (Outcome, error) {
	msg := sanitize.Error(handlerErr)

	if j.Attempts < e.maxRetries {
		delay := e.backoff.Delay(j.Attempts)
		nextRunAt := e.now().UTC().Add(delay)

		err := e.store.RetryJob(ctx, j.ID, j.Attempts+1, nextRunAt, msg)
		if err == nil {
			e.recorder.JobRetried(ctx)
			e.logger.Info("job scheduled for retry",
				slog.Int64("job_id", j.ID),
				slog.String("tenant_id", j.TenantID),
				slog.String("intent", j.Intent),
				slog.Int("attempt", j.Attempts+1),
				slog.Int("max_retries", e.maxRetries),
				slog.Duration("delay", delay),
			)
			return OutcomeRetried, nil
		}

		e.logger.Error("failed to schedule retry, dead-lettering job",
			slog.Int64("job_id", j.ID),
			slog.String("tenant_id", j.TenantID),
			slog.String("error", sanitize.Error(err)),
		)
	}

	return e.deadLetter(ctx, j, msg)
}

// deadLetter marks the job failed.
func (e *Executor) deadLetter(ctx context.Context, j *job.Job, msg string) (Outcome, error) {
	if err := e.store.FailJob(ctx, j.ID, msg); err != nil {
		e.logger.Error("failed to mark job failed",
			slog.Int64("job_id", j.ID),
			slog.String("tenant_id", j.TenantID),
			slog.String("error", sanitize.Error(err)),
		)
		return OutcomeFailed, err
	}

	e.recorder.JobDeadLettered(ctx)
	e.logger.Warn("job dead-lettered after exhausting retries",
		slog.Int64("job_id", j.ID),
		slog.String("tenant_id", j.TenantID),
		slog.String("intent", j.Intent),
		slog.Int("attempts", j.Attempts),
		slog.String("error", msg),
	)
	return OutcomeFailed, nil
}
