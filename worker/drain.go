package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/drainq/id"
	"github.com/xraph/drainq/job"
	"github.com/xraph/drainq/lock"
	"github.com/xraph/drainq/observability"
	"github.com/xraph/drainq/sanitize"
)

// DrainResult summarizes one drain of a tenant.
type DrainResult struct {
	DrainID       string        `json:"drain_id"`
	TenantID      string        `json:"tenant_id"`
	Skipped       bool          `json:"skipped"`
	LockAcquired  bool          `json:"lock_acquired"`
	Recovered     int64         `json:"recovered"`
	Claimed       int           `json:"claimed"`
	Completed     int           `json:"completed"`
	Retried       int           `json:"retried"`
	Failed        int           `json:"failed"`
	Backlog       int64         `json:"backlog"`
	RescheduledIn time.Duration `json:"rescheduled_in"`
	Error         string        `json:"error,omitempty"`
}

// Drain processes up to BatchSize eligible jobs for tenantID. A drain that
// is already running for the tenant in this process makes it a no-op. A
// tenant lock held elsewhere skips the burst only. Jobs left queued
// afterwards, whether or not this drain ran them, trigger a self-reschedule
// after a cooldown.
//
// Drain is safe to call directly; the pool's goroutines call it for
// triggered tenants.
func (p *Pool) Drain(ctx context.Context, tenantID string) DrainResult {
	res := DrainResult{
		DrainID:  id.NewDrainID().String(),
		TenantID: tenantID,
	}

	if !p.beginDrain(tenantID) {
		res.Skipped = true
		p.recorder.DrainRun(ctx, observability.OutcomeSkipped)
		return res
	}

	logger := p.logger.With(
		slog.String("drain_id", res.DrainID),
		slog.String("tenant_id", tenantID),
	)

	opts, claimable := p.claimOpts()
	func() {
		defer p.endDrain(tenantID)

		res.Recovered = p.reaper.MaybeRun(ctx, tenantID)
		if !claimable {
			return
		}

		acquired, err := p.locker.WithLock(ctx, lock.Key(tenantID), func(ctx context.Context) error {
			return p.burst(ctx, tenantID, opts, &res, logger)
		})
		res.LockAcquired = acquired

		switch {
		case err != nil:
			res.Error = sanitize.Error(err)
			p.recorder.DrainRun(ctx, observability.OutcomeError)
			logger.Error("drain failed", slog.String("error", res.Error))
		case !acquired:
			p.recorder.DrainRun(ctx, observability.OutcomeLocked)
			logger.Debug("tenant lock held elsewhere, skipping drain")
		default:
			p.recorder.DrainRun(ctx, observability.OutcomeProcessed)
		}
	}()

	// Nothing claimable without registered intents, so nothing to count.
	if !claimable {
		return res
	}

	backlog, err := p.store.CountQueued(ctx, tenantID, opts)
	if err != nil {
		logger.Error("failed to count backlog", slog.String("error", sanitize.Error(err)))
		return res
	}
	res.Backlog = backlog

	if backlog > 0 {
		if delay, ok := p.scheduleReschedule(tenantID, backlog); ok {
			res.RescheduledIn = delay
			p.recorder.DrainRescheduled(ctx)
			logger.Debug("backlog remains, drain rescheduled",
				slog.Int64("backlog", backlog),
				slog.Duration("delay", delay),
			)
		}
	}

	if res.Claimed > 0 {
		logger.Info("drain finished",
			slog.Int("claimed", res.Claimed),
			slog.Int("completed", res.Completed),
			slog.Int("retried", res.Retried),
			slog.Int("failed", res.Failed),
			slog.Int64("backlog", res.Backlog),
		)
	}
	return res
}

// burst claims and executes jobs until the batch is spent or the tenant
// has nothing eligible. Callers hold the tenant lock.
func (p *Pool) burst(ctx context.Context, tenantID string, opts job.ClaimOpts, res *DrainResult, logger *slog.Logger) error {
	for range p.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		j, err := p.store.ClaimNext(ctx, tenantID, opts, p.workerID)
		if err != nil {
			return err
		}
		if j == nil {
			return nil
		}
		res.Claimed++

		outcome, err := p.executor.Execute(ctx, j)
		if err != nil {
			logger.Error("job state not persisted",
				slog.Int64("job_id", j.ID),
				slog.String("outcome", outcome.String()),
				slog.String("error", sanitize.Error(err)),
			)
			continue
		}

		switch outcome {
		case OutcomeCompleted:
			res.Completed++
		case OutcomeRetried:
			res.Retried++
		case OutcomeFailed:
			res.Failed++
		}
	}
	return nil
}

// beginDrain marks tenantID as draining and cancels its pending reschedule.
// It reports false if a drain for the tenant is already running here.
func (p *Pool) beginDrain(tenantID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.draining[tenantID]; ok {
		return false
	}
	p.draining[tenantID] = struct{}{}

	if t, ok := p.timers[tenantID]; ok {
		t.Stop()
		delete(p.timers, tenantID)
	}
	return true
}

func (p *Pool) endDrain(tenantID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.draining, tenantID)
}

// claimOpts builds the claim filter. It reports false when filtering is on
// and no intent is registered.
func (p *Pool) claimOpts() (job.ClaimOpts, bool) {
	if p.intents == nil {
		return job.ClaimOpts{}, true
	}
	intents := p.intents()
	if len(intents) == 0 {
		return job.ClaimOpts{}, false
	}
	return job.ClaimOpts{Intents: intents}, true
}
