package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/xraph/drainq/job"
	"github.com/xraph/drainq/observability"
	"github.com/xraph/drainq/sanitize"
)

// RecoveredNote is recorded on jobs returned to the queue by the reaper.
const RecoveredNote = "recovered from stuck state"

// Reaper returns jobs stuck in processing to the queue. Each tenant gets a
// token bucket so a pass runs at most once per interval, however often the
// tenant is drained.
type Reaper struct {
	store    job.Store
	timeout  time.Duration
	interval time.Duration
	recorder *observability.Recorder
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	lastPrune time.Time
}

// NewReaper creates a Reaper. Jobs processing for longer than timeout are
// recovered; passes for one tenant are at least interval apart.
func NewReaper(store job.Store, timeout, interval time.Duration, recorder *observability.Recorder, logger *slog.Logger) *Reaper {
	return &Reaper{
		store:    store,
		timeout:  timeout,
		interval: interval,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
		limiters: make(map[string]*rate.Limiter),
	}
}

// limiter returns the tenant's bucket, creating it on first use. At most
// once per interval it also drops buckets that have refilled, since a full
// bucket behaves exactly like a new one.
func (r *Reaper) limiter(tenantID string, now time.Time) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if now.Sub(r.lastPrune) >= r.interval {
		r.lastPrune = now
		for t, l := range r.limiters {
			if l.TokensAt(now) >= 1 {
				delete(r.limiters, t)
			}
		}
	}

	l, ok := r.limiters[tenantID]
	if !ok {
		l = rate.NewLimiter(rate.Every(r.interval), 1)
		r.limiters[tenantID] = l
	}
	return l
}

// MaybeRun runs a recovery pass for the tenant unless one ran within the
// interval. It returns the number of recovered jobs. Store failures are
// logged and reported as zero.
func (r *Reaper) MaybeRun(ctx context.Context, tenantID string) int64 {
	now := r.now()
	if !r.limiter(tenantID, now).AllowN(now, 1) {
		return 0
	}

	n, err := r.store.RecoverStuckJobs(ctx, tenantID, now.UTC().Add(-r.timeout), RecoveredNote)
	if err != nil {
		r.logger.Error("stuck job recovery failed",
			slog.String("tenant_id", tenantID),
			slog.String("error", sanitize.Error(err)),
		)
		return 0
	}

	if n > 0 {
		r.recorder.JobsRecovered(ctx, n)
		r.logger.Warn("recovered stuck jobs",
			slog.String("tenant_id", tenantID),
			slog.Int64("count", n),
		)
	}
	return n
}
