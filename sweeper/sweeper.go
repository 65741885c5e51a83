// Package sweeper periodically wakes tenants that have work nobody is
// draining: due jobs left after a restart or a capped reschedule chain, and
// jobs stuck in processing.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/xraph/drainq"
	"github.com/xraph/drainq/job"
	"github.com/xraph/drainq/sanitize"
)

// Triggerer receives the tenants a sweep finds. worker.Pool satisfies it.
type Triggerer interface {
	Trigger(tenantID string)
}

// Sweeper runs Sweep on a cron schedule.
type Sweeper struct {
	store      job.Store
	trigger    Triggerer
	schedule   string
	limit      int
	stuckAfter time.Duration
	logger     *slog.Logger
	now        func() time.Time

	mu     sync.Mutex
	cron   *cronlib.Cron
	cancel context.CancelFunc
}

// New creates a Sweeper from cfg's SweepSchedule, SweepLimit and
// StuckJobTimeout.
func New(store job.Store, trigger Triggerer, cfg drainq.Config, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:      store,
		trigger:    trigger,
		schedule:   cfg.SweepSchedule,
		limit:      cfg.SweepLimit,
		stuckAfter: cfg.StuckJobTimeout,
		logger:     logger,
		now:        time.Now,
	}
}

// Sweep triggers every tenant with due queued jobs or stale processing
// jobs, up to the configured limit. It returns the number triggered.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	stuckBefore := s.now().UTC().Add(-s.stuckAfter)

	tenants, err := s.store.TenantsNeedingAttention(ctx, stuckBefore, s.limit)
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}

	for _, tenantID := range tenants {
		s.trigger.Trigger(tenantID)
	}

	if len(tenants) > 0 {
		s.logger.Debug("sweep triggered tenants", slog.Int("tenants", len(tenants)))
	}
	if len(tenants) == s.limit {
		s.logger.Warn("sweep hit tenant limit, remaining tenants wait for the next run",
			slog.Int("limit", s.limit),
		)
	}
	return len(tenants), nil
}

// Start schedules Sweep. Overlapping runs are skipped. An empty schedule
// disables the sweeper.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" || s.cron != nil {
		return nil
	}

	logger := cronLogger{s.logger}
	c := cronlib.New(
		cronlib.WithParser(drainq.ScheduleParser),
		cronlib.WithLogger(logger),
		cronlib.WithChain(cronlib.Recover(logger), cronlib.SkipIfStillRunning(logger)),
	)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if _, err := c.AddFunc(s.schedule, func() {
		if _, err := s.Sweep(runCtx); err != nil {
			s.logger.Error("sweep failed", slog.String("error", sanitize.Error(err)))
		}
	}); err != nil {
		cancel()
		return fmt.Errorf("sweeper: schedule %q: %w", s.schedule, err)
	}

	c.Start()
	s.cron = c
	s.cancel = cancel

	s.logger.Info("sweeper started", slog.String("schedule", s.schedule))
	return nil
}

// Stop halts the schedule and waits for a running sweep until ctx expires.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}

	stopped := c.Stop()
	defer cancel()

	select {
	case <-stopped.Done():
		s.logger.Info("sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{slog.String("error", sanitize.Error(err))}, keysAndValues...)
	c.l.Error("cron: "+msg, args...)
}
