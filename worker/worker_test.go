package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xraph/drainq"
	"github.com/xraph/drainq/backoff"
	"github.com/xraph/drainq/id"
	"github.com/xraph/drainq/job"
	"github.com/xraph/drainq/lock"
	"github.com/xraph/drainq/observability"
	"github.com/xraph/drainq/store/memory"
)

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

const tenant = "acme.example.com"

func testConfig() drainq.Config {
	cfg := drainq.DefaultConfig()
	cfg.BaseDelay = time.Millisecond
	cfg.Workers = 2
	// Keep reschedule timers from firing during a test.
	cfg.PendingCooldownBase = time.Hour
	cfg.PendingCooldownMax = 2 * time.Hour
	return cfg
}

type harness struct {
	store    *memory.Store
	registry *job.Registry
	executor *Executor
	reaper   *Reaper
	pool     *Pool
}

func newHarness(t *testing.T, cfg drainq.Config, locker lock.Locker, opts ...PoolOption) *harness {
	t.Helper()
	return newHarnessWithStore(t, cfg, locker, nil, opts...)
}

// newHarnessWithStore runs the executor, reaper and pool against wrap(store)
// when wrap is set. Test assertions still read the memory store directly.
func newHarnessWithStore(t *testing.T, cfg drainq.Config, locker lock.Locker, wrap func(*memory.Store) job.Store, opts ...PoolOption) *harness {
	t.Helper()

	mem := memory.New()
	if locker == nil {
		locker = mem
	}
	var store job.Store = mem
	if wrap != nil {
		store = wrap(mem)
	}
	registry := job.NewRegistry()
	recorder := observability.NewRecorderWithMeter(noop.NewMeterProvider().Meter("test"))
	logger := slog.New(slog.DiscardHandler)

	exec := NewExecutor(registry, store, backoff.NewConstant(0), cfg.MaxRetries, recorder, logger)
	reaper := NewReaper(store, cfg.StuckJobTimeout, cfg.StuckRecoveryInterval, recorder, logger)
	pool := NewPool(store, locker, exec, reaper, cfg, recorder, logger, opts...)

	t.Cleanup(func() { _ = pool.Stop(context.Background()) })

	return &harness{store: mem, registry: registry, executor: exec, reaper: reaper, pool: pool}
}

// failingStore injects errors into selected store writes.
type failingStore struct {
	*memory.Store
	retryErr   error
	recoverErr error
}

func (f *failingStore) RetryJob(ctx context.Context, jobID int64, attempts int, nextRunAt time.Time, errMsg string) error {
	if f.retryErr != nil {
		return f.retryErr
	}
	return f.Store.RetryJob(ctx, jobID, attempts, nextRunAt, errMsg)
}

func (f *failingStore) RecoverStuckJobs(ctx context.Context, tenantID string, startedBefore time.Time, note string) (int64, error) {
	if f.recoverErr != nil {
		return 0, f.recoverErr
	}
	return f.Store.RecoverStuckJobs(ctx, tenantID, startedBefore, note)
}

func (h *harness) insert(t *testing.T, intent string) *job.Job {
	t.Helper()
	j := &job.Job{
		TenantID: tenant,
		Topic:    "orders/paid",
		Intent:   intent,
		Payload:  json.RawMessage(`{"order_id":"1"}`),
	}
	if err := h.store.InsertJob(context.Background(), j); err != nil {
		t.Fatalf("InsertJob: %v", err)
	}
	return j
}

func (h *harness) get(t *testing.T, jobID int64) *job.Job {
	t.Helper()
	j, err := h.store.GetJob(context.Background(), jobID)
	if err != nil {
		t.Fatalf("GetJob(%d): %v", jobID, err)
	}
	return j
}

// ──────────────────────────────────────────────────
// Drain tests
// ──────────────────────────────────────────────────

func TestDrain_CompletesEligibleJobs(t *testing.T) {
	h := newHarness(t, testConfig(), nil)

	var calls atomic.Int32
	h.registry.Register("orders.paid", func(_ context.Context, _ json.RawMessage) error {
		calls.Add(1)
		return nil
	})

	ids := make([]int64, 3)
	for i := range ids {
		ids[i] = h.insert(t, "orders.paid").ID
	}

	res := h.pool.Drain(context.Background(), tenant)
	if !res.LockAcquired || res.Skipped {
		t.Fatalf("drain not processed: %+v", res)
	}
	if res.Claimed != 3 || res.Completed != 3 {
		t.Errorf("claimed=%d completed=%d, want 3/3", res.Claimed, res.Completed)
	}
	if res.Backlog != 0 || res.RescheduledIn != 0 {
		t.Errorf("backlog=%d rescheduledIn=%v, want none", res.Backlog, res.RescheduledIn)
	}
	if calls.Load() != 3 {
		t.Errorf("handler calls = %d, want 3", calls.Load())
	}
	for _, jobID := range ids {
		j := h.get(t, jobID)
		if j.Status != job.StatusCompleted {
			t.Errorf("job %d status = %q, want completed", jobID, j.Status)
		}
		if j.WorkerID != h.pool.WorkerID() {
			t.Errorf("job %d worker = %q, want %q", jobID, j.WorkerID, h.pool.WorkerID())
		}
	}
}

func TestDrain_BatchSizeBoundsBurstAndReschedules(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 2
	h := newHarness(t, cfg, nil)
	h.registry.Register("orders.paid", func(context.Context, json.RawMessage) error { return nil })

	for range 5 {
		h.insert(t, "orders.paid")
	}

	res := h.pool.Drain(context.Background(), tenant)
	if res.Claimed != 2 {
		t.Errorf("claimed = %d, want 2", res.Claimed)
	}
	if res.Backlog != 3 {
		t.Errorf("backlog = %d, want 3", res.Backlog)
	}
	if want := Cooldown(cfg, 3); res.RescheduledIn != want {
		t.Errorf("rescheduledIn = %v, want %v", res.RescheduledIn, want)
	}

	h.pool.mu.Lock()
	_, armed := h.pool.timers[tenant]
	depth := h.pool.depth[tenant]
	h.pool.mu.Unlock()
	if !armed {
		t.Error("expected a reschedule timer for the tenant")
	}
	if depth != 1 {
		t.Errorf("chain depth = %d, want 1", depth)
	}
}

func TestDrain_RetriesThenDeadLetters(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 2
	h := newHarness(t, cfg, nil)

	var calls atomic.Int32
	h.registry.Register("orders.paid", func(context.Context, json.RawMessage) error {
		calls.Add(1)
		return errors.New("payment gateway unavailable")
	})
	j := h.insert(t, "orders.paid")

	res := h.pool.Drain(context.Background(), tenant)
	if calls.Load() != 3 {
		t.Errorf("handler calls = %d, want 3", calls.Load())
	}
	if res.Retried != 2 || res.Failed != 1 {
		t.Errorf("retried=%d failed=%d, want 2/1", res.Retried, res.Failed)
	}

	got := h.get(t, j.ID)
	if got.Status != job.StatusFailed {
		t.Errorf("status = %q, want failed", got.Status)
	}
	if got.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", got.Attempts)
	}
	if got.Error != "payment gateway unavailable" {
		t.Errorf("error = %q", got.Error)
	}
	if got.FinishedAt == nil {
		t.Error("expected finished_at on dead letter")
	}
}

func TestDrain_SanitizesStoredError(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 0
	h := newHarness(t, cfg, nil)
	h.registry.Register("orders.paid", func(context.Context, json.RawMessage) error {
		return errors.New("dial postgres://admin:hunter2@db:5432 failed: password authentication failed")
	})
	j := h.insert(t, "orders.paid")

	h.pool.Drain(context.Background(), tenant)

	if got := h.get(t, j.ID); got.Error != "internal error" {
		t.Errorf("stored error = %q, want redacted", got.Error)
	}
}

func TestDrain_MissingHandlerCountsAsFailure(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 0
	h := newHarness(t, cfg, nil)
	j := h.insert(t, "unknown.intent")

	res := h.pool.Drain(context.Background(), tenant)
	if res.Failed != 1 {
		t.Fatalf("failed = %d, want 1", res.Failed)
	}
	got := h.get(t, j.ID)
	if got.Status != job.StatusFailed {
		t.Errorf("status = %q, want failed", got.Status)
	}
	if !strings.Contains(got.Error, "no handler registered") {
		t.Errorf("error = %q, want no-handler message", got.Error)
	}
}

func TestDrain_SkipsWhileTenantDraining(t *testing.T) {
	h := newHarness(t, testConfig(), nil)

	started := make(chan struct{})
	release := make(chan struct{})
	h.registry.Register("orders.paid", func(context.Context, json.RawMessage) error {
		close(started)
		<-release
		return nil
	})
	h.insert(t, "orders.paid")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.pool.Drain(context.Background(), tenant)
	}()

	<-started
	res := h.pool.Drain(context.Background(), tenant)
	close(release)
	wg.Wait()

	if !res.Skipped {
		t.Errorf("second drain = %+v, want skipped", res)
	}
	if res.Claimed != 0 {
		t.Errorf("skipped drain claimed %d jobs", res.Claimed)
	}
}

func TestDrain_LockHeldElsewhere(t *testing.T) {
	locker := lock.NewLocal()
	h := newHarness(t, testConfig(), locker)
	h.registry.Register("orders.paid", func(context.Context, json.RawMessage) error { return nil })
	j := h.insert(t, "orders.paid")

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = locker.WithLock(context.Background(), lock.Key(tenant), func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	res := h.pool.Drain(context.Background(), tenant)
	close(release)
	<-done

	if res.LockAcquired {
		t.Fatal("expected lock to be unavailable")
	}
	if res.Claimed != 0 {
		t.Errorf("locked drain claimed %d jobs", res.Claimed)
	}
	if got := h.get(t, j.ID); got.Status != job.StatusQueued {
		t.Errorf("status = %q, want queued", got.Status)
	}

	// The backlog still gets a retry on its own.
	if res.Backlog != 1 {
		t.Errorf("backlog = %d, want 1", res.Backlog)
	}
	if want := Cooldown(testConfig(), 1); res.RescheduledIn != want {
		t.Errorf("rescheduledIn = %v, want %v", res.RescheduledIn, want)
	}
	h.pool.mu.Lock()
	_, armed := h.pool.timers[tenant]
	h.pool.mu.Unlock()
	if !armed {
		t.Error("expected a reschedule timer after a locked-out drain")
	}
}

func TestDrain_LockErrorStillReschedules(t *testing.T) {
	h := newHarness(t, testConfig(), erroringLocker{err: errors.New("lock backend unreachable")})
	h.insert(t, "orders.paid")

	res := h.pool.Drain(context.Background(), tenant)
	if res.Error == "" || res.LockAcquired {
		t.Fatalf("drain = %+v, want lock error", res)
	}
	if res.Backlog != 1 || res.RescheduledIn == 0 {
		t.Errorf("backlog=%d rescheduledIn=%v, want a reschedule", res.Backlog, res.RescheduledIn)
	}
}

type erroringLocker struct{ err error }

func (l erroringLocker) WithLock(context.Context, uint32, func(context.Context) error) (bool, error) {
	return false, l.err
}

func TestDrain_IntentFilter(t *testing.T) {
	h := newHarness(t, testConfig(), nil, WithIntentFilter(func() []string { return []string{"orders.paid"} }))
	h.registry.Register("orders.paid", func(context.Context, json.RawMessage) error { return nil })

	paid := h.insert(t, "orders.paid")
	other := h.insert(t, "mail.send")

	res := h.pool.Drain(context.Background(), tenant)
	if res.Claimed != 1 {
		t.Errorf("claimed = %d, want 1", res.Claimed)
	}
	if res.Backlog != 0 {
		t.Errorf("backlog = %d, want 0 (unregistered intents are not counted)", res.Backlog)
	}
	if got := h.get(t, paid.ID); got.Status != job.StatusCompleted {
		t.Errorf("paid status = %q", got.Status)
	}
	if got := h.get(t, other.ID); got.Status != job.StatusQueued {
		t.Errorf("other status = %q, want queued", got.Status)
	}
}

func TestDrain_IntentFilterEmptyClaimsNothing(t *testing.T) {
	h := newHarness(t, testConfig(), nil, WithIntentFilter(func() []string { return nil }))
	j := h.insert(t, "orders.paid")

	res := h.pool.Drain(context.Background(), tenant)
	if res.Claimed != 0 || res.LockAcquired {
		t.Errorf("drain = %+v, want no work", res)
	}
	if got := h.get(t, j.ID); got.Status != job.StatusQueued {
		t.Errorf("status = %q, want queued", got.Status)
	}
}

// ──────────────────────────────────────────────────
// Reschedule tests
// ──────────────────────────────────────────────────

func TestScheduleReschedule_ChainCap(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRescheduleDepth = 2
	h := newHarness(t, cfg, nil)

	for i := range 2 {
		if _, ok := h.pool.scheduleReschedule(tenant, 5); !ok {
			t.Fatalf("reschedule %d refused", i+1)
		}
	}
	if _, ok := h.pool.scheduleReschedule(tenant, 5); ok {
		t.Fatal("reschedule beyond cap should be refused")
	}

	h.pool.Trigger(tenant)
	if _, ok := h.pool.scheduleReschedule(tenant, 5); !ok {
		t.Fatal("external trigger should reset the chain")
	}
}

func TestScheduleReschedule_FiresTrigger(t *testing.T) {
	cfg := testConfig()
	cfg.PendingCooldownBase = 5 * time.Millisecond
	cfg.PendingCooldownIncrement = 0
	cfg.PendingCooldownMax = 5 * time.Millisecond
	h := newHarness(t, cfg, nil)

	if _, ok := h.pool.scheduleReschedule(tenant, 1); !ok {
		t.Fatal("reschedule refused")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.pool.mu.Lock()
		_, queued := h.pool.pending[tenant]
		h.pool.mu.Unlock()
		if queued {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("reschedule timer did not enqueue the tenant")
}

func TestCooldown(t *testing.T) {
	cfg := drainq.DefaultConfig()
	cfg.BatchSize = 10
	cfg.PendingCooldownBase = time.Second
	cfg.PendingCooldownIncrement = 500 * time.Millisecond
	cfg.PendingCooldownMax = 5 * time.Second

	tests := []struct {
		backlog int64
		want    time.Duration
	}{
		{1, time.Second},
		{9, time.Second},
		{10, 1500 * time.Millisecond},
		{45, 3 * time.Second},
		{80, 5 * time.Second},
		{1 << 40, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := Cooldown(cfg, tt.backlog); got != tt.want {
			t.Errorf("Cooldown(%d) = %v, want %v", tt.backlog, got, tt.want)
		}
	}
}

// ──────────────────────────────────────────────────
// Pool lifecycle tests
// ──────────────────────────────────────────────────

func TestPool_TriggerDrainsInBackground(t *testing.T) {
	h := newHarness(t, testConfig(), nil)

	done := make(chan struct{}, 3)
	h.registry.Register("orders.paid", func(context.Context, json.RawMessage) error {
		done <- struct{}{}
		return nil
	})
	for range 3 {
		h.insert(t, "orders.paid")
	}

	h.pool.Start(context.Background())
	h.pool.Trigger(tenant)

	for i := range 3 {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for job %d", i+1)
		}
	}

	if err := h.pool.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestPool_TriggerDeduplicates(t *testing.T) {
	h := newHarness(t, testConfig(), nil)

	h.pool.Trigger(tenant)
	h.pool.Trigger(tenant)
	h.pool.Trigger("other.example.com")

	h.pool.mu.Lock()
	defer h.pool.mu.Unlock()
	if len(h.pool.queue) != 2 {
		t.Errorf("queue = %v, want 2 distinct tenants", h.pool.queue)
	}
}

func TestPool_StopClearsTimersAndRejectsSecondStop(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	h.pool.Start(context.Background())

	if _, ok := h.pool.scheduleReschedule(tenant, 3); !ok {
		t.Fatal("reschedule refused")
	}

	if err := h.pool.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	h.pool.mu.Lock()
	timers := len(h.pool.timers)
	h.pool.mu.Unlock()
	if timers != 0 {
		t.Errorf("timers after stop = %d, want 0", timers)
	}

	if err := h.pool.Stop(context.Background()); !errors.Is(err, drainq.ErrPoolStopped) {
		t.Errorf("second Stop = %v, want ErrPoolStopped", err)
	}

	h.pool.Trigger(tenant)
	h.pool.mu.Lock()
	queued := len(h.pool.queue)
	h.pool.mu.Unlock()
	if queued != 0 {
		t.Error("trigger after stop should be ignored")
	}
}

func TestPool_StopCancelsInFlightDrainOnTimeout(t *testing.T) {
	h := newHarness(t, testConfig(), nil)

	started := make(chan struct{})
	h.registry.Register("orders.paid", func(ctx context.Context, _ json.RawMessage) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	h.insert(t, "orders.paid")

	h.pool.Start(context.Background())
	h.pool.Trigger(tenant)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := h.pool.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

// ──────────────────────────────────────────────────
// Reaper tests
// ──────────────────────────────────────────────────

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestReaper_RecoversStuckJobsOncePerInterval(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := memory.New(memory.WithClock(clock.Now))
	ctx := context.Background()

	j := &job.Job{TenantID: tenant, Topic: "orders/paid", Intent: "orders.paid", Payload: json.RawMessage(`{}`)}
	if err := store.InsertJob(ctx, j); err != nil {
		t.Fatalf("InsertJob: %v", err)
	}
	claim := func() {
		t.Helper()
		claimed, err := store.ClaimNext(ctx, tenant, job.ClaimOpts{}, id.NewWorkerID())
		if err != nil || claimed == nil {
			t.Fatalf("ClaimNext: %v, %v", claimed, err)
		}
	}

	recorder := observability.NewRecorderWithMeter(noop.NewMeterProvider().Meter("test"))
	r := NewReaper(store, 10*time.Minute, time.Hour, recorder, slog.New(slog.DiscardHandler))
	r.now = clock.Now

	claim()
	clock.Advance(11 * time.Minute)

	if n := r.MaybeRun(ctx, tenant); n != 1 {
		t.Fatalf("first pass recovered %d, want 1", n)
	}
	got, _ := store.GetJob(ctx, j.ID)
	if got.Status != job.StatusQueued || got.Error != RecoveredNote {
		t.Errorf("recovered job = status %q error %q", got.Status, got.Error)
	}

	claim()
	clock.Advance(11 * time.Minute)
	if n := r.MaybeRun(ctx, tenant); n != 0 {
		t.Errorf("pass within interval recovered %d, want 0", n)
	}

	clock.Advance(time.Hour)
	if n := r.MaybeRun(ctx, tenant); n != 1 {
		t.Errorf("pass after interval recovered %d, want 1", n)
	}
}

func TestReaper_PrunesRefilledLimiters(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	recorder := observability.NewRecorderWithMeter(noop.NewMeterProvider().Meter("test"))
	r := NewReaper(memory.New(), 10*time.Minute, time.Hour, recorder, slog.New(slog.DiscardHandler))
	r.now = clock.Now
	ctx := context.Background()

	for _, tn := range []string{"a.example.com", "b.example.com", "c.example.com"} {
		r.MaybeRun(ctx, tn)
	}
	limiters := func() int {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.limiters)
	}
	if n := limiters(); n != 3 {
		t.Fatalf("limiters = %d, want 3", n)
	}

	clock.Advance(30 * time.Minute)
	r.MaybeRun(ctx, "d.example.com")
	if n := limiters(); n != 4 {
		t.Fatalf("limiters within interval = %d, want 4", n)
	}

	clock.Advance(2 * time.Hour)
	r.MaybeRun(ctx, "e.example.com")
	if n := limiters(); n != 1 {
		t.Errorf("limiters after refill = %d, want 1", n)
	}
}

// ──────────────────────────────────────────────────
// Store failure tests
// ──────────────────────────────────────────────────

func TestExecute_UnpersistableRetryDeadLetters(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 3
	fs := &failingStore{retryErr: errors.New("deadlock detected")}
	h := newHarnessWithStore(t, cfg, nil, func(m *memory.Store) job.Store {
		fs.Store = m
		return fs
	})
	h.registry.Register("orders.paid", func(context.Context, json.RawMessage) error {
		return errors.New("card declined")
	})
	ctx := context.Background()

	j := h.insert(t, "orders.paid")
	claimed, err := h.store.ClaimNext(ctx, tenant, job.ClaimOpts{}, h.pool.WorkerID())
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext: %v, %v", claimed, err)
	}

	outcome, err := h.executor.Execute(ctx, claimed)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome != OutcomeFailed {
		t.Errorf("outcome = %v, want failed", outcome)
	}

	got := h.get(t, j.ID)
	if got.Status != job.StatusFailed {
		t.Errorf("status = %q, want failed", got.Status)
	}
	if got.FinishedAt == nil {
		t.Error("expected finished_at on dead letter")
	}
	if got.Attempts != 0 || got.Error != "card declined" {
		t.Errorf("attempts=%d error=%q, want 0 and handler error", got.Attempts, got.Error)
	}
}

func TestDrain_ReaperStoreFailureDoesNotStopDrain(t *testing.T) {
	fs := &failingStore{recoverErr: errors.New("connection reset by peer")}
	h := newHarnessWithStore(t, testConfig(), nil, func(m *memory.Store) job.Store {
		fs.Store = m
		return fs
	})
	h.registry.Register("orders.paid", func(context.Context, json.RawMessage) error { return nil })
	h.reaper.now = func() time.Time { return time.Now().Add(time.Hour) }
	ctx := context.Background()

	stuck := h.insert(t, "orders.paid")
	if claimed, err := h.store.ClaimNext(ctx, tenant, job.ClaimOpts{}, id.NewWorkerID()); err != nil || claimed == nil {
		t.Fatalf("ClaimNext: %v, %v", claimed, err)
	}
	fresh := h.insert(t, "orders.paid")

	res := h.pool.Drain(ctx, tenant)
	if res.Recovered != 0 {
		t.Errorf("recovered = %d, want 0", res.Recovered)
	}
	if res.Error != "" {
		t.Errorf("drain error = %q, want none", res.Error)
	}
	if res.Completed != 1 {
		t.Errorf("completed = %d, want 1", res.Completed)
	}
	if got := h.get(t, fresh.ID); got.Status != job.StatusCompleted {
		t.Errorf("fresh status = %q, want completed", got.Status)
	}
	if got := h.get(t, stuck.ID); got.Status != job.StatusProcessing {
		t.Errorf("stuck status = %q, want processing", got.Status)
	}

	if n := h.reaper.MaybeRun(ctx, "other.example.com"); n != 0 {
		t.Errorf("MaybeRun after store failure = %d, want 0", n)
	}
}
