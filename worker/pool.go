package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/drainq"
	"github.com/xraph/drainq/id"
	"github.com/xraph/drainq/job"
	"github.com/xraph/drainq/lock"
	"github.com/xraph/drainq/observability"
)

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithIntentFilter restricts claims to the intents returned by fn. It is
// evaluated on every drain so handlers registered later are picked up.
// When fn returns no intents, nothing is claimed.
func WithIntentFilter(fn func() []string) PoolOption {
	return func(p *Pool) { p.intents = fn }
}

// WithWorkerID overrides the generated worker ID.
func WithWorkerID(wid id.WorkerID) PoolOption {
	return func(p *Pool) { p.workerID = wid }
}

// Pool drains tenants. Triggers land in a deduplicated work queue served by
// a fixed set of goroutines. Each drain claims at most BatchSize jobs under
// the tenant lock and reschedules itself with a cooldown while backlog
// remains.
type Pool struct {
	store    job.Store
	locker   lock.Locker
	executor *Executor
	reaper   *Reaper
	recorder *observability.Recorder
	logger   *slog.Logger
	cfg      drainq.Config
	intents  func() []string
	workerID id.WorkerID

	mu       sync.Mutex
	draining map[string]struct{}
	timers   map[string]*time.Timer
	depth    map[string]int
	pending  map[string]struct{}
	queue    []string
	started  bool
	stopped  bool

	notify chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup

	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewPool creates a Pool. It does not start any goroutines.
func NewPool(
	store job.Store,
	locker lock.Locker,
	executor *Executor,
	reaper *Reaper,
	cfg drainq.Config,
	recorder *observability.Recorder,
	logger *slog.Logger,
	opts ...PoolOption,
) *Pool {
	p := &Pool{
		store:    store,
		locker:   locker,
		executor: executor,
		reaper:   reaper,
		recorder: recorder,
		logger:   logger,
		cfg:      cfg,
		draining: make(map[string]struct{}),
		timers:   make(map[string]*time.Timer),
		depth:    make(map[string]int),
		pending:  make(map[string]struct{}),
		notify:   make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.workerID.IsNil() {
		p.workerID = id.NewWorkerID()
	}
	return p
}

// WorkerID returns the ID recorded on jobs this pool claims.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Start launches cfg.Workers goroutines serving the work queue. Drains run
// under a context that keeps ctx's values but is only cancelled by Stop.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.stopped {
		return
	}
	p.started = true
	p.baseCtx, p.cancel = context.WithCancel(context.WithoutCancel(ctx))

	for range p.cfg.Workers {
		p.wg.Add(1)
		go p.loop()
	}

	p.logger.Info("worker pool started",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("workers", p.cfg.Workers),
	)
}

// Trigger asks for tenantID to be drained soon. It is non-blocking and
// collapses with any trigger already waiting for the same tenant. An
// external trigger resets the tenant's reschedule chain.
func (p *Pool) Trigger(tenantID string) {
	p.ResetChain(tenantID)
	p.enqueue(tenantID)
}

// ResetChain clears the tenant's consecutive self-reschedule count.
func (p *Pool) ResetChain(tenantID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.depth, tenantID)
}

// Stop prevents new drains, cancels pending reschedules, and waits for
// in-flight drains. If ctx expires first the drain context is cancelled
// and Stop waits for the goroutines to observe it.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return drainq.ErrPoolStopped
	}
	p.stopped = true
	for tenant, t := range p.timers {
		t.Stop()
		delete(p.timers, tenant)
	}
	p.queue = nil
	clear(p.pending)
	close(p.stopCh)
	started := p.started
	p.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		p.logger.Warn("shutdown timeout, cancelling in-flight drains")
		p.cancel()
		<-done
	}
	p.cancel()

	p.logger.Info("worker pool stopped", slog.String("worker_id", p.workerID.String()))
	return nil
}

// enqueue adds tenantID to the work queue unless it is already waiting.
func (p *Pool) enqueue(tenantID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}
	if _, ok := p.pending[tenantID]; ok {
		return
	}
	p.pending[tenantID] = struct{}{}
	p.queue = append(p.queue, tenantID)
	p.signal()
}

// signal wakes one waiting goroutine. Callers hold p.mu.
func (p *Pool) signal() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// next pops the oldest waiting tenant.
func (p *Pool) next() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped || len(p.queue) == 0 {
		return "", false
	}
	tenant := p.queue[0]
	p.queue = p.queue[1:]
	delete(p.pending, tenant)
	if len(p.queue) > 0 {
		p.signal()
	}
	return tenant, true
}

func (p *Pool) loop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		tenant, ok := p.next()
		if !ok {
			select {
			case <-p.stopCh:
				return
			case <-p.notify:
				continue
			}
		}

		p.Drain(p.baseCtx, tenant)
	}
}

// scheduleReschedule arms the tenant's cooldown timer. It returns the delay,
// or false when the pool is stopped or the chain cap was reached.
func (p *Pool) scheduleReschedule(tenantID string, backlog int64) (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return 0, false
	}

	depth := p.depth[tenantID]
	if depth >= p.cfg.MaxRescheduleDepth {
		delete(p.depth, tenantID)
		p.logger.Error("reschedule chain limit reached, waiting for next trigger",
			slog.String("tenant_id", tenantID),
			slog.Int("depth", depth),
			slog.Int64("backlog", backlog),
		)
		return 0, false
	}
	p.depth[tenantID] = depth + 1

	if t, ok := p.timers[tenantID]; ok {
		t.Stop()
	}

	delay := Cooldown(p.cfg, backlog)
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		p.mu.Lock()
		if cur, ok := p.timers[tenantID]; ok && cur == t {
			delete(p.timers, tenantID)
		}
		p.mu.Unlock()
		p.enqueue(tenantID)
	})
	p.timers[tenantID] = t
	return delay, true
}

// Cooldown returns the delay before a tenant with backlog pending jobs is
// drained again: PendingCooldownBase plus one PendingCooldownIncrement per
// full batch of backlog, capped at PendingCooldownMax.
func Cooldown(cfg drainq.Config, backlog int64) time.Duration {
	batches := int64(0)
	if cfg.BatchSize > 0 {
		batches = backlog / int64(cfg.BatchSize)
	}

	headroom := cfg.PendingCooldownMax - cfg.PendingCooldownBase
	if cfg.PendingCooldownIncrement > 0 && batches > int64(headroom/cfg.PendingCooldownIncrement) {
		return cfg.PendingCooldownMax
	}
	return min(cfg.PendingCooldownMax, cfg.PendingCooldownBase+time.Duration(batches)*cfg.PendingCooldownIncrement)
}
