package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/drainq"
	"github.com/xraph/drainq/backoff"
	"github.com/xraph/drainq/id"
	"github.com/xraph/drainq/job"
	"github.com/xraph/drainq/lock"
	mw "github.com/xraph/drainq/middleware"
	"github.com/xraph/drainq/observability"
	"github.com/xraph/drainq/sanitize"
	"github.com/xraph/drainq/sweeper"
	"github.com/xraph/drainq/worker"
)

// instrumentationName scopes the engine's tracer and meters.
const instrumentationName = "github.com/xraph/drainq"

// Engine owns the handler registry, the worker pool and the sweeper for one
// process.
type Engine struct {
	cfg      drainq.Config
	store    job.Store
	locker   lock.Locker
	registry *job.Registry
	bo       backoff.Strategy
	mws      []mw.Middleware
	logger   *slog.Logger

	registeredOnly bool
	workerID       id.WorkerID

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	recorder *observability.Recorder
	pool     *worker.Pool
	sweeper  *sweeper.Sweeper
	now      func() time.Time

	mu              sync.Mutex
	started         bool
	unregisterGauge func() error
}

// New creates an Engine over store. The store must implement lock.Locker
// unless WithLocker is given.
func New(store job.Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, drainq.ErrNoStore
	}

	eng := &Engine{
		cfg:      drainq.DefaultConfig(),
		store:    store,
		registry: job.NewRegistry(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(eng)
	}

	if err := eng.cfg.Validate(); err != nil {
		return nil, err
	}
	if eng.logger == nil {
		eng.logger = slog.Default()
	}
	if eng.locker == nil {
		l, ok := store.(lock.Locker)
		if !ok {
			return nil, drainq.ErrNoLocker
		}
		eng.locker = l
	}
	if eng.bo == nil {
		eng.bo = backoff.Default(eng.cfg.BaseDelay, eng.cfg.MaxDelay)
	}

	// Build tracing, metrics and recorder (custom providers or global).
	var tracingMw, metricsMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer(instrumentationName))
	} else {
		tracingMw = mw.Tracing()
	}
	if eng.meterProvider != nil {
		meter := eng.meterProvider.Meter(instrumentationName)
		metricsMw = mw.MetricsWithMeter(meter)
		eng.recorder = observability.NewRecorderWithMeter(meter)
	} else {
		metricsMw = mw.Metrics()
		eng.recorder = observability.NewRecorder()
	}

	// Default chain: tracing → metrics → logging → recover → custom → handler.
	// Recover is innermost so a panic is seen as an error by the others.
	allMws := make([]mw.Middleware, 0, 4+len(eng.mws))
	allMws = append(allMws, tracingMw, metricsMw, mw.Logging(eng.logger), mw.Recover(eng.logger))
	allMws = append(allMws, eng.mws...)

	executor := worker.NewExecutor(eng.registry, store, eng.bo, eng.cfg.MaxRetries, eng.recorder, eng.logger, allMws...)
	reaper := worker.NewReaper(store, eng.cfg.StuckJobTimeout, eng.cfg.StuckRecoveryInterval, eng.recorder, eng.logger)

	var poolOpts []worker.PoolOption
	if eng.registeredOnly {
		poolOpts = append(poolOpts, worker.WithIntentFilter(eng.registry.Intents))
	}
	if !eng.workerID.IsNil() {
		poolOpts = append(poolOpts, worker.WithWorkerID(eng.workerID))
	}
	eng.pool = worker.NewPool(store, eng.locker, executor, reaper, eng.cfg, eng.recorder, eng.logger, poolOpts...)
	eng.sweeper = sweeper.New(store, eng.pool, eng.cfg, eng.logger)

	return eng, nil
}

// Register registers a typed job definition with the engine.
func Register[T any](eng *Engine, def *job.Definition[T]) {
	job.RegisterDefinition(eng.registry, def)
}

// RegisterHandler registers h for intent, replacing any earlier handler.
func (eng *Engine) RegisterHandler(intent string, h job.HandlerFunc) {
	eng.registry.Register(intent, h)
}

// Start launches the worker pool and the sweeper, runs one sweep so tenants
// with work left from a previous process are drained, and registers the
// queue-size gauge.
func (eng *Engine) Start(ctx context.Context) error {
	eng.mu.Lock()
	defer eng.mu.Unlock()

	if eng.started {
		return nil
	}

	eng.pool.Start(ctx)

	if err := eng.sweeper.Start(ctx); err != nil {
		_ = eng.pool.Stop(ctx)
		return err
	}
	if _, err := eng.sweeper.Sweep(ctx); err != nil {
		eng.logger.Warn("initial sweep failed", slog.String("error", sanitize.Error(err)))
	}

	unregister, err := eng.recorder.ObserveQueueSize(eng.store.QueueSize)
	if err != nil {
		eng.logger.Warn("failed to register queue size gauge", slog.String("error", err.Error()))
	} else {
		eng.unregisterGauge = unregister
	}

	eng.started = true
	eng.logger.Info("drainq engine started",
		slog.String("worker_id", eng.pool.WorkerID().String()),
		slog.Int("workers", eng.cfg.Workers),
		slog.Int("batch_size", eng.cfg.BatchSize),
		slog.Int("max_retries", eng.cfg.MaxRetries),
	)
	return nil
}

// Stop shuts the engine down. It stops the sweeper, cancels every pending
// reschedule and waits for in-flight drains until ctx expires.
func (eng *Engine) Stop(ctx context.Context) error {
	eng.mu.Lock()
	unregister := eng.unregisterGauge
	eng.unregisterGauge = nil
	eng.mu.Unlock()

	var errs []error
	if err := eng.sweeper.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if unregister != nil {
		if err := unregister(); err != nil {
			eng.logger.Warn("failed to unregister queue size gauge", slog.String("error", err.Error()))
		}
	}
	if err := eng.pool.Stop(ctx); err != nil && !errors.Is(err, drainq.ErrPoolStopped) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Drain runs one drain for tenantID synchronously. Like an enqueue, it
// starts a fresh reschedule chain.
func (eng *Engine) Drain(ctx context.Context, tenantID string) worker.DrainResult {
	eng.pool.ResetChain(tenantID)
	return eng.pool.Drain(ctx, tenantID)
}

// QueueSize returns the number of queued and processing jobs across tenants.
func (eng *Engine) QueueSize(ctx context.Context) (int64, error) {
	return eng.store.QueueSize(ctx)
}

// DeadLetters returns up to limit failed jobs, newest first.
func (eng *Engine) DeadLetters(ctx context.Context, limit int) ([]*job.Job, error) {
	return eng.store.DeadLetters(ctx, limit)
}

// Job returns the job with the given ID.
func (eng *Engine) Job(ctx context.Context, jobID int64) (*job.Job, error) {
	return eng.store.GetJob(ctx, jobID)
}

// Ping checks the store when it supports it.
func (eng *Engine) Ping(ctx context.Context) error {
	if p, ok := eng.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Registry returns the handler registry.
func (eng *Engine) Registry() *job.Registry { return eng.registry }

// Pool returns the worker pool.
func (eng *Engine) Pool() *worker.Pool { return eng.pool }

// Config returns the engine's configuration.
func (eng *Engine) Config() drainq.Config { return eng.cfg }
