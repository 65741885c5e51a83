package engine

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/drainq"
	"github.com/xraph/drainq/backoff"
	"github.com/xraph/drainq/id"
	"github.com/xraph/drainq/lock"
	mw "github.com/xraph/drainq/middleware"
)

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the queue tunables. The config is validated by New.
func WithConfig(cfg drainq.Config) Option {
	return func(eng *Engine) { eng.cfg = cfg }
}

// WithLogger sets the logger for the engine and its subsystems.
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) { eng.logger = l }
}

// WithLocker sets the tenant Locker. If not set, the store is used when it
// implements lock.Locker.
func WithLocker(l lock.Locker) Option {
	return func(eng *Engine) { eng.locker = l }
}

// WithBackoff sets the retry backoff strategy.
// If not set, jittered exponential backoff bounded by BaseDelay and
// MaxDelay is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) { eng.bo = b }
}

// WithMiddleware adds middleware inside the default chain.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) { eng.mws = append(eng.mws, m) }
}

// WithTracerProvider sets a custom OTel TracerProvider.
// If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) { eng.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider for both the metrics
// middleware and the queue recorder.
// If not set, the global otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) { eng.meterProvider = mp }
}

// WithWorkerID fixes the worker ID recorded on claimed jobs. If not set, a
// new one is generated per engine.
func WithWorkerID(wid id.WorkerID) Option {
	return func(eng *Engine) { eng.workerID = wid }
}

// WithRegisteredIntentsOnly restricts claims to intents with a registered
// handler. Jobs for other intents stay queued for processes that can run
// them.
func WithRegisteredIntentsOnly() Option {
	return func(eng *Engine) { eng.registeredOnly = true }
}
