package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for drainq metrics.
const meterName = "github.com/xraph/drainq"

// Drain outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeSkipped   = "skipped"
	OutcomeLocked    = "locked"
	OutcomeError     = "error"
)

// Recorder holds the queue's lifecycle instruments.
// All methods are safe for concurrent use.
type Recorder struct {
	meter metric.Meter

	enqueued     metric.Int64Counter
	rejected     metric.Int64Counter
	completed    metric.Int64Counter
	retried      metric.Int64Counter
	deadLettered metric.Int64Counter
	recovered    metric.Int64Counter
	drainRuns    metric.Int64Counter
	rescheduled  metric.Int64Counter
}

// NewRecorder creates a Recorder using the global MeterProvider.
func NewRecorder() *Recorder {
	return NewRecorderWithMeter(otel.Meter(meterName))
}

// NewRecorderWithMeter creates a Recorder using the provided meter.
func NewRecorderWithMeter(meter metric.Meter) *Recorder {
	// On error the API returns noop instruments.
	counter := func(name, desc, unit string) metric.Int64Counter {
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		return c
	}

	return &Recorder{
		meter:        meter,
		enqueued:     counter("drainq.job.enqueued", "Jobs accepted by enqueue", "{job}"),
		rejected:     counter("drainq.job.rejected", "Enqueues refused before persistence", "{job}"),
		completed:    counter("drainq.job.completed", "Jobs whose handler succeeded", "{job}"),
		retried:      counter("drainq.job.retried", "Jobs returned to the queue after a failure", "{job}"),
		deadLettered: counter("drainq.job.dead_lettered", "Jobs failed after exhausting retries", "{job}"),
		recovered:    counter("drainq.job.recovered", "Stuck jobs returned to the queue", "{job}"),
		drainRuns:    counter("drainq.drain.runs", "Drain bursts by outcome", "{run}"),
		rescheduled:  counter("drainq.drain.rescheduled", "Drains scheduled because backlog remained", "{run}"),
	}
}

// ── Job lifecycle ───────────────────────────────────

// JobEnqueued counts an accepted job.
func (r *Recorder) JobEnqueued(ctx context.Context) { r.enqueued.Add(ctx, 1) }

// JobRejected counts a refused enqueue.
func (r *Recorder) JobRejected(ctx context.Context, reason string) {
	r.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// JobCompleted counts a successful handler run.
func (r *Recorder) JobCompleted(ctx context.Context) { r.completed.Add(ctx, 1) }

// JobRetried counts a job returned to the queue.
func (r *Recorder) JobRetried(ctx context.Context) { r.retried.Add(ctx, 1) }

// JobDeadLettered counts a job that exhausted its retries.
func (r *Recorder) JobDeadLettered(ctx context.Context) { r.deadLettered.Add(ctx, 1) }

// JobsRecovered counts stuck jobs returned to the queue.
func (r *Recorder) JobsRecovered(ctx context.Context, n int64) {
	if n > 0 {
		r.recovered.Add(ctx, n)
	}
}

// ── Drain lifecycle ─────────────────────────────────

// DrainRun counts a drain burst by outcome.
func (r *Recorder) DrainRun(ctx context.Context, outcome string) {
	r.drainRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// DrainRescheduled counts a backlog reschedule.
func (r *Recorder) DrainRescheduled(ctx context.Context) { r.rescheduled.Add(ctx, 1) }

// ── Gauges ──────────────────────────────────────────

// ObserveQueueSize registers an observable gauge that reports size on every
// collection. The returned function unregisters it.
func (r *Recorder) ObserveQueueSize(size func(ctx context.Context) (int64, error)) (func() error, error) {
	gauge, err := r.meter.Int64ObservableGauge("drainq.queue.size",
		metric.WithDescription("Queued and processing jobs across tenants"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, err
	}

	reg, err := r.meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		n, err := size(ctx)
		if err != nil {
			return err
		}
		o.ObserveInt64(gauge, n)
		return nil
	}, gauge)
	if err != nil {
		return nil, err
	}
	return reg.Unregister, nil
}
