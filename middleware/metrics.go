package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/drainq/job"
)

// meterName is the instrumentation scope name for drainq metrics.
const meterName = "github.com/xraph/drainq"

// Metrics returns middleware that records per-job execution metrics using
// the global OTel MeterProvider.
//
// Instruments:
//   - drainq.job.duration (Float64Histogram): handler time in seconds
//   - drainq.job.executions (Int64Counter): total handler invocations
//
// Both carry the attributes intent and status ("ok" or "error"). Tenant is
// left out to keep cardinality bounded.
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// On error the API returns noop instruments.
	duration, _ := meter.Float64Histogram(
		"drainq.job.duration",
		metric.WithDescription("Duration of job handler execution in seconds"),
		metric.WithUnit("s"),
	)

	executions, _ := meter.Int64Counter(
		"drainq.job.executions",
		metric.WithDescription("Total number of job handler executions"),
		metric.WithUnit("{execution}"),
	)

	return func(ctx context.Context, j *job.Job, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("intent", j.Intent),
			attribute.String("status", status),
		)

		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)

		return err
	}
}
