package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/drainq/job"
	"github.com/xraph/drainq/sanitize"
)

// tracerName is the instrumentation scope name for drainq tracing.
const tracerName = "github.com/xraph/drainq"

// Tracing returns middleware that wraps job execution in an OpenTelemetry
// span using the global TracerProvider.
//
// Span attributes include: drainq.job.id, drainq.tenant_id, drainq.topic,
// drainq.intent, drainq.attempts. On error, the span status is set to
// codes.Error with the sanitized error message.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		ctx, span := tracer.Start(ctx, "drainq.job.execute",
			trace.WithAttributes(
				attribute.Int64("drainq.job.id", j.ID),
				attribute.String("drainq.tenant_id", j.TenantID),
				attribute.String("drainq.topic", j.Topic),
				attribute.String("drainq.intent", j.Intent),
				attribute.Int("drainq.attempts", j.Attempts),
			),
			trace.WithSpanKind(trace.SpanKindConsumer),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			msg := sanitize.Error(err)
			span.RecordError(err, trace.WithAttributes(attribute.String("drainq.error", msg)))
			span.SetStatus(codes.Error, msg)
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
