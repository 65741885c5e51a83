package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/drainq/job"
	"github.com/xraph/drainq/sanitize"
)

// Recover returns middleware that recovers from panics in the handler chain.
// Panics are converted to errors and logged with a stack trace.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("job handler panicked",
					slog.Int64("job_id", j.ID),
					slog.String("intent", j.Intent),
					slog.String("panic", sanitize.Message(fmt.Sprint(r))),
					slog.String("stack", string(debug.Stack())),
				)
				retErr = fmt.Errorf("panic in handler for intent %q: %v", j.Intent, r)
			}
		}()
		return next(ctx)
	}
}
