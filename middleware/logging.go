package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/drainq/job"
	"github.com/xraph/drainq/sanitize"
)

// Logging returns middleware that logs job start and outcome. Error text is
// sanitized before it is logged.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		logger.Debug("job started",
			slog.Int64("job_id", j.ID),
			slog.String("tenant_id", j.TenantID),
			slog.String("intent", j.Intent),
			slog.Int("attempts", j.Attempts),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Warn("job failed",
				slog.Int64("job_id", j.ID),
				slog.String("tenant_id", j.TenantID),
				slog.String("intent", j.Intent),
				slog.Duration("elapsed", elapsed),
				slog.String("error", sanitize.Error(err)),
			)
		} else {
			logger.Info("job completed",
				slog.Int64("job_id", j.ID),
				slog.String("tenant_id", j.TenantID),
				slog.String("intent", j.Intent),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
