// Package api serves the drainq introspection HTTP API: queue size, dead
// letters, job lookup, manual tenant drains, and a health check.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/drainq/job"
	"github.com/xraph/drainq/worker"
)

// Queue is the engine surface the API reads. *engine.Engine satisfies it.
type Queue interface {
	QueueSize(ctx context.Context) (int64, error)
	DeadLetters(ctx context.Context, limit int) ([]*job.Job, error)
	Job(ctx context.Context, jobID int64) (*job.Job, error)
	Drain(ctx context.Context, tenantID string) worker.DrainResult
	Ping(ctx context.Context) error
}

// API wires the HTTP handlers together.
type API struct {
	q      Queue
	logger *slog.Logger
}

// New creates an API over q.
func New(q Queue, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{q: q, logger: logger}
}

// Handler returns a router with all routes registered.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	a.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers the API routes on r.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", a.health)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/stats", a.stats)
		r.Get("/dead-letters", a.listDeadLetters)
		r.Get("/jobs/{jobID}", a.getJob)
		r.Post("/tenants/{tenantID}/drain", a.drainTenant)
	})
}
