package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xraph/drainq"
	"github.com/xraph/drainq/job"
	"github.com/xraph/drainq/sanitize"
)

// EnqueueRequest describes a job to enqueue.
type EnqueueRequest struct {
	TenantID string
	Topic    string
	Intent   string

	// Payload is marshalled with encoding/json and must encode to a JSON
	// object.
	Payload any

	// ExternalID, when set, rejects the request if any job with the same
	// tenant, topic and external ID exists.
	ExternalID string

	// OrderID, when set, rejects the request if a queued or processing job
	// with the same tenant, topic and order ID exists.
	OrderID string

	EventTime *time.Time

	// Handler is registered for Intent if no handler is registered yet.
	Handler job.HandlerFunc
}

// Enqueue submits req and logs any rejection. It never returns an error to
// the caller.
func (eng *Engine) Enqueue(ctx context.Context, req EnqueueRequest) {
	if _, err := eng.Submit(ctx, req); err != nil {
		eng.logger.Warn("enqueue rejected",
			slog.String("tenant_id", req.TenantID),
			slog.String("topic", req.Topic),
			slog.String("intent", req.Intent),
			slog.String("error", sanitize.Error(err)),
		)
	}
}

// Submit validates and persists req, then triggers a drain for the tenant.
// Rejections wrap drainq.ErrMissingTenant, ErrInvalidPayload,
// ErrPayloadTooLarge or ErrDuplicateJob and persist nothing.
func (eng *Engine) Submit(ctx context.Context, req EnqueueRequest) (*job.Job, error) {
	j, err := eng.submit(ctx, req)
	if err != nil {
		eng.recorder.JobRejected(ctx, rejectReason(err))
		return nil, err
	}

	eng.recorder.JobEnqueued(ctx)
	eng.pool.Trigger(j.TenantID)
	return j, nil
}

func (eng *Engine) submit(ctx context.Context, req EnqueueRequest) (*job.Job, error) {
	tenantID := strings.TrimSpace(req.TenantID)
	if tenantID == "" {
		return nil, drainq.ErrMissingTenant
	}

	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", drainq.ErrInvalidPayload, err)
	}
	if !isJSONObject(payload) {
		return nil, fmt.Errorf("%w: payload must be a JSON object", drainq.ErrInvalidPayload)
	}
	if len(payload) > eng.cfg.MaxPayloadBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d",
			drainq.ErrPayloadTooLarge, len(payload), eng.cfg.MaxPayloadBytes)
	}

	if req.ExternalID != "" {
		exists, err := eng.store.ExistsByExternalID(ctx, tenantID, req.Topic, req.ExternalID)
		if err != nil {
			return nil, fmt.Errorf("check external id: %w", err)
		}
		if exists {
			return nil, fmt.Errorf("%w: external id %q", drainq.ErrDuplicateJob, req.ExternalID)
		}
	}
	if req.OrderID != "" {
		exists, err := eng.store.ExistsActiveByOrderID(ctx, tenantID, req.Topic, req.OrderID)
		if err != nil {
			return nil, fmt.Errorf("check order id: %w", err)
		}
		if exists {
			return nil, fmt.Errorf("%w: order id %q already active", drainq.ErrDuplicateJob, req.OrderID)
		}
	}

	now := eng.now().UTC()
	j := &job.Job{
		TenantID:   tenantID,
		Topic:      req.Topic,
		Intent:     req.Intent,
		Payload:    payload,
		ExternalID: req.ExternalID,
		OrderID:    req.OrderID,
		EventTime:  req.EventTime,
		Status:     job.StatusQueued,
		NextRunAt:  &now,
	}
	if err := eng.store.InsertJob(ctx, j); err != nil {
		return nil, err
	}

	if req.Handler != nil && eng.registry.RegisterFallback(req.Intent, req.Handler) {
		eng.logger.Warn("registered handler supplied at enqueue; register it at startup instead",
			slog.String("intent", req.Intent),
		)
	}
	return j, nil
}

func isJSONObject(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == '{'
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, drainq.ErrMissingTenant):
		return "missing_tenant"
	case errors.Is(err, drainq.ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, drainq.ErrPayloadTooLarge):
		return "payload_too_large"
	case errors.Is(err, drainq.ErrDuplicateJob):
		return "duplicate"
	default:
		return "store_error"
	}
}
