package job

import (
	"encoding/json"
	"time"

	"github.com/xraph/drainq/id"
)

// Status represents the lifecycle status of a job.
type Status string

const (
	// StatusQueued means the job is waiting to be claimed.
	StatusQueued Status = "queued"
	// StatusProcessing means a drain has claimed the job and is running it.
	StatusProcessing Status = "processing"
	// StatusCompleted means the handler succeeded.
	StatusCompleted Status = "completed"
	// StatusFailed means retries are exhausted. Failed jobs are dead letters.
	StatusFailed Status = "failed"
)

// Terminal reports whether no further transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Active reports whether s counts towards the queue size.
func (s Status) Active() bool {
	return s == StatusQueued || s == StatusProcessing
}

// CanTransition reports whether from → to is an edge of the status DAG.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusQueued:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed || to == StatusQueued
	default:
		return false
	}
}

// Job is one persisted unit of work.
type Job struct {
	ID         int64           `json:"id"`
	TenantID   string          `json:"tenant_id"`
	Topic      string          `json:"topic"`
	Intent     string          `json:"intent"`
	Payload    json.RawMessage `json:"payload"`
	ExternalID string          `json:"external_id,omitempty"`
	OrderID    string          `json:"order_id,omitempty"`
	EventTime  *time.Time      `json:"event_time,omitempty"`
	Status     Status          `json:"status"`
	Attempts   int             `json:"attempts"`
	NextRunAt  *time.Time      `json:"next_run_at,omitempty"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Error      string          `json:"error,omitempty"`
	WorkerID   id.WorkerID     `json:"worker_id,omitzero"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Eligible reports whether j may be claimed at now.
func (j *Job) Eligible(now time.Time) bool {
	return j.Status == StatusQueued && (j.NextRunAt == nil || !j.NextRunAt.After(now))
}
