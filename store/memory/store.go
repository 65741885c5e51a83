// Package memory implements store.Store in process memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/drainq"
	"github.com/xraph/drainq/id"
	"github.com/xraph/drainq/job"
	"github.com/xraph/drainq/lock"
	"github.com/xraph/drainq/store"
)

// Compile-time interface checks.
var (
	_ store.Store = (*Store)(nil)
	_ job.Store   = (*Store)(nil)
	_ lock.Locker = (*Store)(nil)
)

// Option configures the Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Store) { m.now = now }
}

// Store is a fully in-memory implementation of store.Store and lock.Locker.
// Safe for concurrent access. Intended for unit testing and development.
type Store struct {
	mu     sync.RWMutex
	jobs   map[int64]*job.Job
	nextID int64

	locks *lock.Local
	now   func() time.Time
}

// New returns a new empty Store.
func New(opts ...Option) *Store {
	m := &Store{
		jobs:  make(map[int64]*job.Job),
		locks: lock.NewLocal(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// WithLock implements lock.Locker with an in-process lock.
func (m *Store) WithLock(ctx context.Context, key uint32, fn func(ctx context.Context) error) (bool, error) {
	return m.locks.WithLock(ctx, key, fn)
}

// ──────────────────────────────────────────────────
// Job Store
// ──────────────────────────────────────────────────

// InsertJob persists a new queued job and assigns its ID.
func (m *Store) InsertJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if j.ExternalID != "" {
		for _, existing := range m.jobs {
			if existing.TenantID == j.TenantID && existing.Topic == j.Topic && existing.ExternalID == j.ExternalID {
				return drainq.ErrDuplicateJob
			}
		}
	}

	now := m.now().UTC()
	m.nextID++
	j.ID = m.nextID
	j.Status = job.StatusQueued
	j.CreatedAt = now
	j.UpdatedAt = now

	cp := *j
	m.jobs[j.ID] = &cp
	return nil
}

// GetJob retrieves a job by ID.
func (m *Store) GetJob(_ context.Context, jobID int64) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return nil, drainq.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

// ExistsByExternalID reports whether any job carries the key.
func (m *Store) ExistsByExternalID(_ context.Context, tenantID, topic, externalID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, j := range m.jobs {
		if j.TenantID == tenantID && j.Topic == topic && j.ExternalID == externalID {
			return true, nil
		}
	}
	return false, nil
}

// ExistsActiveByOrderID reports whether a queued or processing job carries
// the key.
func (m *Store) ExistsActiveByOrderID(_ context.Context, tenantID, topic, orderID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, j := range m.jobs {
		if j.TenantID == tenantID && j.Topic == topic && j.OrderID == orderID && j.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

// ClaimNext moves the oldest eligible job of the tenant to processing.
// Ordering: NextRunAt ascending with nil first, then ID ascending.
func (m *Store) ClaimNext(_ context.Context, tenantID string, opts job.ClaimOpts, workerID id.WorkerID) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()

	var best *job.Job
	for _, j := range m.jobs {
		if j.TenantID != tenantID || !j.Eligible(now) || !opts.Matches(j.Intent) ||
			!job.CanTransition(j.Status, job.StatusProcessing) {
			continue
		}
		if best == nil || claimsBefore(j, best) {
			best = j
		}
	}
	if best == nil {
		return nil, nil //nolint:nilnil // no eligible job
	}

	best.Status = job.StatusProcessing
	best.StartedAt = &now
	best.WorkerID = workerID
	best.UpdatedAt = now

	cp := *best
	return &cp, nil
}

func claimsBefore(a, b *job.Job) bool {
	switch {
	case a.NextRunAt == nil && b.NextRunAt != nil:
		return true
	case a.NextRunAt != nil && b.NextRunAt == nil:
		return false
	case a.NextRunAt != nil && !a.NextRunAt.Equal(*b.NextRunAt):
		return a.NextRunAt.Before(*b.NextRunAt)
	}
	return a.ID < b.ID
}

// CompleteJob marks a processing job completed.
func (m *Store) CompleteJob(_ context.Context, jobID int64) error {
	return m.finish(jobID, job.StatusCompleted, func(j *job.Job, now time.Time) {
		j.Status = job.StatusCompleted
		j.FinishedAt = &now
	})
}

// RetryJob returns a processing job to queued.
func (m *Store) RetryJob(_ context.Context, jobID int64, attempts int, nextRunAt time.Time, errMsg string) error {
	return m.finish(jobID, job.StatusQueued, func(j *job.Job, _ time.Time) {
		next := nextRunAt.UTC()
		j.Status = job.StatusQueued
		j.Attempts = attempts
		j.NextRunAt = &next
		j.Error = errMsg
		j.StartedAt = nil
		j.FinishedAt = nil
		j.WorkerID = id.Nil
	})
}

// FailJob marks a processing job failed.
func (m *Store) FailJob(_ context.Context, jobID int64, errMsg string) error {
	return m.finish(jobID, job.StatusFailed, func(j *job.Job, now time.Time) {
		j.Status = job.StatusFailed
		j.Error = errMsg
		j.FinishedAt = &now
	})
}

// finish applies update to a job whose status may move to target.
func (m *Store) finish(jobID int64, target job.Status, update func(j *job.Job, now time.Time)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return drainq.ErrJobNotFound
	}
	if !job.CanTransition(j.Status, target) {
		return drainq.ErrInvalidTransition
	}
	now := m.now().UTC()
	update(j, now)
	j.UpdatedAt = now
	return nil
}

// RecoverStuckJobs returns stale processing jobs of the tenant to queued.
func (m *Store) RecoverStuckJobs(_ context.Context, tenantID string, startedBefore time.Time, note string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	var n int64
	for _, j := range m.jobs {
		if j.TenantID != tenantID || !job.CanTransition(j.Status, job.StatusQueued) {
			continue
		}
		if j.StartedAt == nil || !j.StartedAt.Before(startedBefore) {
			continue
		}
		j.Status = job.StatusQueued
		j.StartedAt = nil
		j.WorkerID = id.Nil
		j.Error = note
		j.UpdatedAt = now
		n++
	}
	return n, nil
}

// CountQueued returns the tenant's queued jobs matching opts.
func (m *Store) CountQueued(_ context.Context, tenantID string, opts job.ClaimOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, j := range m.jobs {
		if j.TenantID == tenantID && j.Status == job.StatusQueued && opts.Matches(j.Intent) {
			n++
		}
	}
	return n, nil
}

// QueueSize returns the number of queued and processing jobs.
func (m *Store) QueueSize(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, j := range m.jobs {
		if j.Status.Active() {
			n++
		}
	}
	return n, nil
}

// DeadLetters returns up to limit failed jobs, newest first. A limit of
// zero or less returns all of them.
func (m *Store) DeadLetters(_ context.Context, limit int) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*job.Job
	for _, j := range m.jobs {
		if j.Status == job.StatusFailed {
			cp := *j
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, k int) bool {
		fi, fk := finishedAt(result[i]), finishedAt(result[k])
		if !fi.Equal(fk) {
			return fi.After(fk)
		}
		return result[i].ID > result[k].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func finishedAt(j *job.Job) time.Time {
	if j.FinishedAt == nil {
		return time.Time{}
	}
	return *j.FinishedAt
}

// TenantsNeedingAttention returns tenants with due queued jobs or stale
// processing jobs, sorted by name.
func (m *Store) TenantsNeedingAttention(_ context.Context, stuckBefore time.Time, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now().UTC()
	seen := make(map[string]struct{})
	for _, j := range m.jobs {
		due := j.Eligible(now)
		stuck := j.Status == job.StatusProcessing && j.StartedAt != nil && j.StartedAt.Before(stuckBefore)
		if due || stuck {
			seen[j.TenantID] = struct{}{}
		}
	}

	tenants := make([]string, 0, len(seen))
	for t := range seen {
		tenants = append(tenants, t)
	}
	sort.Strings(tenants)

	if limit > 0 && len(tenants) > limit {
		tenants = tenants[:limit]
	}
	return tenants, nil
}
