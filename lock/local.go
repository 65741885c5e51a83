package lock

import (
	"context"
	"sync"
)

// Local is an in-process Locker. It excludes goroutines of one process only
// and is meant for the memory store and tests.
type Local struct {
	mu   sync.Mutex
	held map[uint32]struct{}
}

// NewLocal creates an empty in-process locker.
func NewLocal() *Local {
	return &Local{held: make(map[uint32]struct{})}
}

// WithLock implements Locker.
func (l *Local) WithLock(ctx context.Context, key uint32, fn func(ctx context.Context) error) (bool, error) {
	if !l.tryAcquire(key) {
		return false, nil
	}
	defer l.release(key)
	return true, fn(ctx)
}

// Held reports whether key is currently held.
func (l *Local) Held(key uint32) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}

func (l *Local) tryAcquire(key uint32) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return false
	}
	l.held[key] = struct{}{}
	return true
}

func (l *Local) release(key uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
}
