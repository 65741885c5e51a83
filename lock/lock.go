// Package lock provides tenant-keyed, non-blocking exclusive locks.
//
// Every tenant maps to a numeric key through [Key]. A [Locker] runs a
// callback while holding the key and always releases it afterwards, even
// when the callback panics. Lockers never wait: if the key is held
// elsewhere, WithLock returns immediately without running the callback.
//
// Keys may collide between tenants. A collision only delays the other
// tenant's drain; the store's conditional claim keeps processing correct.
package lock

import (
	"context"
	"hash/fnv"
)

const (
	// KeyOffset is the start of the key range reserved for drainq.
	KeyOffset = 1_000_000_000

	// KeySpan is the size of the reserved range.
	KeySpan = 100_000_000
)

// Key returns the lock key for a tenant: KeyOffset + fnv32a(tenantID) % KeySpan.
// The result always fits in a positive int32.
func Key(tenantID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(tenantID))
	return KeyOffset + h.Sum32()%KeySpan
}

// Locker runs callbacks under an exclusive key.
type Locker interface {
	// WithLock tries to take key without blocking. If it succeeds it runs
	// fn, releases key, and returns (true, fn's error). If the key is held
	// elsewhere it returns (false, nil). A failure to talk to the lock
	// backend returns (false, err).
	WithLock(ctx context.Context, key uint32, fn func(ctx context.Context) error) (bool, error)
}
