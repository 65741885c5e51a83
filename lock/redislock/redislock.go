// Package redislock implements lock.Locker on Redis.
//
// A lock is a key set with SET NX PX holding a random token. The TTL is
// refreshed while the callback runs, and release deletes the key only if it
// still holds our token. If the process dies the key expires after the TTL.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	locker := redislock.New(client, redislock.WithTTL(30*time.Second))
package redislock

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/xraph/drainq/lock"
)

// Compile-time interface check.
var _ lock.Locker = (*Locker)(nil)

// DefaultTTL is the lock lifetime when none is configured.
const DefaultTTL = 30 * time.Second

const keyPrefix = "drainq:lock:"

// lockKey returns the Redis key for a lock: drainq:lock:{key}
func lockKey(key uint32) string { return keyPrefix + strconv.FormatUint(uint64(key), 10) }

var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// Option configures the Locker.
type Option func(*Locker)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Locker) { r.logger = l }
}

// WithTTL sets the lock lifetime. The lock is refreshed every TTL/3.
func WithTTL(ttl time.Duration) Option {
	return func(r *Locker) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// Locker is a Redis-backed lock.Locker.
type Locker struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

// New creates a Locker. The caller owns the Redis client lifecycle.
func New(client redis.Cmdable, opts ...Option) *Locker {
	r := &Locker{client: client, ttl: DefaultTTL, logger: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// WithLock implements lock.Locker.
func (r *Locker) WithLock(ctx context.Context, key uint32, fn func(ctx context.Context) error) (bool, error) {
	k := lockKey(key)
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, k, token, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("drainq/redislock: acquire: %w", err)
	}
	if !ok {
		return false, nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.refresh(k, token, stop, done)

	defer func() {
		close(stop)
		<-done
		r.release(k, token)
	}()

	return true, fn(ctx)
}

func (r *Locker) refresh(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.ttl/3)
			n, err := refreshScript.Run(ctx, r.client, []string{key}, token, r.ttl.Milliseconds()).Int64()
			cancel()
			switch {
			case err != nil:
				r.logger.Warn("redislock: refresh failed",
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
			case n == 0:
				r.logger.Error("redislock: lock lost before release", slog.String("key", key))
				return
			}
		}
	}
}

// release uses a fresh context so a cancelled drain still frees the key.
func (r *Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil {
		r.logger.Warn("redislock: release failed, key will expire",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
