package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// unlockTimeout bounds the advisory unlock after the callback returns.
const unlockTimeout = 5 * time.Second

// WithLock implements lock.Locker with a session-level advisory lock held
// on one pooled connection for the duration of fn. If the unlock fails the
// connection is closed, which drops the session and its lock.
func (s *Store) WithLock(ctx context.Context, key uint32, fn func(ctx context.Context) error) (bool, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("drainq/postgres: acquire conn: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, int64(key)).Scan(&acquired); err != nil {
		conn.Release()
		return false, fmt.Errorf("drainq/postgres: try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return false, nil
	}

	defer func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
		defer cancel()

		var released bool
		err := conn.QueryRow(unlockCtx, `SELECT pg_advisory_unlock($1)`, int64(key)).Scan(&released)
		if err == nil && released {
			conn.Release()
			return
		}

		s.logger.Warn("advisory unlock failed, closing connection",
			slog.Int64("lock_key", int64(key)),
			slog.Any("error", err),
		)
		_ = conn.Hijack().Close(unlockCtx)
	}()

	return true, fn(ctx)
}
