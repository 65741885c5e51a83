// Package backoff provides retry delay strategies for failed jobs.
// All strategies are safe for concurrent use (they are stateless).
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before the next attempt.
type Strategy interface {
	// Delay returns how long to wait after a failure, given the number of
	// failed attempts recorded before this one (0 for the first failure).
	Delay(attempts int) time.Duration
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant always returns the same delay regardless of attempt count.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// Exponential with additive jitter
// ──────────────────────────────────────────────────

// Exponential doubles the delay each attempt and adds up to one Base of
// uniform jitter so that retries for many jobs spread out.
//
//	Delay = min(Max, Base * 2^attempts + jitter), jitter in [0, Base)
//
// A zero Max leaves the delay uncapped; it still saturates instead of
// overflowing.
type Exponential struct {
	Base time.Duration
	Max  time.Duration
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(base, maxDelay time.Duration) *Exponential {
	return &Exponential{Base: base, Max: maxDelay}
}

// Delay returns min(Max, Base*2^attempts + jitter).
func (e *Exponential) Delay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	limit := e.Max
	if limit <= 0 {
		limit = math.MaxInt64
	}
	if e.Base <= 0 {
		return 0
	}

	// Base << attempts overflows once Base exceeds MaxInt64 >> attempts.
	if attempts >= 63 || e.Base > time.Duration(math.MaxInt64>>attempts) {
		return limit
	}
	d := e.Base << attempts
	if d >= limit {
		return limit
	}

	jitter := rand.N(e.Base) //nolint:gosec // jitter intentionally uses non-crypto rand
	if d > limit-jitter {
		return limit
	}
	return d + jitter
}

// ──────────────────────────────────────────────────
// Default
// ──────────────────────────────────────────────────

// Default returns the strategy used by the engine for the configured
// base and max delay.
func Default(base, maxDelay time.Duration) Strategy {
	return NewExponential(base, maxDelay)
}
