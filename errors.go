package drainq

import "errors"

var (
	// Store errors.
	ErrNoStore  = errors.New("drainq: no store configured")
	ErrNoLocker = errors.New("drainq: no locker configured")

	// Not found errors.
	ErrJobNotFound = errors.New("drainq: job not found")

	// State errors.
	ErrInvalidTransition = errors.New("drainq: invalid status transition")
	ErrPoolStopped       = errors.New("drainq: pool stopped")

	// Enqueue rejections.
	ErrMissingTenant   = errors.New("drainq: missing tenant")
	ErrInvalidPayload  = errors.New("drainq: invalid payload")
	ErrPayloadTooLarge = errors.New("drainq: payload too large")
	ErrDuplicateJob    = errors.New("drainq: duplicate job")

	// Execution errors.
	ErrNoHandler = errors.New("drainq: no handler registered")

	// Configuration errors.
	ErrInvalidConfig = errors.New("drainq: invalid config")
)
