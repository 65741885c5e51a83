package drainq

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Config holds the queue tunables. It is read once at startup.
//
// Fields are tagged for github.com/caarlos0/env; cmd/drainq parses them with
// the DRAINQ_ prefix on top of DefaultConfig.
type Config struct {
	// MaxRetries is the number of retries after the first failure. A job
	// is dead-lettered on its MaxRetries+1-th failure.
	MaxRetries int `env:"MAX_RETRIES"`

	// BaseDelay and MaxDelay bound the retry backoff.
	BaseDelay time.Duration `env:"BASE_DELAY"`
	MaxDelay  time.Duration `env:"MAX_DELAY"`

	// BatchSize is the maximum number of jobs one drain burst claims.
	BatchSize int `env:"BATCH_SIZE"`

	// PendingCooldown* shape the delay before a tenant with remaining
	// backlog is drained again.
	PendingCooldownBase      time.Duration `env:"PENDING_COOLDOWN_BASE"`
	PendingCooldownIncrement time.Duration `env:"PENDING_COOLDOWN_INCREMENT"`
	PendingCooldownMax       time.Duration `env:"PENDING_COOLDOWN_MAX"`

	// StuckJobTimeout is how long a job may stay processing before the
	// reaper returns it to the queue.
	StuckJobTimeout time.Duration `env:"STUCK_JOB_TIMEOUT"`

	// StuckRecoveryInterval is the minimum time between reaper passes for
	// one tenant.
	StuckRecoveryInterval time.Duration `env:"STUCK_RECOVERY_INTERVAL"`

	// MaxRescheduleDepth caps consecutive self-reschedules per tenant.
	MaxRescheduleDepth int `env:"MAX_RESCHEDULE_DEPTH"`

	// MaxPayloadBytes is the largest accepted serialized payload.
	MaxPayloadBytes int `env:"MAX_PAYLOAD_BYTES"`

	// Workers is the number of goroutines serving the tenant work queue.
	Workers int `env:"WORKERS"`

	// SweepSchedule is a cron expression or descriptor for the sweeper.
	SweepSchedule string `env:"SWEEP_SCHEDULE"`

	// SweepLimit bounds the tenants woken per sweep.
	SweepLimit int `env:"SWEEP_LIMIT"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:               3,
		BaseDelay:                1 * time.Second,
		MaxDelay:                 5 * time.Minute,
		BatchSize:                10,
		PendingCooldownBase:      1 * time.Second,
		PendingCooldownIncrement: 500 * time.Millisecond,
		PendingCooldownMax:       30 * time.Second,
		StuckJobTimeout:          10 * time.Minute,
		StuckRecoveryInterval:    1 * time.Minute,
		MaxRescheduleDepth:       100,
		MaxPayloadBytes:          64 * 1024,
		Workers:                  4,
		SweepSchedule:            "@every 30s",
		SweepLimit:               500,
	}
}

// ScheduleParser parses SweepSchedule. It accepts standard 5-field
// expressions and descriptors such as "@every 30s".
var ScheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	switch {
	case c.MaxRetries < 0:
		return fmt.Errorf("%w: max retries must be >= 0", ErrInvalidConfig)
	case c.BaseDelay <= 0:
		return fmt.Errorf("%w: base delay must be positive", ErrInvalidConfig)
	case c.MaxDelay < c.BaseDelay:
		return fmt.Errorf("%w: max delay must be >= base delay", ErrInvalidConfig)
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidConfig)
	case c.PendingCooldownBase < 0, c.PendingCooldownIncrement < 0:
		return fmt.Errorf("%w: pending cooldown must be >= 0", ErrInvalidConfig)
	case c.PendingCooldownMax < c.PendingCooldownBase:
		return fmt.Errorf("%w: pending cooldown max must be >= base", ErrInvalidConfig)
	case c.StuckJobTimeout <= 0:
		return fmt.Errorf("%w: stuck job timeout must be positive", ErrInvalidConfig)
	case c.StuckRecoveryInterval <= 0:
		return fmt.Errorf("%w: stuck recovery interval must be positive", ErrInvalidConfig)
	case c.MaxRescheduleDepth <= 0:
		return fmt.Errorf("%w: max reschedule depth must be positive", ErrInvalidConfig)
	case c.MaxPayloadBytes <= 0:
		return fmt.Errorf("%w: max payload bytes must be positive", ErrInvalidConfig)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	case c.SweepLimit <= 0:
		return fmt.Errorf("%w: sweep limit must be positive", ErrInvalidConfig)
	}
	if c.SweepSchedule != "" {
		if _, err := ScheduleParser.Parse(c.SweepSchedule); err != nil {
			return fmt.Errorf("%w: sweep schedule %q: %v", ErrInvalidConfig, c.SweepSchedule, err)
		}
	}
	return nil
}
