package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/xraph/drainq"
	"github.com/xraph/drainq/id"
)

const envPrefix = "DRAINQ_"

// serviceConfig holds process settings that are not queue tunables.
type serviceConfig struct {
	DatabaseURL     string        `env:"DATABASE_URL,notEmpty"`
	RedisAddr       string        `env:"REDIS_ADDR"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	LockTTL         time.Duration `env:"LOCK_TTL" envDefault:"30s"`
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel        slog.Level    `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	WorkerID        string        `env:"WORKER_ID"`

	// workerID is WorkerID parsed; Nil when unset.
	workerID id.WorkerID
}

// loadConfig reads .env when present, then DRAINQ_-prefixed variables on
// top of the defaults.
func loadConfig() (serviceConfig, drainq.Config, error) {
	_ = godotenv.Load()

	opts := env.Options{Prefix: envPrefix}

	var svc serviceConfig
	if err := env.ParseWithOptions(&svc, opts); err != nil {
		return svc, drainq.Config{}, fmt.Errorf("service config: %w", err)
	}
	if svc.WorkerID != "" {
		wid, err := id.ParseWorkerID(svc.WorkerID)
		if err != nil {
			return svc, drainq.Config{}, fmt.Errorf("service config: worker id: %w", err)
		}
		svc.workerID = wid
	}

	cfg := drainq.DefaultConfig()
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return svc, cfg, fmt.Errorf("queue config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return svc, cfg, err
	}
	return svc, cfg, nil
}
