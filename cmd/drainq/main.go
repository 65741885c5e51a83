// Command drainq runs the queue workers and the introspection API against
// Postgres, optionally taking tenant locks in Redis.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/drainq/api"
	"github.com/xraph/drainq/engine"
	"github.com/xraph/drainq/lock/redislock"
	"github.com/xraph/drainq/sanitize"
	"github.com/xraph/drainq/store/postgres"
)

func main() {
	if err := run(); err != nil {
		slog.Error("drainq exited", slog.String("error", sanitize.Error(err)))
		os.Exit(1)
	}
}

func run() error {
	svc, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: svc.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.New(ctx, svc.DatabaseURL, postgres.WithLogger(logger))
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	opts := []engine.Option{
		engine.WithConfig(cfg),
		engine.WithLogger(logger),
		engine.WithRegisteredIntentsOnly(),
	}
	if !svc.workerID.IsNil() {
		opts = append(opts, engine.WithWorkerID(svc.workerID))
	}

	if svc.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: svc.RedisAddr, Password: svc.RedisPassword})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		opts = append(opts, engine.WithLocker(redislock.New(rdb,
			redislock.WithTTL(svc.LockTTL),
			redislock.WithLogger(logger),
		)))
		logger.Info("using redis tenant locks", slog.String("addr", svc.RedisAddr))
	}

	eng, err := engine.New(store, opts...)
	if err != nil {
		return err
	}
	registerHandlers(eng, logger)

	srv := &http.Server{
		Addr:              svc.HTTPAddr,
		Handler:           api.New(eng, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return eng.Start(gctx)
	})

	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", svc.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), svc.ShutdownTimeout)
		defer cancel()

		return errors.Join(
			srv.Shutdown(shutdownCtx),
			eng.Stop(shutdownCtx),
		)
	})

	return g.Wait()
}

// registerHandlers installs the handlers this binary serves.
func registerHandlers(eng *engine.Engine, logger *slog.Logger) {
	eng.RegisterHandler("audit.log", func(_ context.Context, payload json.RawMessage) error {
		logger.Info("audit event", slog.String("payload", string(payload)))
		return nil
	})
}
