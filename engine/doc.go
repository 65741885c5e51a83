// Package engine wires the drainq subsystems together and provides the
// application-level API: register handlers, enqueue jobs, and run the
// worker pool and sweeper.
//
// The engine sits above the job, worker, lock and store packages. The root
// drainq package only holds configuration and errors so every subsystem
// can import it.
//
// # Building an Engine
//
//	s, err := postgres.New(ctx, databaseURL)
//	if err != nil {
//	    return err
//	}
//	if err := s.Migrate(ctx); err != nil {
//	    return err
//	}
//
//	eng, err := engine.New(s,
//	    engine.WithConfig(cfg),
//	    engine.WithLogger(logger),
//	)
//
// The Postgres and memory stores provide their own tenant locks. Pass
// engine.WithLocker to use another Locker, such as redislock.
//
// # Registering Handlers
//
//	engine.Register(eng, job.NewDefinition("orders.paid", func(ctx context.Context, p OrderPaid) error {
//	    return fulfil(ctx, p)
//	}))
//
// # Enqueuing Jobs
//
//	eng.Enqueue(ctx, engine.EnqueueRequest{
//	    TenantID:   "acme.myshopify.com",
//	    Topic:      "orders/paid",
//	    Intent:     "orders.paid",
//	    Payload:    OrderPaid{ID: "1001"},
//	    ExternalID: webhookID,
//	})
//
// Enqueue never fails the caller; rejections are logged and counted. Use
// Submit to receive the job or the rejection reason.
//
// # Lifecycle
//
//	eng.Start(ctx)
//	defer eng.Stop(shutdownCtx)
//
// Stop cancels pending reschedules and waits for in-flight drains. Jobs
// left queued are picked up by the next process to start.
package engine
