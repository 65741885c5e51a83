// Package drainq provides a persistent, multi-tenant, at-least-once job queue
// for inbound event notifications.
//
// Jobs are persisted before any work happens. Each tenant is drained in short
// bounded bursts under an exclusive tenant lock, so events for one tenant are
// processed one at a time while different tenants proceed in parallel.
// Failed jobs are retried with jittered exponential backoff and end up as
// dead letters once retries are exhausted.
//
// # Quick Start
//
//	st, err := postgres.New(ctx, os.Getenv("DATABASE_URL"))
//	eng, err := engine.New(st,
//	    engine.WithConfig(drainq.DefaultConfig()),
//	    engine.WithLogger(logger),
//	)
//	eng.RegisterHandler("orders.paid", handleOrderPaid)
//	eng.Start(ctx)
//	eng.Enqueue(ctx, engine.EnqueueRequest{
//	    TenantID: "acme.example.com",
//	    Topic:    "orders/paid",
//	    Intent:   "orders.paid",
//	    Payload:  body,
//	})
//
// # Architecture
//
// The job store is the only durable state. The store claims exactly one row
// at a time with a conditional update, which remains the correctness
// guarantee even when tenant locks collide or expire. Everything else
// (draining set, reschedule timers, reaper limiters) is per-process and is
// rebuilt on restart by the sweeper.
package drainq
