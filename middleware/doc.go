// Package middleware provides composable middleware for job execution.
//
// A [Middleware] wraps a job handler. Middleware are composed with [Chain]
// and run around every handler invocation inside a drain. The first
// middleware in the slice is the outermost wrapper.
//
//	// tracing → metrics → logging → recover → handler
//	chain := middleware.Chain(
//	    middleware.Tracing(),
//	    middleware.Metrics(),
//	    middleware.Logging(logger),
//	    middleware.Recover(logger),
//	)
//
// # Built-in Middleware
//
//   - [Logging] — logs tenant, intent, duration, and sanitized outcome
//   - [Recover] — catches panics and converts them to errors
//   - [Tracing] — wraps execution in an OpenTelemetry span
//   - [Metrics] — records per-intent duration and outcome counters
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting.
package middleware
