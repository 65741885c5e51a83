// Package postgres implements store.Store and lock.Locker on PostgreSQL
// using pgx/v5. Features: single-row conditional claim inside a
// transaction, session-level advisory locks per tenant, and embedded goose
// migrations.
package postgres
