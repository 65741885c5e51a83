// Package store defines the aggregate persistence interface. The job
// package defines the queue contract; the composite Store adds lifecycle
// methods. Backends: Postgres and Memory.
package store

import (
	"context"

	"github.com/xraph/drainq/job"
)

// Store is the aggregate persistence interface.
type Store interface {
	job.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
