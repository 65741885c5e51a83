package job

import (
	"context"
	"encoding/json"
)

// Definition is a typed handler for one intent.
// T is the payload type and must be JSON-decodable.
type Definition[T any] struct {
	// Intent selects this handler for a job.
	Intent string

	// Handler processes the decoded payload.
	Handler func(ctx context.Context, payload T) error
}

// NewDefinition creates a typed definition.
func NewDefinition[T any](intent string, handler func(ctx context.Context, payload T) error) *Definition[T] {
	return &Definition[T]{
		Intent:  intent,
		Handler: handler,
	}
}

// HandlerFunc erases the payload type.
func (d *Definition[T]) HandlerFunc() HandlerFunc {
	return func(ctx context.Context, payload json.RawMessage) error {
		t, err := decodePayload[T](d.Intent, payload)
		if err != nil {
			return err
		}
		return d.Handler(ctx, t)
	}
}
