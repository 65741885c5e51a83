package job

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// HandlerFunc is a type-erased handler that accepts the raw JSON payload.
// Typed Definition[T] values are converted to a HandlerFunc at registration
// time.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

// Registry maps intents to handler functions.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
	}
}

// Register binds intent to h. A later registration replaces an earlier one.
func (r *Registry) Register(intent string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[intent] = h
}

// RegisterFallback binds intent to h only when intent has no handler yet.
// It reports whether h was registered.
func (r *Registry) RegisterFallback(intent string, h HandlerFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[intent]; ok {
		return false
	}
	r.handlers[intent] = h
	return true
}

// RegisterDefinition registers a typed definition. The payload is
// JSON-decoded into T before the typed handler is called.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterDefinition[T any](r *Registry, def *Definition[T]) {
	r.Register(def.Intent, def.HandlerFunc())
}

// Get returns the handler for intent.
func (r *Registry) Get(intent string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[intent]
	return h, ok
}

// Intents returns all registered intents in sorted order.
func (r *Registry) Intents() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	intents := make([]string, 0, len(r.handlers))
	for intent := range r.handlers {
		intents = append(intents, intent)
	}
	sort.Strings(intents)
	return intents
}

func decodePayload[T any](intent string, payload json.RawMessage) (T, error) {
	var t T
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &t); err != nil {
			return t, fmt.Errorf("unmarshal payload for intent %q: %w", intent, err)
		}
	}
	return t, nil
}
