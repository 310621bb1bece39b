package dispatcher

import (
	"context"
	"sync"

	"github.com/estatehub/crm-ingest/internal/domain"
)

// Handler delivers one claimed job's payload into the CRM write layer.
// Handlers are invoked at least once per accepted job and must be idempotent:
// the dispatcher never rolls back partial side effects of a failed attempt.
type Handler interface {
	Handle(ctx context.Context, job *domain.Job) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, job *domain.Job) error

func (f HandlerFunc) Handle(ctx context.Context, job *domain.Job) error {
	return f(ctx, job)
}

// Registry maps event types to their handlers. Adding an event type means
// registering a handler here, not branching inside the dispatcher.
type Registry struct {
	mu       sync.RWMutex
	handlers map[domain.EventType]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[domain.EventType]Handler)}
}

// Register binds a handler to an event type, replacing any previous binding.
func (r *Registry) Register(eventType domain.EventType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[eventType] = h
}

// Get returns the handler for an event type, or false if none is registered.
func (r *Registry) Get(eventType domain.EventType) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[eventType]
	return h, ok
}
