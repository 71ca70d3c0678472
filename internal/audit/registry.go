package audit

import (
	"context"
	"fmt"
	"sync"
)

// Handler reacts to one event kind.
type Handler func(ctx context.Context, event Event)

// Registry is an ordered mapping from event kind to handlers. Handlers of a
// kind run in subscription order; a panicking handler is recovered, reported
// through the failure callback, and does not stop the others.
//
// Registry implements [Sink] so it can sit behind a [Dispatcher].
type Registry struct {
	mu        sync.RWMutex
	handlers  map[string][]Handler
	wildcard  []Handler
	onFailure func(kind string, recovered any)
}

// NewRegistry returns an empty registry. onFailure may be nil.
func NewRegistry(onFailure func(kind string, recovered any)) *Registry {
	return &Registry{
		handlers:  make(map[string][]Handler),
		onFailure: onFailure,
	}
}

// Subscribe appends h to the handlers of kind. An empty kind subscribes to
// every event.
func (r *Registry) Subscribe(kind string, h Handler) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if kind == "" {
		r.wildcard = append(r.wildcard, h)
		return
	}
	r.handlers[kind] = append(r.handlers[kind], h)
}

// Handlers returns how many handlers are subscribed to kind, wildcard
// handlers excluded.
func (r *Registry) Handlers(kind string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[kind])
}

// Emit delivers event to the handlers of its kind, then to wildcard handlers.
func (r *Registry) Emit(ctx context.Context, event Event) {
	r.mu.RLock()
	specific := r.handlers[event.EventType]
	all := make([]Handler, 0, len(specific)+len(r.wildcard))
	all = append(all, specific...)
	all = append(all, r.wildcard...)
	r.mu.RUnlock()

	for _, h := range all {
		r.invoke(ctx, event, h)
	}
}

func (r *Registry) invoke(ctx context.Context, event Event, h Handler) {
	defer func() {
		if rec := recover(); rec != nil && r.onFailure != nil {
			r.onFailure(event.EventType, rec)
		}
	}()
	h(ctx, event)
}

// PanicError formats a recovered handler panic.
func PanicError(kind string, recovered any) error {
	return fmt.Errorf("audit handler for %q panicked: %v", kind, recovered)
}
