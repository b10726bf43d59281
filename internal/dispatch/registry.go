package dispatch

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/SteelMorgan/journal-ingest/internal/domain"
	"github.com/SteelMorgan/journal-ingest/internal/writer"
)

// Handler maps one event type to typed rows
type Handler interface {
	// Type is the event type tag the handler serves
	Type() string

	// Tables describes every table the handler writes to
	Tables() []writer.Table

	// Rows decodes the raw payload and returns zero or more rows.
	// An error means the payload could not be decoded for this type.
	Rows(id uuid.UUID, ev *domain.Event) ([]*writer.Row, error)
}

// Registry maps event types to handlers. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler. Registering a second handler for the same
// type is an error.
func (r *Registry) Register(h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[h.Type()]; exists {
		return fmt.Errorf("handler for event type %s already registered", h.Type())
	}
	r.handlers[h.Type()] = h
	return nil
}

// Lookup returns the handler for an event type
func (r *Registry) Lookup(eventType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[eventType]
	return h, ok
}

// Types returns the registered event types, sorted
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Tables returns the tables of all registered handlers, ordered by event type
func (r *Registry) Tables() []writer.Table {
	var tables []writer.Table
	for _, t := range r.Types() {
		h, _ := r.Lookup(t)
		tables = append(tables, h.Tables()...)
	}
	return tables
}
