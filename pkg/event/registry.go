// Package event maps event names onto ordered handler lists.
package event

import (
	"fmt"
	"sort"

	"github.com/QYUbit/Tether/pkg/tlog"
)

// Handler reacts to one dispatched event. S is the session type handed to
// handlers by the owning endpoint.
type Handler[S any] interface {
	Handle(data any, session S) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc[S any] func(data any, session S) error

func (f HandlerFunc[S]) Handle(data any, session S) error {
	return f(data, session)
}

// HandlerID identifies one registration. Registering the same handler twice
// yields two ids.
type HandlerID uint64

type entry[S any] struct {
	id      HandlerID
	handler Handler[S]
}

// Registry is not safe for concurrent use; handlers may register and
// unregister handlers while being dispatched.
type Registry[S any] struct {
	logger   tlog.Logger
	handlers map[string][]entry[S]
	schemas  map[string]Schema
	lastID   HandlerID
}

func NewRegistry[S any](logger tlog.Logger) *Registry[S] {
	return &Registry[S]{
		logger:   tlog.OrNop(logger),
		handlers: make(map[string][]entry[S]),
		schemas:  make(map[string]Schema),
	}
}

// Register appends handler to the handlers of name.
func (r *Registry[S]) Register(name string, handler Handler[S]) HandlerID {
	r.lastID++
	r.handlers[name] = append(r.handlers[name], entry[S]{id: r.lastID, handler: handler})
	return r.lastID
}

// RegisterFunc is Register for plain functions.
func (r *Registry[S]) RegisterFunc(name string, fn func(data any, session S) error) HandlerID {
	return r.Register(name, HandlerFunc[S](fn))
}

// Unregister removes the registration id from name and returns the number of
// handlers removed. It returns 0 for unknown names and ids.
func (r *Registry[S]) Unregister(name string, id HandlerID) int {
	entries, ok := r.handlers[name]
	if !ok {
		return 0
	}

	kept := make([]entry[S], 0, len(entries))
	for _, e := range entries {
		if e.id != id {
			kept = append(kept, e)
		}
	}
	removed := len(entries) - len(kept)

	if len(kept) == 0 {
		delete(r.handlers, name)
	} else {
		r.handlers[name] = kept
	}
	return removed
}

// SetSchema replaces the schema of name. An empty schema removes it.
func (r *Registry[S]) SetSchema(name string, fields []string) {
	if len(fields) == 0 {
		delete(r.schemas, name)
		return
	}
	r.schemas[name] = append(Schema(nil), fields...)
}

// Schema returns the schema of name, if any.
func (r *Registry[S]) Schema(name string) (Schema, bool) {
	s, ok := r.schemas[name]
	return s, ok
}

// Has reports whether name has at least one handler.
func (r *Registry[S]) Has(name string) bool {
	return len(r.handlers[name]) > 0
}

// Count returns the number of handlers registered for name.
func (r *Registry[S]) Count(name string) int {
	return len(r.handlers[name])
}

// Events returns the names with handlers, sorted.
func (r *Registry[S]) Events() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the handlers of name in registration order and reports whether
// any were registered. Positional data is bound to the schema of name first.
//
// Handlers are isolated: an error or panic is logged and the remaining
// handlers still run.
func (r *Registry[S]) Dispatch(name string, data any, session S) bool {
	entries := r.handlers[name]
	if len(entries) == 0 {
		return false
	}

	// Handlers may mutate the registry.
	snapshot := make([]entry[S], len(entries))
	copy(snapshot, entries)

	if schema, ok := r.schemas[name]; ok {
		data = ApplySchema(schema, data)
	}

	for _, e := range snapshot {
		if err := r.invoke(e, data, session); err != nil {
			r.logger.Error("event handler failed", "event", name, "handler", e.id, "error", err)
		}
	}
	return true
}

func (r *Registry[S]) invoke(e entry[S], data any, session S) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panicked: %v", rec)
		}
	}()
	return e.handler.Handle(data, session)
}
