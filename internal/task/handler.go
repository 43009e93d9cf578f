// Package task implements the durable background task scheduler, its
// handler registry, and the built-in maintenance handlers.
package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/phrazzld/shelfsync/internal/extract"
	"github.com/phrazzld/shelfsync/internal/storage"
	"github.com/phrazzld/shelfsync/internal/store"
)

// Context is the immutable bundle of collaborators passed into every
// handler invocation. It is constructed once at startup and never reached
// for as ambient global state, so every piece can be swapped for a fake in
// tests.
type Context struct {
	Books      store.BookStore
	Covers     store.CoverStore
	Storage    storage.Storage
	CoverStore storage.CoverStorage
	Extractors extract.Registry
	Logger     *slog.Logger
}

// Handler executes one type of background task.
type Handler interface {
	// TaskType returns the type tag this handler executes.
	TaskType() string

	// Execute runs the task logic against the payload. Handlers return a
	// single error and express no opinion on retryability; the scheduler
	// alone decides retry-vs-terminal from the attempt count.
	Execute(ctx context.Context, tc *Context, payload json.RawMessage) error
}

// Registry maps task type tags to handlers. It is populated once at
// startup and treated as immutable once the scheduler is running.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler, keyed by its task type. Registering two handlers
// for the same type is a wiring bug and returns an error.
func (r *Registry) Register(h Handler) error {
	taskType := h.TaskType()
	if _, exists := r.handlers[taskType]; exists {
		return fmt.Errorf("handler already registered for task type %q", taskType)
	}
	r.handlers[taskType] = h
	return nil
}

// Get returns the handler for a task type. Lookup is exact string match;
// a miss is a handled condition, not a crash.
func (r *Registry) Get(taskType string) (Handler, bool) {
	h, ok := r.handlers[taskType]
	return h, ok
}
