package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/shelfsync/internal/domain"
)

// TaskStore defines the interface for durable task persistence.
//
// The Mark* methods are compare-and-set state transitions: they only apply
// when the task is in the expected prior state, and report whether a row was
// actually transitioned. The scheduler relies on this for safe concurrent
// claiming: two pollers racing on the same pending task see exactly one
// successful MarkStarted.
type TaskStore interface {
	// Create persists a new pending task.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// GetPending returns up to limit pending tasks whose scheduled_at has
	// elapsed, ordered by priority descending then scheduled_at ascending.
	GetPending(ctx context.Context, limit int) ([]*domain.Task, error)

	// MarkStarted transitions pending -> running and increments the attempt
	// counter atomically. Returns false if the task was not pending (claim
	// lost to another worker).
	MarkStarted(ctx context.Context, id uuid.UUID) (bool, error)

	// MarkCompleted transitions running -> completed and stamps CompletedAt.
	// Returns false if the task was not running.
	MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error)

	// MarkFailed records errMsg and transitions running -> pending when
	// attempts remain, or running -> failed once attempts have reached
	// max_attempts. Returns false if the task was not running.
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) (bool, error)

	// MarkFailedPermanently transitions pending -> failed with errMsg,
	// bypassing the retry rule. Used for tasks that can never run, such as
	// a type with no registered handler.
	MarkFailedPermanently(ctx context.Context, id uuid.UUID, errMsg string) (bool, error)
}
