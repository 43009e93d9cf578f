package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a background task.
type TaskStatus string

// Possible task status values. Legal transitions are exactly
// pending -> running -> {completed | failed | pending (retry)}.
const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// ParseTaskStatus converts a string into a TaskStatus.
func ParseTaskStatus(s string) (TaskStatus, error) {
	switch TaskStatus(s) {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed:
		return TaskStatus(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTaskStatus, s)
}

// IsTerminal reports whether the status is a terminal state.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Known task types dispatched by the scheduler.
const (
	TaskTypeReindexBook    = "reindex_book"
	TaskTypeGenerateCovers = "generate_covers"
	TaskTypeCleanupOrphans = "cleanup_orphans"
)

// DefaultMaxAttempts is the number of execution attempts a task gets
// before it is marked terminally failed.
const DefaultMaxAttempts = 3

// Task represents a durably persisted unit of asynchronous background work.
// The payload is an opaque JSON document interpreted by the handler
// registered for the task type.
type Task struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      TaskStatus      `json:"status"`
	Priority    int             `json:"priority"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NewTask creates a pending Task scheduled for immediate execution.
// Returns an error if validation fails.
func NewTask(taskType string, payload json.RawMessage) (*Task, error) {
	now := time.Now().UTC()
	t := &Task{
		ID:          uuid.New(),
		Type:        taskType,
		Payload:     payload,
		Status:      TaskStatusPending,
		Priority:    0,
		Attempts:    0,
		MaxAttempts: DefaultMaxAttempts,
		ScheduledAt: now,
		CreatedAt:   now,
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return t, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrInvalidID
	}

	if t.Type == "" {
		return fmt.Errorf("%w: task type cannot be empty", ErrValidation)
	}

	if len(t.Payload) > 0 {
		var js json.RawMessage
		if err := json.Unmarshal(t.Payload, &js); err != nil {
			return fmt.Errorf("%w: payload must be valid JSON", ErrValidation)
		}
	}

	if t.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be at least 1", ErrValidation)
	}

	return nil
}

// CanRetry reports whether the task has attempts remaining.
func (t *Task) CanRetry() bool {
	return t.Attempts < t.MaxAttempts
}
