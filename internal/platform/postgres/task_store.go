package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/shelfsync/internal/domain"
	"github.com/phrazzld/shelfsync/internal/store"
)

// TaskStore implements store.TaskStore using PostgreSQL. State transitions
// are single UPDATE statements guarded by the expected prior status, so
// concurrent claimers race safely at the database.
type TaskStore struct {
	db store.DBTX
}

// NewTaskStore creates a TaskStore.
func NewTaskStore(db store.DBTX) *TaskStore {
	return &TaskStore{db: db}
}

const taskColumns = `id, type, payload, status, priority, attempts, max_attempts,
	scheduled_at, started_at, completed_at, error, created_at`

// Create persists a new pending task.
func (s *TaskStore) Create(ctx context.Context, t *domain.Task) error {
	query := `
		INSERT INTO tasks (id, type, payload, status, priority, attempts, max_attempts,
			scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	payload := t.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.Type, []byte(payload), string(t.Status), t.Priority,
		t.Attempts, t.MaxAttempts, t.ScheduledAt, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetByID retrieves a task by ID.
func (s *TaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	t, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// GetPending returns due pending tasks ordered by priority descending then
// scheduled_at ascending.
func (s *TaskStore) GetPending(ctx context.Context, limit int) ([]*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE status = 'pending' AND scheduled_at <= NOW()
		ORDER BY priority DESC, scheduled_at ASC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	return tasks, nil
}

// MarkStarted transitions pending -> running and increments attempts.
func (s *TaskStore) MarkStarted(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE tasks
		SET status = 'running', started_at = NOW(), attempts = attempts + 1
		WHERE id = $1 AND status = 'pending'
	`
	return s.exec(ctx, query, id)
}

// MarkCompleted transitions running -> completed.
func (s *TaskStore) MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE tasks
		SET status = 'completed', completed_at = NOW(), error = ''
		WHERE id = $1 AND status = 'running'
	`
	return s.exec(ctx, query, id)
}

// MarkFailed records the error and applies the retry rule in one guarded
// statement: back to pending while attempts remain, terminally failed once
// attempts have reached max_attempts.
func (s *TaskStore) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) (bool, error) {
	query := `
		UPDATE tasks
		SET status = CASE WHEN attempts >= max_attempts THEN 'failed' ELSE 'pending' END,
			error = $2,
			completed_at = CASE WHEN attempts >= max_attempts THEN NOW() ELSE NULL END
		WHERE id = $1 AND status = 'running'
	`
	return s.exec(ctx, query, id, errMsg)
}

// MarkFailedPermanently transitions pending -> failed, bypassing retries.
func (s *TaskStore) MarkFailedPermanently(ctx context.Context, id uuid.UUID, errMsg string) (bool, error) {
	query := `
		UPDATE tasks
		SET status = 'failed', error = $2, completed_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	return s.exec(ctx, query, id, errMsg)
}

// exec runs a guarded transition and reports whether a row moved.
func (s *TaskStore) exec(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("task transition failed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask reads one task row.
func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		t       domain.Task
		status  string
		payload []byte
		errMsg  sql.NullString
	)

	err := row.Scan(
		&t.ID, &t.Type, &payload, &status, &t.Priority, &t.Attempts,
		&t.MaxAttempts, &t.ScheduledAt, &t.StartedAt, &t.CompletedAt,
		&errMsg, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := domain.ParseTaskStatus(status)
	if err != nil {
		return nil, err
	}
	t.Status = parsed
	t.Payload = json.RawMessage(payload)
	t.Error = errMsg.String

	return &t, nil
}

var _ store.TaskStore = (*TaskStore)(nil)
