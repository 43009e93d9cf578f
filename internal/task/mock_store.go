package task

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/shelfsync/internal/domain"
	"github.com/phrazzld/shelfsync/internal/store"
)

// MockTaskStore is an in-memory store.TaskStore with the same
// compare-and-set transition semantics as the postgres implementation.
// Used by scheduler tests; the optional Fn hooks let tests inject errors.
type MockTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task

	// Optional overrides for fault injection. When set, the hook runs
	// instead of the default behavior.
	GetPendingFn  func(ctx context.Context, limit int) ([]*domain.Task, error)
	MarkStartedFn func(ctx context.Context, id uuid.UUID) (bool, error)
}

// NewMockTaskStore creates an empty MockTaskStore.
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
}

// Create persists a new pending task.
func (m *MockTaskStore) Create(ctx context.Context, t *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

// GetByID retrieves a copy of a task by ID.
func (m *MockTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

// GetPending returns due pending tasks ordered by priority descending then
// scheduled_at ascending.
func (m *MockTaskStore) GetPending(ctx context.Context, limit int) ([]*domain.Task, error) {
	if m.GetPendingFn != nil {
		return m.GetPendingFn(ctx, limit)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	var due []*domain.Task
	for _, t := range m.tasks {
		if t.Status == domain.TaskStatusPending && !t.ScheduledAt.After(now) {
			cp := *t
			due = append(due, &cp)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		if due[i].Priority != due[j].Priority {
			return due[i].Priority > due[j].Priority
		}
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})

	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// MarkStarted transitions pending -> running and increments attempts.
func (m *MockTaskStore) MarkStarted(ctx context.Context, id uuid.UUID) (bool, error) {
	if m.MarkStartedFn != nil {
		return m.MarkStartedFn(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok || t.Status != domain.TaskStatusPending {
		return false, nil
	}

	now := time.Now().UTC()
	t.Status = domain.TaskStatusRunning
	t.Attempts++
	t.StartedAt = &now
	return true, nil
}

// MarkCompleted transitions running -> completed.
func (m *MockTaskStore) MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok || t.Status != domain.TaskStatusRunning {
		return false, nil
	}

	now := time.Now().UTC()
	t.Status = domain.TaskStatusCompleted
	t.CompletedAt = &now
	return true, nil
}

// MarkFailed applies the retry rule: running -> pending while attempts
// remain, running -> failed once they are exhausted.
func (m *MockTaskStore) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok || t.Status != domain.TaskStatusRunning {
		return false, nil
	}

	t.Error = errMsg
	if t.Attempts >= t.MaxAttempts {
		now := time.Now().UTC()
		t.Status = domain.TaskStatusFailed
		t.CompletedAt = &now
	} else {
		t.Status = domain.TaskStatusPending
	}
	return true, nil
}

// MarkFailedPermanently transitions pending -> failed, bypassing retries.
func (m *MockTaskStore) MarkFailedPermanently(ctx context.Context, id uuid.UUID, errMsg string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok || t.Status != domain.TaskStatusPending {
		return false, nil
	}

	now := time.Now().UTC()
	t.Status = domain.TaskStatusFailed
	t.Error = errMsg
	t.CompletedAt = &now
	return true, nil
}

// Snapshot returns a copy of a task's current state for assertions.
func (m *MockTaskStore) Snapshot(id uuid.UUID) (domain.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return domain.Task{}, false
	}
	return *t, true
}

var _ store.TaskStore = (*MockTaskStore)(nil)
