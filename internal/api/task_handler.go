package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/shelfsync/internal/domain"
	"github.com/phrazzld/shelfsync/internal/platform/logger"
	"github.com/phrazzld/shelfsync/internal/store"
)

// TaskHandler serves the admin task endpoints. Submission is
// fire-and-forget: the response acknowledges persistence, and outcomes are
// inspected asynchronously via the task record.
type TaskHandler struct {
	tasks store.TaskStore
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(tasks store.TaskStore) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// createTaskRequest is the body for POST /api/tasks.
type createTaskRequest struct {
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Priority    int             `json:"priority"`
	MaxAttempts int             `json:"max_attempts"`
}

// Create handles POST /api/tasks.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "malformed task request")
		return
	}

	t, err := domain.NewTask(req.Type, req.Payload)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Priority != 0 {
		t.Priority = req.Priority
	}
	if req.MaxAttempts > 0 {
		t.MaxAttempts = req.MaxAttempts
	}

	if err := h.tasks.Create(r.Context(), t); err != nil {
		logger.FromContext(r.Context()).Error("failed to create task",
			"task_type", req.Type, "error", err)
		respondError(w, r, http.StatusInternalServerError, "failed to create task")
		return
	}

	respondJSON(w, r, http.StatusAccepted, t)
}

// Get handles GET /api/tasks/{id}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid task id")
		return
	}

	t, err := h.tasks.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			respondError(w, r, http.StatusNotFound, "task not found")
			return
		}
		logger.FromContext(r.Context()).Error("failed to load task",
			"task_id", id, "error", err)
		respondError(w, r, http.StatusInternalServerError, "failed to load task")
		return
	}

	respondJSON(w, r, http.StatusOK, t)
}
