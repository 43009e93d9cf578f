package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/shelfsync/internal/platform/logger"
	"github.com/phrazzld/shelfsync/internal/store"
	"github.com/phrazzld/shelfsync/internal/syncer"
)

// SyncHandler serves POST /api/sync: one device's batch of offline edits
// in, the merged delta and conflict report out.
type SyncHandler struct {
	coordinator *syncer.Coordinator
}

// NewSyncHandler creates a SyncHandler.
func NewSyncHandler(coordinator *syncer.Coordinator) *SyncHandler {
	return &SyncHandler{coordinator: coordinator}
}

// ServeHTTP handles the sync request. Sync failures are a single error to
// the caller with no partial-success reporting; the client retries with
// the same batch.
func (h *SyncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "missing user identity")
		return
	}

	var req syncer.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "malformed sync request")
		return
	}
	if req.DeviceID == uuid.Nil {
		respondError(w, r, http.StatusBadRequest, "device_id is required")
		return
	}

	resp, err := h.coordinator.ProcessSync(r.Context(), userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDeviceNotFound):
			respondError(w, r, http.StatusNotFound, "device not found")
		case errors.Is(err, syncer.ErrDeviceOwnership):
			respondError(w, r, http.StatusForbidden, "device does not belong to user")
		default:
			logger.FromContext(r.Context()).Error("sync failed",
				"user_id", userID, "device_id", req.DeviceID, "error", err)
			respondError(w, r, http.StatusInternalServerError, "sync failed")
		}
		return
	}

	respondJSON(w, r, http.StatusOK, resp)
}
