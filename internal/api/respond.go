// Package api provides the thin HTTP handlers over the sync coordinator
// and the task store. Routing and authentication live outside this core;
// handlers only assume a user ID has been placed on the request context.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/shelfsync/internal/platform/logger"
)

// contextKey is a private type for context keys defined in this package.
type contextKey int

// userIDKey is the context key carrying the authenticated user's ID.
const userIDKey contextKey = iota

// WithUserID returns a context carrying the authenticated user's ID.
// The real authentication middleware is an external collaborator; this is
// the contract it must satisfy.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext extracts the authenticated user's ID.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}

// errorBody is the JSON error envelope for all API responses.
type errorBody struct {
	Error string `json:"error"`
}

// respondJSON writes v as a JSON response with the given status.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.FromContext(r.Context()).Error("failed to encode response", "error", err)
	}
}

// respondError writes a JSON error envelope with the given status.
func respondError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	respondJSON(w, r, status, errorBody{Error: msg})
}
