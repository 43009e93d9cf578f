package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/phrazzld/shelfsync/internal/api"
	"github.com/phrazzld/shelfsync/internal/platform/logger"
)

// setupRouter creates and configures the application router with all
// routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(loggerMiddleware(app.logger))

	syncHandler := api.NewSyncHandler(app.coordinator)
	taskHandler := api.NewTaskHandler(app.taskStore)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(identityMiddleware)
			r.Post("/sync", syncHandler.ServeHTTP)
		})

		// Task submission is an internal/admin surface; deployments front it
		// with network policy rather than per-user authentication.
		r.Post("/tasks", taskHandler.Create)
		r.Get("/tasks/{id}", taskHandler.Get)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}

// loggerMiddleware attaches a request-scoped logger, tagged with the chi
// request ID, to the request context.
func loggerMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLog := log
			if reqID := middleware.GetReqID(r.Context()); reqID != "" {
				reqLog = log.With("request_id", reqID)
			}
			next.ServeHTTP(w, r.WithContext(logger.WithLogger(r.Context(), reqLog)))
		})
	}
}

// identityMiddleware resolves the calling user from the X-User-ID header
// set by the fronting gateway. Real credential verification happens
// upstream; this core only consumes the resolved identity.
func identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(r.Header.Get("X-User-ID"))
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			if _, werr := w.Write([]byte(`{"error":"missing or invalid user identity"}`)); werr != nil {
				logger.FromContext(r.Context()).Error("failed to write auth error", "error", werr)
			}
			return
		}
		next.ServeHTTP(w, r.WithContext(api.WithUserID(r.Context(), userID)))
	})
}
