package task

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/phrazzld/shelfsync/internal/domain"
)

// CleanupOrphansHandler scans file-backed book records and verifies each
// backing file still exists in storage. Dangling references are logged,
// never deleted: whether deletion should be automatic is an unresolved
// policy question, and a log line is recoverable where a delete is not.
type CleanupOrphansHandler struct{}

// NewCleanupOrphansHandler creates a CleanupOrphansHandler.
func NewCleanupOrphansHandler() *CleanupOrphansHandler {
	return &CleanupOrphansHandler{}
}

// TaskType returns the type tag this handler executes.
func (h *CleanupOrphansHandler) TaskType() string {
	return domain.TaskTypeCleanupOrphans
}

// Execute scans every file-backed book and logs dangling references.
// The payload is ignored; the scan is always full.
func (h *CleanupOrphansHandler) Execute(ctx context.Context, tc *Context, _ json.RawMessage) error {
	log := tc.Logger
	log.Info("starting orphan scan")

	books, err := tc.Books.ListWithFiles(ctx)
	if err != nil {
		return fmt.Errorf("failed to list file-backed books: %w", err)
	}

	orphans := 0
	for _, book := range books {
		if book.StoragePath == nil {
			continue
		}

		exists, err := tc.Storage.Exists(ctx, *book.StoragePath)
		if err != nil {
			return fmt.Errorf("failed to check file for book %s: %w", book.ID, err)
		}

		if !exists {
			orphans++
			log.Warn("dangling file reference",
				"book_id", book.ID,
				"storage_path", *book.StoragePath)
		}
	}

	log.Info("orphan scan completed", "scanned", len(books), "orphans_found", orphans)
	return nil
}
