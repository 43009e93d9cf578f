package task

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/shelfsync/internal/domain"
)

// ReindexBookHandler re-runs metadata extraction against a book's stored
// file and merges the results into the persisted record, preferring
// extracted values and falling back to the existing ones per field when
// extraction yields nothing.
type ReindexBookHandler struct{}

// NewReindexBookHandler creates a ReindexBookHandler.
func NewReindexBookHandler() *ReindexBookHandler {
	return &ReindexBookHandler{}
}

// reindexPayload is the JSON payload for reindex tasks.
type reindexPayload struct {
	BookID uuid.UUID `json:"book_id"`
}

// TaskType returns the type tag this handler executes.
func (h *ReindexBookHandler) TaskType() string {
	return domain.TaskTypeReindexBook
}

// Execute re-extracts and merges metadata for one book.
func (h *ReindexBookHandler) Execute(ctx context.Context, tc *Context, payload json.RawMessage) error {
	var p reindexPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("invalid reindex payload: %w", err)
	}

	log := tc.Logger.With("book_id", p.BookID)
	log.Info("reindexing book")

	book, err := tc.Books.GetByID(ctx, p.BookID)
	if err != nil {
		return fmt.Errorf("failed to load book %s: %w", p.BookID, err)
	}

	if book.StoragePath == nil {
		log.Warn("book has no stored file, skipping reindex")
		return nil
	}
	if book.Format == nil {
		return fmt.Errorf("book %s has a storage path but no format", book.ID)
	}

	data, err := tc.Storage.Retrieve(ctx, *book.StoragePath)
	if err != nil {
		return fmt.Errorf("failed to retrieve book file: %w", err)
	}

	extractor, ok := tc.Extractors.ForFormat(*book.Format)
	if !ok {
		return fmt.Errorf("no extractor for format %q", *book.Format)
	}

	md, err := extractor.ExtractMetadata(data)
	if err != nil {
		return fmt.Errorf("metadata extraction failed: %w", err)
	}

	// Per-field merge: extracted value wins, existing value is the
	// fallback when extraction came back empty.
	update := &domain.BookMetadataUpdate{
		Title:         prefer(md.Title, &book.Title),
		Description:   prefer(md.Description, book.Description),
		Language:      prefer(md.Language, book.Language),
		Publisher:     prefer(md.Publisher, book.Publisher),
		PublishedDate: prefer(md.PublishedDate, book.PublishedDate),
		ISBN:          prefer(md.ISBN, book.ISBN),
	}
	if len(md.Authors) > 0 {
		update.Authors = md.Authors
	} else {
		update.Authors = book.Authors
	}

	if err := tc.Books.UpdateMetadata(ctx, book.ID, update); err != nil {
		return fmt.Errorf("failed to persist reindexed metadata: %w", err)
	}

	log.Info("book reindexed", "has_extracted_data", md.HasData())
	return nil
}

// prefer picks the extracted value when extraction produced one, and the
// existing value otherwise.
func prefer(extracted string, existing *string) *string {
	if extracted != "" {
		return &extracted
	}
	return existing
}
