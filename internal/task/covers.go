package task

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/shelfsync/internal/domain"
)

// GenerateCoversHandler extracts a book's cover image and persists the
// small, medium, and large resized variants, recording each resulting path.
type GenerateCoversHandler struct{}

// NewGenerateCoversHandler creates a GenerateCoversHandler.
func NewGenerateCoversHandler() *GenerateCoversHandler {
	return &GenerateCoversHandler{}
}

// generateCoversPayload is the JSON payload for cover generation tasks.
type generateCoversPayload struct {
	BookID uuid.UUID `json:"book_id"`
}

// TaskType returns the type tag this handler executes.
func (h *GenerateCoversHandler) TaskType() string {
	return domain.TaskTypeGenerateCovers
}

// Execute extracts, resizes, and records cover variants for one book.
// A book without a file or without an embedded cover is not an error.
func (h *GenerateCoversHandler) Execute(ctx context.Context, tc *Context, payload json.RawMessage) error {
	var p generateCoversPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("invalid generate covers payload: %w", err)
	}

	log := tc.Logger.With("book_id", p.BookID)
	log.Info("generating covers")

	book, err := tc.Books.GetByID(ctx, p.BookID)
	if err != nil {
		return fmt.Errorf("failed to load book %s: %w", p.BookID, err)
	}

	if book.StoragePath == nil {
		log.Warn("book has no stored file, skipping cover generation")
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

	coverData, err := extractor.ExtractCover(data)
	if err != nil {
		// A malformed embedded cover should not burn retries on a book
		// that will never yield one.
		log.Warn("cover extraction failed", "error", err)
		return nil
	}
	if coverData == nil {
		log.Info("no cover found in book")
		return nil
	}

	paths, err := tc.CoverStore.StoreCover(ctx, book.ID, coverData)
	if err != nil {
		return fmt.Errorf("failed to store cover variants: %w", err)
	}

	for size, path := range map[domain.CoverSize]string{
		domain.CoverSizeSmall:  paths.Small,
		domain.CoverSizeMedium: paths.Medium,
		domain.CoverSizeLarge:  paths.Large,
	} {
		if err := tc.Covers.Create(ctx, domain.NewCover(book.ID, size, path)); err != nil {
			return fmt.Errorf("failed to record %s cover: %w", size, err)
		}
	}

	log.Info("covers generated")
	return nil
}
