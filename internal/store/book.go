package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/shelfsync/internal/domain"
)

// BookStore defines the interface for book persistence used by the
// background task handlers.
type BookStore interface {
	// GetByID retrieves a book by ID.
	// Returns ErrBookNotFound if the book does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Book, error)

	// UpdateMetadata rewrites the metadata fields present in update.
	// Nil fields are left untouched.
	UpdateMetadata(ctx context.Context, id uuid.UUID, update *domain.BookMetadataUpdate) error

	// ListWithFiles returns every book that has a storage path attached.
	// Used by the orphan cleanup task to verify backing files exist.
	ListWithFiles(ctx context.Context) ([]*domain.Book, error)
}

// CoverStore defines the interface for persisted cover variant records.
type CoverStore interface {
	// Create records a generated cover variant. An existing record for the
	// same (book, size) pair is replaced.
	Create(ctx context.Context, cover *domain.Cover) error
}
