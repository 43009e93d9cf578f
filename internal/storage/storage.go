// Package storage provides file and cover image storage.
package storage

import (
	"context"

	"github.com/google/uuid"
)

// Storage is the contract for content-addressable book file storage.
type Storage interface {
	// Store writes data under the given content hash and returns the
	// storage path, relative to the storage root.
	Store(ctx context.Context, contentHash string, data []byte) (string, error)

	// Retrieve reads the file at a storage path.
	// Returns ErrFileNotFound if no file exists there.
	Retrieve(ctx context.Context, storagePath string) ([]byte, error)

	// Exists reports whether a file exists at the storage path.
	Exists(ctx context.Context, storagePath string) (bool, error)

	// Delete removes the file at a storage path. Reports whether a file
	// was actually removed.
	Delete(ctx context.Context, storagePath string) (bool, error)
}

// CoverPaths holds the storage paths of every generated cover variant.
type CoverPaths struct {
	Small  string
	Medium string
	Large  string
}

// CoverStorage produces and persists resized cover image variants.
type CoverStorage interface {
	// StoreCover decodes imageData, renders the small, medium, and large
	// variants, persists them, and returns their paths.
	StoreCover(ctx context.Context, bookID uuid.UUID, imageData []byte) (*CoverPaths, error)

	// CoverExists reports whether all variants exist for the book.
	CoverExists(ctx context.Context, bookID uuid.UUID) (bool, error)
}
