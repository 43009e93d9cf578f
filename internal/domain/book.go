package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BookFormat identifies the file format of a stored book.
type BookFormat string

// Supported book formats.
const (
	FormatEPUB BookFormat = "epub"
	FormatPDF  BookFormat = "pdf"
)

// ParseBookFormat converts a string into a BookFormat.
func ParseBookFormat(s string) (BookFormat, error) {
	switch BookFormat(s) {
	case FormatEPUB, FormatPDF:
		return BookFormat(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidBookFormat, s)
}

// Book represents a book in a user's library, with metadata either supplied
// at upload time or extracted from the file by the reindex task.
// StoragePath and Format are nil until a file has been attached.
type Book struct {
	ID            uuid.UUID   `json:"id"`
	UserID        uuid.UUID   `json:"user_id"`
	Title         string      `json:"title"`
	Authors       []string    `json:"authors,omitempty"`
	Description   *string     `json:"description,omitempty"`
	Language      *string     `json:"language,omitempty"`
	Publisher     *string     `json:"publisher,omitempty"`
	PublishedDate *string     `json:"published_date,omitempty"`
	ISBN          *string     `json:"isbn,omitempty"`
	Format        *BookFormat `json:"format,omitempty"`
	StoragePath   *string     `json:"storage_path,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// BookMetadataUpdate carries the metadata fields the reindex task may
// rewrite. Nil fields are left untouched by the store.
type BookMetadataUpdate struct {
	Title         *string
	Authors       []string
	Description   *string
	Language      *string
	Publisher     *string
	PublishedDate *string
	ISBN          *string
}

// CoverSize identifies a resized cover variant.
type CoverSize string

// Cover size variants and their pixel dimensions.
const (
	CoverSizeSmall  CoverSize = "small"  // 100x150
	CoverSizeMedium CoverSize = "medium" // 200x300
	CoverSizeLarge  CoverSize = "large"  // 400x600
)

// Dimensions returns the pixel width and height for the variant.
func (s CoverSize) Dimensions() (width, height int) {
	switch s {
	case CoverSizeSmall:
		return 100, 150
	case CoverSizeLarge:
		return 400, 600
	default:
		return 200, 300
	}
}

// AllCoverSizes lists every variant generated for a book.
func AllCoverSizes() []CoverSize {
	return []CoverSize{CoverSizeSmall, CoverSizeMedium, CoverSizeLarge}
}

// Cover records one generated cover image variant for a book.
type Cover struct {
	ID          uuid.UUID `json:"id"`
	BookID      uuid.UUID `json:"book_id"`
	Size        CoverSize `json:"size"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	StoragePath string    `json:"storage_path"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewCover creates a Cover record for a stored variant.
func NewCover(bookID uuid.UUID, size CoverSize, storagePath string) *Cover {
	w, h := size.Dimensions()
	return &Cover{
		ID:          uuid.New(),
		BookID:      bookID,
		Size:        size,
		Width:       w,
		Height:      h,
		StoragePath: storagePath,
		CreatedAt:   time.Now().UTC(),
	}
}
