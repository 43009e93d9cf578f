package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/shelfsync/internal/domain"
)

// ReadingStateStore defines the interface for reading state persistence.
// There is exactly one reading state per (user, book) pair; Upsert replaces
// the row in place.
type ReadingStateStore interface {
	// GetForBook retrieves the reading state for a (user, book) pair.
	// Returns ErrReadingStateNotFound if no row exists.
	GetForBook(ctx context.Context, userID, bookID uuid.UUID) (*domain.ReadingState, error)

	// Upsert inserts or replaces the reading state for its (user, book)
	// pair. The state's UpdatedAt is persisted as given; LWW comparisons
	// depend on client timestamps being kept verbatim.
	Upsert(ctx context.Context, state *domain.ReadingState) error

	// ListUpdatedSince returns every reading state for the user with
	// UpdatedAt strictly greater than since, regardless of which device
	// authored the change.
	ListUpdatedSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*domain.ReadingState, error)

	// WithTx returns a ReadingStateStore bound to the given transaction.
	WithTx(tx *sql.Tx) ReadingStateStore
}

// AnnotationStore defines the interface for annotation persistence.
// Deletion is logical: tombstoned rows remain visible to ListUpdatedSince
// so deletions propagate to other devices.
type AnnotationStore interface {
	// GetByID retrieves an annotation by ID, including soft-deleted rows.
	// Returns ErrAnnotationNotFound if no row exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Annotation, error)

	// Upsert inserts or replaces an annotation by ID, persisting UpdatedAt
	// as given (see ReadingStateStore.Upsert).
	Upsert(ctx context.Context, annotation *domain.Annotation) error

	// SoftDelete tombstones an annotation, setting both DeletedAt and
	// UpdatedAt to deletedAt so the deletion itself wins LWW comparisons
	// and appears in later deltas. Rows are never physically removed.
	SoftDelete(ctx context.Context, id uuid.UUID, deletedAt time.Time) error

	// ListUpdatedSince returns every annotation for the user, tombstones
	// included, with UpdatedAt strictly greater than since.
	ListUpdatedSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*domain.Annotation, error)

	// WithTx returns an AnnotationStore bound to the given transaction.
	WithTx(tx *sql.Tx) AnnotationStore
}

// DeviceStore defines the interface for device persistence.
type DeviceStore interface {
	// GetByID retrieves a device by ID.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Device, error)

	// Create persists a newly registered device.
	Create(ctx context.Context, device *domain.Device) error

	// UpdateLastSync advances the device's sync cursor. Called exactly once
	// per completed sync, after all merges and delta reads succeed.
	UpdateLastSync(ctx context.Context, deviceID uuid.UUID, syncedAt time.Time) error

	// WithTx returns a DeviceStore bound to the given transaction.
	WithTx(tx *sql.Tx) DeviceStore
}
