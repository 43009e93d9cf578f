package postgres

import (
	"context"
	"fmt"

	"github.com/phrazzld/shelfsync/internal/domain"
	"github.com/phrazzld/shelfsync/internal/store"
)

// CoverStore implements store.CoverStore using PostgreSQL. Regenerating a
// cover replaces the existing record for the same (book, size) pair.
type CoverStore struct {
	db store.DBTX
}

// NewCoverStore creates a CoverStore.
func NewCoverStore(db store.DBTX) *CoverStore {
	return &CoverStore{db: db}
}

// Create records a generated cover variant.
func (s *CoverStore) Create(ctx context.Context, c *domain.Cover) error {
	query := `
		INSERT INTO covers (id, book_id, size, width, height, storage_path, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (book_id, size) DO UPDATE SET
			width = EXCLUDED.width,
			height = EXCLUDED.height,
			storage_path = EXCLUDED.storage_path,
			created_at = EXCLUDED.created_at
	`

	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.BookID, string(c.Size), c.Width, c.Height, c.StoragePath, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record cover: %w", err)
	}
	return nil
}

var _ store.CoverStore = (*CoverStore)(nil)
