package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/shelfsync/internal/domain"
	"github.com/phrazzld/shelfsync/internal/store"
)

// ReadingStateStore implements store.ReadingStateStore using PostgreSQL.
// The (user_id, book_id) unique constraint backs the one-row-per-pair
// invariant; Upsert rides ON CONFLICT.
type ReadingStateStore struct {
	db store.DBTX
}

// NewReadingStateStore creates a ReadingStateStore.
func NewReadingStateStore(db store.DBTX) *ReadingStateStore {
	return &ReadingStateStore{db: db}
}

// WithTx returns a ReadingStateStore bound to the given transaction.
func (s *ReadingStateStore) WithTx(tx *sql.Tx) store.ReadingStateStore {
	return NewReadingStateStore(tx)
}

const readingStateColumns = `id, user_id, book_id, device_id, locator, progress, chapter, updated_at`

// GetForBook retrieves the reading state for a (user, book) pair.
func (s *ReadingStateStore) GetForBook(ctx context.Context, userID, bookID uuid.UUID) (*domain.ReadingState, error) {
	query := `SELECT ` + readingStateColumns + ` FROM reading_states WHERE user_id = $1 AND book_id = $2`

	rs, err := scanReadingState(s.db.QueryRowContext(ctx, query, userID, bookID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrReadingStateNotFound
		}
		return nil, fmt.Errorf("failed to get reading state: %w", err)
	}
	return rs, nil
}

// Upsert inserts or replaces the row for the state's (user, book) pair.
// UpdatedAt is written exactly as given; LWW replay depends on it.
func (s *ReadingStateStore) Upsert(ctx context.Context, rs *domain.ReadingState) error {
	query := `
		INSERT INTO reading_states (id, user_id, book_id, device_id, locator, progress, chapter, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, book_id) DO UPDATE SET
			device_id = EXCLUDED.device_id,
			locator = EXCLUDED.locator,
			progress = EXCLUDED.progress,
			chapter = EXCLUDED.chapter,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		rs.ID, rs.UserID, rs.BookID, rs.DeviceID,
		rs.Locator, rs.Progress, rs.Chapter, rs.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert reading state: %w", err)
	}
	return nil
}

// ListUpdatedSince returns every reading state for the user changed
// strictly after since.
func (s *ReadingStateStore) ListUpdatedSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*domain.ReadingState, error) {
	query := `
		SELECT ` + readingStateColumns + `
		FROM reading_states
		WHERE user_id = $1 AND updated_at > $2
		ORDER BY updated_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query changed reading states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var states []*domain.ReadingState
	for rows.Next() {
		rs, err := scanReadingState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading state row: %w", err)
		}
		states = append(states, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reading state rows: %w", err)
	}
	return states, nil
}

// scanReadingState reads one reading state row.
func scanReadingState(row rowScanner) (*domain.ReadingState, error) {
	var (
		rs      domain.ReadingState
		chapter sql.NullString
	)

	err := row.Scan(
		&rs.ID, &rs.UserID, &rs.BookID, &rs.DeviceID,
		&rs.Locator, &rs.Progress, &chapter, &rs.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rs.Chapter = chapter.String
	return &rs, nil
}

var _ store.ReadingStateStore = (*ReadingStateStore)(nil)
