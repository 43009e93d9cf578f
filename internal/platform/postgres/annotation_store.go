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

// AnnotationStore implements store.AnnotationStore using PostgreSQL.
// Deletion is always a tombstone update; rows are never removed, so
// ListUpdatedSince surfaces deletions to sync deltas.
type AnnotationStore struct {
	db store.DBTX
}

// NewAnnotationStore creates an AnnotationStore.
func NewAnnotationStore(db store.DBTX) *AnnotationStore {
	return &AnnotationStore{db: db}
}

// WithTx returns an AnnotationStore bound to the given transaction.
func (s *AnnotationStore) WithTx(tx *sql.Tx) store.AnnotationStore {
	return NewAnnotationStore(tx)
}

const annotationColumns = `id, user_id, book_id, type, location_start, location_end,
	content, style, created_at, updated_at, deleted_at`

// GetByID retrieves an annotation by ID, tombstoned rows included.
func (s *AnnotationStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Annotation, error) {
	query := `SELECT ` + annotationColumns + ` FROM annotations WHERE id = $1`

	a, err := scanAnnotation(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrAnnotationNotFound
		}
		return nil, fmt.Errorf("failed to get annotation: %w", err)
	}
	return a, nil
}

// Upsert inserts or replaces an annotation by ID, writing UpdatedAt
// exactly as given. An upsert clears any existing tombstone: a client-newer
// edit resurrects a previously deleted annotation.
func (s *AnnotationStore) Upsert(ctx context.Context, a *domain.Annotation) error {
	query := `
		INSERT INTO annotations (id, user_id, book_id, type, location_start, location_end,
			content, style, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULL)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			location_start = EXCLUDED.location_start,
			location_end = EXCLUDED.location_end,
			content = EXCLUDED.content,
			style = EXCLUDED.style,
			updated_at = EXCLUDED.updated_at,
			deleted_at = NULL
	`

	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.UserID, a.BookID, string(a.Type), a.LocationStart,
		a.LocationEnd, a.Content, a.Style, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert annotation: %w", err)
	}
	return nil
}

// SoftDelete tombstones an annotation. Both deleted_at and updated_at take
// the edit timestamp so the deletion wins LWW comparisons and appears in
// later deltas.
func (s *AnnotationStore) SoftDelete(ctx context.Context, id uuid.UUID, deletedAt time.Time) error {
	query := `UPDATE annotations SET deleted_at = $2, updated_at = $2 WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, id, deletedAt)
	if err != nil {
		return fmt.Errorf("failed to soft-delete annotation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrAnnotationNotFound
	}
	return nil
}

// ListUpdatedSince returns every annotation for the user, tombstones
// included, changed strictly after since.
func (s *AnnotationStore) ListUpdatedSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*domain.Annotation, error) {
	query := `
		SELECT ` + annotationColumns + `
		FROM annotations
		WHERE user_id = $1 AND updated_at > $2
		ORDER BY updated_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query changed annotations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var annotations []*domain.Annotation
	for rows.Next() {
		a, err := scanAnnotation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan annotation row: %w", err)
		}
		annotations = append(annotations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating annotation rows: %w", err)
	}
	return annotations, nil
}

// scanAnnotation reads one annotation row.
func scanAnnotation(row rowScanner) (*domain.Annotation, error) {
	var (
		a       domain.Annotation
		annType string
	)

	err := row.Scan(
		&a.ID, &a.UserID, &a.BookID, &annType, &a.LocationStart,
		&a.LocationEnd, &a.Content, &a.Style,
		&a.CreatedAt, &a.UpdatedAt, &a.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Type = domain.AnnotationType(annType)
	return &a, nil
}

var _ store.AnnotationStore = (*AnnotationStore)(nil)
