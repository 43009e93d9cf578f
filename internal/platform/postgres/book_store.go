package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/shelfsync/internal/domain"
	"github.com/phrazzld/shelfsync/internal/store"
)

// BookStore implements store.BookStore using PostgreSQL. Authors are kept
// as a JSONB array so the list round-trips without an array type mapping.
type BookStore struct {
	db store.DBTX
}

// NewBookStore creates a BookStore.
func NewBookStore(db store.DBTX) *BookStore {
	return &BookStore{db: db}
}

const bookColumns = `id, user_id, title, authors, description, language, publisher,
	published_date, isbn, format, storage_path, created_at, updated_at`

// GetByID retrieves a book by ID.
func (s *BookStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE id = $1`

	b, err := scanBook(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrBookNotFound
		}
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return b, nil
}

// UpdateMetadata rewrites the metadata fields present in update, leaving
// nil fields untouched via COALESCE.
func (s *BookStore) UpdateMetadata(ctx context.Context, id uuid.UUID, update *domain.BookMetadataUpdate) error {
	var authorsJSON any
	if update.Authors != nil {
		encoded, err := json.Marshal(update.Authors)
		if err != nil {
			return fmt.Errorf("failed to encode authors: %w", err)
		}
		authorsJSON = encoded
	}

	query := `
		UPDATE books
		SET title = COALESCE($2, title),
			authors = COALESCE($3, authors),
			description = COALESCE($4, description),
			language = COALESCE($5, language),
			publisher = COALESCE($6, publisher),
			published_date = COALESCE($7, published_date),
			isbn = COALESCE($8, isbn),
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query,
		id, update.Title, authorsJSON, update.Description, update.Language,
		update.Publisher, update.PublishedDate, update.ISBN,
	)
	if err != nil {
		return fmt.Errorf("failed to update book metadata: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrBookNotFound
	}
	return nil
}

// ListWithFiles returns every book with a storage path attached.
func (s *BookStore) ListWithFiles(ctx context.Context) ([]*domain.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE storage_path IS NOT NULL ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query file-backed books: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var books []*domain.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book row: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating book rows: %w", err)
	}
	return books, nil
}

// scanBook reads one book row.
func scanBook(row rowScanner) (*domain.Book, error) {
	var (
		b           domain.Book
		authorsJSON []byte
		format      sql.NullString
	)

	err := row.Scan(
		&b.ID, &b.UserID, &b.Title, &authorsJSON, &b.Description, &b.Language,
		&b.Publisher, &b.PublishedDate, &b.ISBN, &format, &b.StoragePath,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(authorsJSON) > 0 {
		if err := json.Unmarshal(authorsJSON, &b.Authors); err != nil {
			return nil, fmt.Errorf("failed to decode authors: %w", err)
		}
	}
	if format.Valid {
		f := domain.BookFormat(format.String)
		b.Format = &f
	}

	return &b, nil
}

var _ store.BookStore = (*BookStore)(nil)
