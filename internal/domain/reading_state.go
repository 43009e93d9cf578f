package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReadingState tracks where a user is in a book. There is exactly one row
// per (user, book) pair; updates replace the row in place. The Locator is a
// format-agnostic position string (e.g. an EPUB CFI or a PDF page anchor),
// and Progress is the fraction of the book read, in [0,1].
type ReadingState struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	BookID    uuid.UUID `json:"book_id"`
	DeviceID  uuid.UUID `json:"device_id"`
	Locator   string    `json:"locator"`
	Progress  float64   `json:"progress"`
	Chapter   string    `json:"chapter,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewReadingState creates a ReadingState with a fresh ID and the current
// time as UpdatedAt. Returns an error if validation fails.
func NewReadingState(
	userID, bookID, deviceID uuid.UUID,
	locator string,
	progress float64,
) (*ReadingState, error) {
	rs := &ReadingState{
		ID:        uuid.New(),
		UserID:    userID,
		BookID:    bookID,
		DeviceID:  deviceID,
		Locator:   locator,
		Progress:  progress,
		UpdatedAt: time.Now().UTC(),
	}

	if err := rs.Validate(); err != nil {
		return nil, err
	}

	return rs, nil
}

// Validate checks if the ReadingState has valid data.
func (rs *ReadingState) Validate() error {
	if rs.UserID == uuid.Nil {
		return ErrInvalidID
	}

	if rs.BookID == uuid.Nil {
		return ErrInvalidID
	}

	if rs.Locator == "" {
		return ErrEmptyLocator
	}

	if rs.Progress < 0 || rs.Progress > 1 {
		return ErrInvalidProgress
	}

	return nil
}
