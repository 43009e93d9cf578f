package domain

import (
	"time"

	"github.com/google/uuid"
)

// AnnotationType identifies the kind of annotation.
type AnnotationType string

// Possible annotation type values.
const (
	AnnotationTypeHighlight AnnotationType = "highlight"
	AnnotationTypeNote      AnnotationType = "note"
	AnnotationTypeBookmark  AnnotationType = "bookmark"
)

// IsValid reports whether the annotation type is one of the known values.
func (t AnnotationType) IsValid() bool {
	switch t {
	case AnnotationTypeHighlight, AnnotationTypeNote, AnnotationTypeBookmark:
		return true
	}
	return false
}

// Annotation is a highlight, note, or bookmark anchored to a location range
// in a book. The ID is stable across devices so the same annotation can be
// edited anywhere and reconciled by the sync engine.
//
// Deletion is logical: DeletedAt is a tombstone that must be retained so the
// deletion itself propagates to other devices during sync.
type Annotation struct {
	ID            uuid.UUID      `json:"id"`
	UserID        uuid.UUID      `json:"user_id"`
	BookID        uuid.UUID      `json:"book_id"`
	Type          AnnotationType `json:"type"`
	LocationStart string         `json:"location_start"`
	LocationEnd   *string        `json:"location_end,omitempty"`
	Content       *string        `json:"content,omitempty"`
	Style         *string        `json:"style,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     *time.Time     `json:"deleted_at,omitempty"`
}

// NewAnnotation creates an Annotation with a fresh ID and current timestamps.
// Returns an error if validation fails.
func NewAnnotation(
	userID, bookID uuid.UUID,
	annotationType AnnotationType,
	locationStart string,
) (*Annotation, error) {
	now := time.Now().UTC()
	a := &Annotation{
		ID:            uuid.New(),
		UserID:        userID,
		BookID:        bookID,
		Type:          annotationType,
		LocationStart: locationStart,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := a.Validate(); err != nil {
		return nil, err
	}

	return a, nil
}

// Validate checks if the Annotation has valid data.
func (a *Annotation) Validate() error {
	if a.ID == uuid.Nil {
		return ErrInvalidID
	}

	if a.UserID == uuid.Nil {
		return ErrInvalidID
	}

	if a.BookID == uuid.Nil {
		return ErrInvalidID
	}

	if !a.Type.IsValid() {
		return ErrInvalidAnnotationType
	}

	if a.LocationStart == "" {
		return ErrEmptyLocator
	}

	return nil
}

// IsDeleted reports whether this annotation has been soft-deleted.
func (a *Annotation) IsDeleted() bool {
	return a.DeletedAt != nil
}
