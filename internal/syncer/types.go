// Package syncer reconciles a device's offline edits against server state
// using last-write-wins conflict resolution and computes the delta the
// device must pull.
package syncer

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/shelfsync/internal/domain"
)

// Request is one device's batch of pending edits. LastSyncAt is the device's
// claimed cursor; nil means "never synced" and pulls the full state.
type Request struct {
	DeviceID      uuid.UUID          `json:"device_id"`
	LastSyncAt    *time.Time         `json:"last_sync_at,omitempty"`
	ReadingStates []ReadingStateEdit `json:"reading_states"`
	Annotations   []AnnotationEdit   `json:"annotations"`
}

// ReadingStateEdit is a client-side reading position change.
type ReadingStateEdit struct {
	BookID    uuid.UUID `json:"book_id"`
	Locator   string    `json:"locator"`
	Progress  float64   `json:"progress"`
	Chapter   string    `json:"chapter,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AnnotationEdit is a client-side annotation change. Deleted marks a
// tombstone request: the server soft-deletes rather than removing the row.
type AnnotationEdit struct {
	ID            uuid.UUID             `json:"id"`
	BookID        uuid.UUID             `json:"book_id"`
	Type          domain.AnnotationType `json:"type"`
	LocationStart string                `json:"location_start"`
	LocationEnd   *string               `json:"location_end,omitempty"`
	Content       *string               `json:"content,omitempty"`
	Style         *string               `json:"style,omitempty"`
	UpdatedAt     time.Time             `json:"updated_at"`
	Deleted       bool                  `json:"deleted"`
}

// Response carries the server's winning state back to the device: every
// entity changed since the device's prior cursor (tombstones included) plus
// a report of each rejected edit.
type Response struct {
	ServerTime    time.Time          `json:"server_time"`
	ReadingStates []ReadingStateEdit `json:"reading_states"`
	Annotations   []AnnotationEdit   `json:"annotations"`
	Conflicts     []Conflict         `json:"conflicts"`
}

// Resolution tags how a conflict was settled.
type Resolution string

// Possible conflict resolutions. Merged is reserved for field-level merge
// strategies and is never produced by whole-entity LWW.
const (
	ResolutionServerWins Resolution = "server_wins"
	ResolutionClientWins Resolution = "client_wins"
	ResolutionMerged     Resolution = "merged"
)

// Conflict reports one losing client edit. The server row is untouched and
// its winning copy is included in the response delta.
type Conflict struct {
	EntityType      string     `json:"entity_type"`
	EntityID        string     `json:"entity_id"`
	LocalUpdatedAt  time.Time  `json:"local_updated_at"`
	ServerUpdatedAt time.Time  `json:"server_updated_at"`
	Resolution      Resolution `json:"resolution"`
}

// readingStateEdit converts a persisted row into its wire form.
func readingStateEdit(rs *domain.ReadingState) ReadingStateEdit {
	return ReadingStateEdit{
		BookID:    rs.BookID,
		Locator:   rs.Locator,
		Progress:  rs.Progress,
		Chapter:   rs.Chapter,
		UpdatedAt: rs.UpdatedAt,
	}
}

// annotationEdit converts a persisted row into its wire form, carrying the
// tombstone flag so deletions replicate.
func annotationEdit(a *domain.Annotation) AnnotationEdit {
	return AnnotationEdit{
		ID:            a.ID,
		BookID:        a.BookID,
		Type:          a.Type,
		LocationStart: a.LocationStart,
		LocationEnd:   a.LocationEnd,
		Content:       a.Content,
		Style:         a.Style,
		UpdatedAt:     a.UpdatedAt,
		Deleted:       a.IsDeleted(),
	}
}
