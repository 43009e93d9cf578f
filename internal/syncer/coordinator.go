package syncer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/shelfsync/internal/domain"
	"github.com/phrazzld/shelfsync/internal/platform/logger"
	"github.com/phrazzld/shelfsync/internal/store"
)

// ErrDeviceOwnership is returned when the device in a sync request does not
// belong to the requesting user.
var ErrDeviceOwnership = errors.New("device does not belong to user")

// Coordinator applies a device's pending edits against server truth and
// computes the outbound delta. Each batch runs inside a single database
// transaction, so a failure anywhere rolls back every earlier write.
type Coordinator struct {
	tx            store.TxRunner
	readingStates store.ReadingStateStore
	annotations   store.AnnotationStore
	devices       store.DeviceStore
}

// NewCoordinator creates a Coordinator over the given transaction runner
// and stores.
func NewCoordinator(
	tx store.TxRunner,
	readingStates store.ReadingStateStore,
	annotations store.AnnotationStore,
	devices store.DeviceStore,
) *Coordinator {
	return &Coordinator{
		tx:            tx,
		readingStates: readingStates,
		annotations:   annotations,
		devices:       devices,
	}
}

// withTx returns a copy of the coordinator whose stores are bound to tx.
func (c *Coordinator) withTx(tx *sql.Tx) *Coordinator {
	return &Coordinator{
		tx:            c.tx,
		readingStates: c.readingStates.WithTx(tx),
		annotations:   c.annotations.WithTx(tx),
		devices:       c.devices.WithTx(tx),
	}
}

// ProcessSync reconciles one device's batch of edits and returns the delta
// the device must pull.
//
// Each edit is merged whole-entity last-write-wins: the server row wins
// strictly-newer comparisons (the edit is rejected and reported), the client
// wins strictly-newer comparisons (the server row is replaced), and equal
// timestamps are treated as an idempotent replay.
//
// The whole batch, merges through cursor write, runs in one transaction
// against a single server time captured at the start of the call. Any
// persistence error rolls everything back with the cursor unmoved, so a
// retry resubmits the complete batch safely. There is no partial
// application and no per-item acknowledgment.
func (c *Coordinator) ProcessSync(
	ctx context.Context,
	userID uuid.UUID,
	req *Request,
) (*Response, error) {
	log := logger.FromContext(ctx).With("user_id", userID, "device_id", req.DeviceID)

	serverTime := time.Now().UTC()

	device, err := c.devices.GetByID(ctx, req.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load device: %w", err)
	}
	if device.UserID != userID {
		return nil, ErrDeviceOwnership
	}

	// The cursor the delta is computed against is the one the client
	// presented, falling back to the zero time for a first sync.
	var lastSyncAt time.Time
	if req.LastSyncAt != nil {
		lastSyncAt = *req.LastSyncAt
	}

	var resp *Response
	err = c.tx.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var batchErr error
		resp, batchErr = c.withTx(tx).applyBatch(ctx, userID, req, lastSyncAt, serverTime)
		return batchErr
	})
	if err != nil {
		return nil, err
	}

	log.Debug("sync processed",
		"pushed_states", len(req.ReadingStates),
		"pushed_annotations", len(req.Annotations),
		"pulled_states", len(resp.ReadingStates),
		"pulled_annotations", len(resp.Annotations),
		"conflicts", len(resp.Conflicts))

	return resp, nil
}

// applyBatch merges the pushed edits, reads the outbound delta, and
// advances the device cursor. It runs on a transaction-bound coordinator;
// returning an error rolls back every write in the batch.
func (c *Coordinator) applyBatch(
	ctx context.Context,
	userID uuid.UUID,
	req *Request,
	lastSyncAt, serverTime time.Time,
) (*Response, error) {
	// Kept non-nil so a conflict-free response serializes as an empty array,
	// matching the other response collections.
	conflicts := make([]Conflict, 0)

	for i := range req.ReadingStates {
		conflict, err := c.mergeReadingState(ctx, userID, req.DeviceID, &req.ReadingStates[i])
		if err != nil {
			return nil, fmt.Errorf("failed to merge reading state for book %s: %w",
				req.ReadingStates[i].BookID, err)
		}
		if conflict != nil {
			conflicts = append(conflicts, *conflict)
		}
	}

	for i := range req.Annotations {
		conflict, err := c.mergeAnnotation(ctx, userID, &req.Annotations[i])
		if err != nil {
			return nil, fmt.Errorf("failed to merge annotation %s: %w",
				req.Annotations[i].ID, err)
		}
		if conflict != nil {
			conflicts = append(conflicts, *conflict)
		}
	}

	// Outbound delta: everything updated after the device's prior cursor,
	// whoever authored it. A rejected edit's winning server copy comes back
	// through here too.
	states, err := c.readingStates.ListUpdatedSince(ctx, userID, lastSyncAt)
	if err != nil {
		return nil, fmt.Errorf("failed to list changed reading states: %w", err)
	}

	annotations, err := c.annotations.ListUpdatedSince(ctx, userID, lastSyncAt)
	if err != nil {
		return nil, fmt.Errorf("failed to list changed annotations: %w", err)
	}

	// The cursor moves last, inside the same transaction, so it commits
	// together with the batch it fences.
	if err := c.devices.UpdateLastSync(ctx, req.DeviceID, serverTime); err != nil {
		return nil, fmt.Errorf("failed to advance sync cursor: %w", err)
	}

	resp := &Response{
		ServerTime:    serverTime,
		ReadingStates: make([]ReadingStateEdit, 0, len(states)),
		Annotations:   make([]AnnotationEdit, 0, len(annotations)),
		Conflicts:     conflicts,
	}
	for _, rs := range states {
		resp.ReadingStates = append(resp.ReadingStates, readingStateEdit(rs))
	}
	for _, a := range annotations {
		resp.Annotations = append(resp.Annotations, annotationEdit(a))
	}

	return resp, nil
}

// mergeReadingState applies one reading position edit under LWW.
func (c *Coordinator) mergeReadingState(
	ctx context.Context,
	userID, deviceID uuid.UUID,
	edit *ReadingStateEdit,
) (*Conflict, error) {
	server, err := c.readingStates.GetForBook(ctx, userID, edit.BookID)
	if err != nil {
		if !store.IsNotFoundError(err) {
			return nil, err
		}
		// No server row: insert unconditionally, no conflict.
		return nil, c.readingStates.Upsert(ctx, c.stateFromEdit(userID, deviceID, edit))
	}

	switch {
	case server.UpdatedAt.After(edit.UpdatedAt):
		// Server wins; row untouched, edit rejected and reported.
		return &Conflict{
			EntityType:      "reading_state",
			EntityID:        edit.BookID.String(),
			LocalUpdatedAt:  edit.UpdatedAt,
			ServerUpdatedAt: server.UpdatedAt,
			Resolution:      ResolutionServerWins,
		}, nil

	case server.UpdatedAt.Before(edit.UpdatedAt):
		// Client wins; replace the server row, keeping the client timestamp.
		state := c.stateFromEdit(userID, deviceID, edit)
		state.ID = server.ID
		return nil, c.readingStates.Upsert(ctx, state)

	default:
		// Equal timestamps: idempotent replay, no conflict.
		return nil, nil
	}
}

// mergeAnnotation applies one annotation edit under LWW, with the extra
// tombstone branches: a deletion against an absent row is a no-op, and a
// winning deletion soft-deletes so the tombstone replicates.
func (c *Coordinator) mergeAnnotation(
	ctx context.Context,
	userID uuid.UUID,
	edit *AnnotationEdit,
) (*Conflict, error) {
	server, err := c.annotations.GetByID(ctx, edit.ID)
	if err != nil {
		if !store.IsNotFoundError(err) {
			return nil, err
		}
		if edit.Deleted {
			// Deleting something the server never saw: nothing to do.
			return nil, nil
		}
		return nil, c.annotations.Upsert(ctx, c.annotationFromEdit(userID, edit))
	}

	switch {
	case server.UpdatedAt.After(edit.UpdatedAt):
		return &Conflict{
			EntityType:      "annotation",
			EntityID:        edit.ID.String(),
			LocalUpdatedAt:  edit.UpdatedAt,
			ServerUpdatedAt: server.UpdatedAt,
			Resolution:      ResolutionServerWins,
		}, nil

	case server.UpdatedAt.Before(edit.UpdatedAt):
		if edit.Deleted {
			return nil, c.annotations.SoftDelete(ctx, edit.ID, edit.UpdatedAt)
		}
		return nil, c.annotations.Upsert(ctx, c.annotationFromEdit(userID, edit))

	default:
		return nil, nil
	}
}

func (c *Coordinator) stateFromEdit(
	userID, deviceID uuid.UUID,
	edit *ReadingStateEdit,
) *domain.ReadingState {
	return &domain.ReadingState{
		ID:        uuid.New(),
		UserID:    userID,
		BookID:    edit.BookID,
		DeviceID:  deviceID,
		Locator:   edit.Locator,
		Progress:  edit.Progress,
		Chapter:   edit.Chapter,
		UpdatedAt: edit.UpdatedAt,
	}
}

func (c *Coordinator) annotationFromEdit(
	userID uuid.UUID,
	edit *AnnotationEdit,
) *domain.Annotation {
	return &domain.Annotation{
		ID:            edit.ID,
		UserID:        userID,
		BookID:        edit.BookID,
		Type:          edit.Type,
		LocationStart: edit.LocationStart,
		LocationEnd:   edit.LocationEnd,
		Content:       edit.Content,
		Style:         edit.Style,
		CreatedAt:     edit.UpdatedAt,
		UpdatedAt:     edit.UpdatedAt,
	}
}
