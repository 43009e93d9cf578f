package syncer_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/shelfsync/internal/domain"
	"github.com/phrazzld/shelfsync/internal/store"
	"github.com/phrazzld/shelfsync/internal/syncer"
)

// --- in-memory fakes ---

type stateKey struct {
	userID uuid.UUID
	bookID uuid.UUID
}

type fakeReadingStateStore struct {
	mu        sync.Mutex
	states    map[stateKey]*domain.ReadingState
	upsertErr error
}

func newFakeReadingStateStore() *fakeReadingStateStore {
	return &fakeReadingStateStore{states: make(map[stateKey]*domain.ReadingState)}
}

func (f *fakeReadingStateStore) GetForBook(
	_ context.Context,
	userID, bookID uuid.UUID,
) (*domain.ReadingState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[stateKey{userID, bookID}]
	if !ok {
		return nil, store.ErrReadingStateNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeReadingStateStore) Upsert(_ context.Context, state *domain.ReadingState) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *state
	f.states[stateKey{state.UserID, state.BookID}] = &cp
	return nil
}

func (f *fakeReadingStateStore) ListUpdatedSince(
	_ context.Context,
	userID uuid.UUID,
	since time.Time,
) ([]*domain.ReadingState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.ReadingState
	for k, s := range f.states {
		if k.userID == userID && s.UpdatedAt.After(since) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeReadingStateStore) WithTx(_ *sql.Tx) store.ReadingStateStore { return f }

type fakeAnnotationStore struct {
	mu          sync.Mutex
	annotations map[uuid.UUID]*domain.Annotation
}

func newFakeAnnotationStore() *fakeAnnotationStore {
	return &fakeAnnotationStore{annotations: make(map[uuid.UUID]*domain.Annotation)}
}

func (f *fakeAnnotationStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Annotation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.annotations[id]
	if !ok {
		return nil, store.ErrAnnotationNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAnnotationStore) Upsert(_ context.Context, a *domain.Annotation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *a
	cp.DeletedAt = nil
	f.annotations[a.ID] = &cp
	return nil
}

func (f *fakeAnnotationStore) SoftDelete(_ context.Context, id uuid.UUID, deletedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.annotations[id]
	if !ok {
		return store.ErrAnnotationNotFound
	}
	ts := deletedAt
	a.DeletedAt = &ts
	a.UpdatedAt = deletedAt
	return nil
}

func (f *fakeAnnotationStore) ListUpdatedSince(
	_ context.Context,
	userID uuid.UUID,
	since time.Time,
) ([]*domain.Annotation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Annotation
	for _, a := range f.annotations {
		if a.UserID == userID && a.UpdatedAt.After(since) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeAnnotationStore) WithTx(_ *sql.Tx) store.AnnotationStore { return f }

type fakeDeviceStore struct {
	mu          sync.Mutex
	devices     map[uuid.UUID]*domain.Device
	cursorMoves int
}

func newFakeDeviceStore() *fakeDeviceStore {
	return &fakeDeviceStore{devices: make(map[uuid.UUID]*domain.Device)}
}

func (f *fakeDeviceStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[id]
	if !ok {
		return nil, store.ErrDeviceNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDeviceStore) Create(_ context.Context, d *domain.Device) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *d
	f.devices[d.ID] = &cp
	return nil
}

func (f *fakeDeviceStore) UpdateLastSync(_ context.Context, deviceID uuid.UUID, syncedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[deviceID]
	if !ok {
		return store.ErrDeviceNotFound
	}
	ts := syncedAt
	d.LastSyncAt = &ts
	f.cursorMoves++
	return nil
}

func (f *fakeDeviceStore) cursor(deviceID uuid.UUID) *time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devices[deviceID].LastSyncAt
}

func (f *fakeDeviceStore) WithTx(_ *sql.Tx) store.DeviceStore { return f }

// fakeTxRunner runs the function directly, with no real transaction
// underneath, and counts how each batch ended.
type fakeTxRunner struct {
	mu        sync.Mutex
	commits   int
	rollbacks int
}

func (r *fakeTxRunner) RunInTransaction(ctx context.Context, fn store.TxFn) error {
	err := fn(ctx, nil)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.rollbacks++
		return err
	}
	r.commits++
	return nil
}

func (r *fakeTxRunner) outcomes() (commits, rollbacks int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commits, r.rollbacks
}

// --- test harness ---

type syncFixture struct {
	coordinator *syncer.Coordinator
	tx          *fakeTxRunner
	states      *fakeReadingStateStore
	annotations *fakeAnnotationStore
	devices     *fakeDeviceStore
	userID      uuid.UUID
	deviceID    uuid.UUID
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()

	tx := &fakeTxRunner{}
	states := newFakeReadingStateStore()
	annotations := newFakeAnnotationStore()
	devices := newFakeDeviceStore()

	userID := uuid.New()
	device, err := domain.NewDevice(userID, "kobo-libra", "ereader")
	require.NoError(t, err)
	require.NoError(t, devices.Create(context.Background(), device))

	return &syncFixture{
		coordinator: syncer.NewCoordinator(tx, states, annotations, devices),
		tx:          tx,
		states:      states,
		annotations: annotations,
		devices:     devices,
		userID:      userID,
		deviceID:    device.ID,
	}
}

func strPtr(s string) *string { return &s }

// --- tests ---

func TestProcessSync_FirstSyncInsertsAndAdvancesCursor(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t)
	bookID := uuid.New()
	editedAt := time.Now().UTC().Add(-time.Minute)

	resp, err := f.coordinator.ProcessSync(context.Background(), f.userID, &syncer.Request{
		DeviceID: f.deviceID,
		ReadingStates: []syncer.ReadingStateEdit{
			{BookID: bookID, Locator: "epubcfi(/6/4!/4/2)", Progress: 0.25, UpdatedAt: editedAt},
		},
	})
	require.NoError(t, err)

	assert.Empty(t, resp.Conflicts)
	require.Len(t, resp.ReadingStates, 1)
	assert.Equal(t, bookID, resp.ReadingStates[0].BookID)
	// Client timestamp persisted verbatim, not replaced with server time.
	assert.True(t, resp.ReadingStates[0].UpdatedAt.Equal(editedAt))

	cursor := f.devices.cursor(f.deviceID)
	require.NotNil(t, cursor)
	assert.True(t, cursor.Equal(resp.ServerTime))

	commits, rollbacks := f.tx.outcomes()
	assert.Equal(t, 1, commits)
	assert.Zero(t, rollbacks)
}

func TestProcessSync_ConflictFreeResponseKeepsEmptyCollections(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t)

	resp, err := f.coordinator.ProcessSync(context.Background(), f.userID, &syncer.Request{
		DeviceID: f.deviceID,
	})
	require.NoError(t, err)

	// Every collection serializes as an empty array, never null, so
	// clients can iterate without nil checks.
	body, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"conflicts":[]`)
	assert.Contains(t, string(body), `"reading_states":[]`)
	assert.Contains(t, string(body), `"annotations":[]`)
}

func TestProcessSync_ServerNewerRejectsEditAndReportsConflict(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t)
	bookID := uuid.New()
	serverTime := time.Now().UTC()

	serverState := &domain.ReadingState{
		ID:        uuid.New(),
		UserID:    f.userID,
		BookID:    bookID,
		DeviceID:  uuid.New(),
		Locator:   "epubcfi(/6/20!/4/2)",
		Progress:  0.8,
		UpdatedAt: serverTime,
	}
	require.NoError(t, f.states.Upsert(context.Background(), serverState))

	staleEdit := serverTime.Add(-time.Hour)
	resp, err := f.coordinator.ProcessSync(context.Background(), f.userID, &syncer.Request{
		DeviceID: f.deviceID,
		ReadingStates: []syncer.ReadingStateEdit{
			{BookID: bookID, Locator: "epubcfi(/6/2!/4/2)", Progress: 0.1, UpdatedAt: staleEdit},
		},
	})
	require.NoError(t, err)

	require.Len(t, resp.Conflicts, 1)
	c := resp.Conflicts[0]
	assert.Equal(t, "reading_state", c.EntityType)
	assert.Equal(t, bookID.String(), c.EntityID)
	assert.Equal(t, syncer.ResolutionServerWins, c.Resolution)
	assert.True(t, c.LocalUpdatedAt.Equal(staleEdit))
	assert.True(t, c.ServerUpdatedAt.Equal(serverTime))

	// Server row untouched, and its winning copy is in the pulled delta.
	kept, err := f.states.GetForBook(context.Background(), f.userID, bookID)
	require.NoError(t, err)
	assert.Equal(t, 0.8, kept.Progress)
	assert.Equal(t, "epubcfi(/6/20!/4/2)", kept.Locator)

	require.Len(t, resp.ReadingStates, 1)
	assert.Equal(t, 0.8, resp.ReadingStates[0].Progress)
}

func TestProcessSync_ClientNewerReplacesWholeRow(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t)
	bookID := uuid.New()
	old := time.Now().UTC().Add(-time.Hour)

	serverState := &domain.ReadingState{
		ID:        uuid.New(),
		UserID:    f.userID,
		BookID:    bookID,
		DeviceID:  uuid.New(),
		Locator:   "epubcfi(/6/2!/4/2)",
		Progress:  0.1,
		Chapter:   "Chapter 1",
		UpdatedAt: old,
	}
	require.NoError(t, f.states.Upsert(context.Background(), serverState))

	editedAt := old.Add(30 * time.Minute)
	resp, err := f.coordinator.ProcessSync(context.Background(), f.userID, &syncer.Request{
		DeviceID: f.deviceID,
		ReadingStates: []syncer.ReadingStateEdit{
			{BookID: bookID, Locator: "epubcfi(/6/8!/4/2)", Progress: 0.4, UpdatedAt: editedAt},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Conflicts)

	merged, err := f.states.GetForBook(context.Background(), f.userID, bookID)
	require.NoError(t, err)
	assert.Equal(t, serverState.ID, merged.ID)
	assert.Equal(t, 0.4, merged.Progress)
	assert.Equal(t, "epubcfi(/6/8!/4/2)", merged.Locator)
	assert.True(t, merged.UpdatedAt.Equal(editedAt))
	// Whole-entity replacement: the stale chapter does not survive.
	assert.Empty(t, merged.Chapter)
	assert.Equal(t, f.deviceID, merged.DeviceID)
}

func TestProcessSync_EqualTimestampsIsIdempotentNoOp(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t)
	bookID := uuid.New()
	ts := time.Now().UTC().Add(-time.Minute)

	serverState := &domain.ReadingState{
		ID:        uuid.New(),
		UserID:    f.userID,
		BookID:    bookID,
		DeviceID:  f.deviceID,
		Locator:   "epubcfi(/6/4!/4/2)",
		Progress:  0.25,
		UpdatedAt: ts,
	}
	require.NoError(t, f.states.Upsert(context.Background(), serverState))

	resp, err := f.coordinator.ProcessSync(context.Background(), f.userID, &syncer.Request{
		DeviceID: f.deviceID,
		ReadingStates: []syncer.ReadingStateEdit{
			{BookID: bookID, Locator: "epubcfi(/6/4!/4/2)", Progress: 0.25, UpdatedAt: ts},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Conflicts)

	kept, err := f.states.GetForBook(context.Background(), f.userID, bookID)
	require.NoError(t, err)
	assert.Equal(t, serverState.ID, kept.ID)
	assert.True(t, kept.UpdatedAt.Equal(ts))
}

func TestProcessSync_ReplayedBatchProducesSameOutcome(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t)
	bookID := uuid.New()
	annID := uuid.New()
	editedAt := time.Now().UTC().Add(-time.Minute)

	req := &syncer.Request{
		DeviceID: f.deviceID,
		ReadingStates: []syncer.ReadingStateEdit{
			{BookID: bookID, Locator: "loc-10", Progress: 0.5, UpdatedAt: editedAt},
		},
		Annotations: []syncer.AnnotationEdit{
			{
				ID:            annID,
				BookID:        bookID,
				Type:          domain.AnnotationTypeHighlight,
				LocationStart: "loc-8",
				Content:       strPtr("a fine passage"),
				UpdatedAt:     editedAt,
			},
		},
	}

	_, err := f.coordinator.ProcessSync(context.Background(), f.userID, req)
	require.NoError(t, err)

	// A client that never received the response retries the identical batch.
	resp, err := f.coordinator.ProcessSync(context.Background(), f.userID, req)
	require.NoError(t, err)
	assert.Empty(t, resp.Conflicts)

	state, err := f.states.GetForBook(context.Background(), f.userID, bookID)
	require.NoError(t, err)
	assert.True(t, state.UpdatedAt.Equal(editedAt))

	ann, err := f.annotations.GetByID(context.Background(), annID)
	require.NoError(t, err)
	assert.True(t, ann.UpdatedAt.Equal(editedAt))
	assert.False(t, ann.IsDeleted())
}

func TestProcessSync_TombstonePropagatesToOtherDevice(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t)
	bookID := uuid.New()
	annID := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)

	deviceB, err := domain.NewDevice(f.userID, "boox-page", "ereader")
	require.NoError(t, err)
	require.NoError(t, f.devices.Create(context.Background(), deviceB))

	// Device A creates the annotation.
	_, err = f.coordinator.ProcessSync(context.Background(), f.userID, &syncer.Request{
		DeviceID: f.deviceID,
		Annotations: []syncer.AnnotationEdit{
			{
				ID:            annID,
				BookID:        bookID,
				Type:          domain.AnnotationTypeNote,
				LocationStart: "loc-3",
				Content:       strPtr("check this later"),
				UpdatedAt:     base,
			},
		},
	})
	require.NoError(t, err)

	// Device A deletes it later.
	deletedAt := base.Add(10 * time.Minute)
	_, err = f.coordinator.ProcessSync(context.Background(), f.userID, &syncer.Request{
		DeviceID:   f.deviceID,
		LastSyncAt: &base,
		Annotations: []syncer.AnnotationEdit{
			{
				ID:            annID,
				BookID:        bookID,
				Type:          domain.AnnotationTypeNote,
				LocationStart: "loc-3",
				UpdatedAt:     deletedAt,
				Deleted:       true,
			},
		},
	})
	require.NoError(t, err)

	// Device B's first sync pulls the tombstone, not a vanished row.
	resp, err := f.coordinator.ProcessSync(context.Background(), f.userID, &syncer.Request{
		DeviceID: deviceB.ID,
	})
	require.NoError(t, err)

	require.Len(t, resp.Annotations, 1)
	assert.Equal(t, annID, resp.Annotations[0].ID)
	assert.True(t, resp.Annotations[0].Deleted)
	assert.True(t, resp.Annotations[0].UpdatedAt.Equal(deletedAt))
}

func TestProcessSync_DeleteOfUnknownAnnotationIsNoOp(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t)

	resp, err := f.coordinator.ProcessSync(context.Background(), f.userID, &syncer.Request{
		DeviceID: f.deviceID,
		Annotations: []syncer.AnnotationEdit{
			{
				ID:            uuid.New(),
				BookID:        uuid.New(),
				Type:          domain.AnnotationTypeHighlight,
				LocationStart: "loc-1",
				UpdatedAt:     time.Now().UTC(),
				Deleted:       true,
			},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Conflicts)
	assert.Empty(t, resp.Annotations)
}

func TestProcessSync_StaleDeleteLosesToNewerServerEdit(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t)
	bookID := uuid.New()
	annID := uuid.New()
	serverTime := time.Now().UTC()

	ann := &domain.Annotation{
		ID:            annID,
		UserID:        f.userID,
		BookID:        bookID,
		Type:          domain.AnnotationTypeHighlight,
		LocationStart: "loc-5",
		Content:       strPtr("revised on another device"),
		CreatedAt:     serverTime.Add(-time.Hour),
		UpdatedAt:     serverTime,
	}
	require.NoError(t, f.annotations.Upsert(context.Background(), ann))

	resp, err := f.coordinator.ProcessSync(context.Background(), f.userID, &syncer.Request{
		DeviceID: f.deviceID,
		Annotations: []syncer.AnnotationEdit{
			{
				ID:            annID,
				BookID:        bookID,
				Type:          domain.AnnotationTypeHighlight,
				LocationStart: "loc-5",
				UpdatedAt:     serverTime.Add(-time.Minute),
				Deleted:       true,
			},
		},
	})
	require.NoError(t, err)

	require.Len(t, resp.Conflicts, 1)
	assert.Equal(t, "annotation", resp.Conflicts[0].EntityType)
	assert.Equal(t, syncer.ResolutionServerWins, resp.Conflicts[0].Resolution)

	kept, err := f.annotations.GetByID(context.Background(), annID)
	require.NoError(t, err)
	assert.False(t, kept.IsDeleted())
}

func TestProcessSync_DeltaExcludesRowsAtOrBeforeCursor(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t)
	cursor := time.Now().UTC().Add(-time.Hour)

	older := &domain.ReadingState{
		ID: uuid.New(), UserID: f.userID, BookID: uuid.New(), DeviceID: uuid.New(),
		Locator: "loc-old", UpdatedAt: cursor.Add(-time.Minute),
	}
	atCursor := &domain.ReadingState{
		ID: uuid.New(), UserID: f.userID, BookID: uuid.New(), DeviceID: uuid.New(),
		Locator: "loc-boundary", UpdatedAt: cursor,
	}
	newer := &domain.ReadingState{
		ID: uuid.New(), UserID: f.userID, BookID: uuid.New(), DeviceID: uuid.New(),
		Locator: "loc-new", UpdatedAt: cursor.Add(time.Minute),
	}
	for _, s := range []*domain.ReadingState{older, atCursor, newer} {
		require.NoError(t, f.states.Upsert(context.Background(), s))
	}

	resp, err := f.coordinator.ProcessSync(context.Background(), f.userID, &syncer.Request{
		DeviceID:   f.deviceID,
		LastSyncAt: &cursor,
	})
	require.NoError(t, err)

	// Strictly greater than the cursor: the boundary row stays out.
	require.Len(t, resp.ReadingStates, 1)
	assert.Equal(t, "loc-new", resp.ReadingStates[0].Locator)
}

func TestProcessSync_PersistenceErrorLeavesCursorUnmoved(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t)
	f.states.upsertErr = errors.New("connection reset")

	_, err := f.coordinator.ProcessSync(context.Background(), f.userID, &syncer.Request{
		DeviceID: f.deviceID,
		ReadingStates: []syncer.ReadingStateEdit{
			{BookID: uuid.New(), Locator: "loc-1", Progress: 0.5, UpdatedAt: time.Now().UTC()},
		},
	})
	require.Error(t, err)

	assert.Nil(t, f.devices.cursor(f.deviceID))
	assert.Zero(t, f.devices.cursorMoves)

	// The failed batch rolled back rather than committing partially.
	commits, rollbacks := f.tx.outcomes()
	assert.Zero(t, commits)
	assert.Equal(t, 1, rollbacks)
}

func TestProcessSync_RejectsDeviceOfAnotherUser(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t)

	_, err := f.coordinator.ProcessSync(context.Background(), uuid.New(), &syncer.Request{
		DeviceID: f.deviceID,
	})
	require.ErrorIs(t, err, syncer.ErrDeviceOwnership)
}

func TestProcessSync_UnknownDevice(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t)

	_, err := f.coordinator.ProcessSync(context.Background(), f.userID, &syncer.Request{
		DeviceID: uuid.New(),
	})
	require.ErrorIs(t, err, store.ErrDeviceNotFound)
}
