package storage

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *LocalStorage {
	t.Helper()

	s, err := NewLocalStorage(
		filepath.Join(t.TempDir(), "files"),
		filepath.Join(t.TempDir(), "covers"),
	)
	require.NoError(t, err)
	return s
}

func TestStoreAndRetrieveRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)
	ctx := context.Background()
	data := []byte("the entire text of a novel")
	hash := ComputeHash(data)

	path, err := s.Store(ctx, hash, data)
	require.NoError(t, err)

	// Two-level fan-out keyed on the hash prefix.
	assert.Equal(t, filepath.Join(hash[:2], hash[2:4], hash), path)

	got, err := s.Retrieve(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	exists, err := s.Exists(ctx, path)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStoreIsIdempotentForSameContent(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)
	ctx := context.Background()
	data := []byte("same bytes")
	hash := ComputeHash(data)

	first, err := s.Store(ctx, hash, data)
	require.NoError(t, err)
	second, err := s.Store(ctx, hash, data)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRetrieveMissingFile(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)

	_, err := s.Retrieve(context.Background(), "ab/cd/abcdef")
	require.ErrorIs(t, err, ErrFileNotFound)

	exists, err := s.Exists(context.Background(), "ab/cd/abcdef")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)
	ctx := context.Background()
	data := []byte("to be removed")
	hash := ComputeHash(data)

	path, err := s.Store(ctx, hash, data)
	require.NoError(t, err)

	removed, err := s.Delete(ctx, path)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Delete(ctx, path)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestComputeHash(t *testing.T) {
	t.Parallel()

	h := ComputeHash([]byte("hello"))
	assert.Len(t, h, 64)
	assert.Equal(t, ComputeHash([]byte("hello")), h)
	assert.NotEqual(t, ComputeHash([]byte("world")), h)
}

func TestHashToPathRejectsShortHash(t *testing.T) {
	t.Parallel()

	_, err := hashToPath("ab")
	require.Error(t, err)
}

// testPNG renders a small solid-color image as PNG bytes.
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 180, G: 40, B: 40, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestStoreCoverWritesAllVariants(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)
	ctx := context.Background()
	bookID := uuid.New()

	paths, err := s.StoreCover(ctx, bookID, testPNG(t, 800, 1200))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(bookID.String(), "small.jpg"), paths.Small)
	assert.Equal(t, filepath.Join(bookID.String(), "medium.jpg"), paths.Medium)
	assert.Equal(t, filepath.Join(bookID.String(), "large.jpg"), paths.Large)

	exists, err := s.CoverExists(ctx, bookID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStoreCoverRejectsUndecodableImage(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)

	_, err := s.StoreCover(context.Background(), uuid.New(), []byte("not an image"))
	require.Error(t, err)

	exists, err := s.CoverExists(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCoverExistsFalseWhenVariantMissing(t *testing.T) {
	t.Parallel()

	s := newTestStorage(t)

	exists, err := s.CoverExists(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, exists)
}
