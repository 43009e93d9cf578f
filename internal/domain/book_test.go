package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/shelfsync/internal/domain"
)

func TestParseBookFormat(t *testing.T) {
	t.Parallel()

	got, err := domain.ParseBookFormat("epub")
	require.NoError(t, err)
	assert.Equal(t, domain.FormatEPUB, got)

	got, err = domain.ParseBookFormat("pdf")
	require.NoError(t, err)
	assert.Equal(t, domain.FormatPDF, got)

	_, err = domain.ParseBookFormat("mobi")
	assert.ErrorIs(t, err, domain.ErrInvalidBookFormat)
}

func TestCoverSizeDimensions(t *testing.T) {
	t.Parallel()

	w, h := domain.CoverSizeSmall.Dimensions()
	assert.Equal(t, 100, w)
	assert.Equal(t, 150, h)

	w, h = domain.CoverSizeMedium.Dimensions()
	assert.Equal(t, 200, w)
	assert.Equal(t, 300, h)

	w, h = domain.CoverSizeLarge.Dimensions()
	assert.Equal(t, 400, w)
	assert.Equal(t, 600, h)
}

func TestNewCover(t *testing.T) {
	t.Parallel()

	bookID := uuid.New()
	c := domain.NewCover(bookID, domain.CoverSizeMedium, "covers/x/medium.jpg")

	assert.NotEqual(t, uuid.Nil, c.ID)
	assert.Equal(t, bookID, c.BookID)
	assert.Equal(t, 200, c.Width)
	assert.Equal(t, 300, c.Height)
	assert.Equal(t, "covers/x/medium.jpg", c.StoragePath)
}

func TestAllCoverSizes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []domain.CoverSize{
		domain.CoverSizeSmall,
		domain.CoverSizeMedium,
		domain.CoverSizeLarge,
	}, domain.AllCoverSizes())
}
