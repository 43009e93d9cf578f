package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/shelfsync/internal/domain"
)

func TestPDFExtractorFormat(t *testing.T) {
	t.Parallel()

	assert.Equal(t, domain.FormatPDF, NewPDFExtractor().Format())
}

func TestPDFExtractMetadataRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := NewPDFExtractor().ExtractMetadata([]byte("definitely not a pdf"))
	require.Error(t, err)
}

func TestPDFExtractCoverIsAlwaysAbsent(t *testing.T) {
	t.Parallel()

	// PDF pages are not images; rendering one is out of scope, so cover
	// extraction reports "no cover" for every input.
	cover, err := NewPDFExtractor().ExtractCover([]byte("anything"))
	require.NoError(t, err)
	assert.Nil(t, cover)
}

func TestDefaultRegistryCoversAllFormats(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry()

	e, ok := r.ForFormat(domain.FormatEPUB)
	require.True(t, ok)
	assert.Equal(t, domain.FormatEPUB, e.Format())

	e, ok = r.ForFormat(domain.FormatPDF)
	require.True(t, ok)
	assert.Equal(t, domain.FormatPDF, e.Format())

	_, ok = r.ForFormat(domain.BookFormat("mobi"))
	assert.False(t, ok)
}
