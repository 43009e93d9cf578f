// Package extract pulls metadata and cover images out of book files.
package extract

import (
	"github.com/phrazzld/shelfsync/internal/domain"
)

// Metadata holds the fields an extractor can recover from a book file.
// Empty fields mean the format carried no value; callers decide whether to
// fall back to previously stored metadata.
type Metadata struct {
	Title         string
	Authors       []string
	Description   string
	Language      string
	Publisher     string
	PublishedDate string
	ISBN          string
	Subjects      []string
}

// HasData reports whether the extraction recovered anything meaningful.
func (m *Metadata) HasData() bool {
	return m.Title != "" || len(m.Authors) > 0 || m.Description != ""
}

// Extractor parses one book format.
type Extractor interface {
	// Format returns the book format this extractor supports.
	Format() domain.BookFormat

	// ExtractMetadata parses the file and returns whatever metadata the
	// format carries.
	ExtractMetadata(data []byte) (*Metadata, error)

	// ExtractCover returns the embedded cover image bytes, or (nil, nil)
	// when the file has no cover.
	ExtractCover(data []byte) ([]byte, error)
}

// Registry resolves an extractor for a book format. An unknown format is
// not an error at lookup time; callers handle the miss.
type Registry interface {
	ForFormat(format domain.BookFormat) (Extractor, bool)
}

type registry struct {
	extractors map[domain.BookFormat]Extractor
}

// NewRegistry builds a Registry from the given extractors.
func NewRegistry(extractors ...Extractor) Registry {
	m := make(map[domain.BookFormat]Extractor, len(extractors))
	for _, e := range extractors {
		m[e.Format()] = e
	}
	return &registry{extractors: m}
}

// DefaultRegistry returns a Registry covering every supported format.
func DefaultRegistry() Registry {
	return NewRegistry(NewEPUBExtractor(), NewPDFExtractor())
}

func (r *registry) ForFormat(format domain.BookFormat) (Extractor, bool) {
	e, ok := r.extractors[format]
	return e, ok
}
