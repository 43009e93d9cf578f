package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
	"github.com/phrazzld/shelfsync/internal/domain"
)

// PDFExtractor reads metadata from the PDF trailer's Info dictionary.
// PDFs carry no standard embedded cover image, so ExtractCover always
// reports none; cover generation falls back to nothing for this format.
type PDFExtractor struct{}

// NewPDFExtractor creates a PDFExtractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Format returns the book format this extractor supports.
func (e *PDFExtractor) Format() domain.BookFormat {
	return domain.FormatPDF
}

// ExtractMetadata reads Title, Author, Subject, and Keywords from the Info
// dictionary when present.
func (e *PDFExtractor) ExtractMetadata(data []byte) (*Metadata, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse PDF: %w", err)
	}

	md := &Metadata{}

	info := r.Trailer().Key("Info")
	if info.Kind() != pdf.Dict {
		return md, nil
	}

	if title := infoString(info, "Title"); title != "" {
		md.Title = title
	}
	if author := infoString(info, "Author"); author != "" {
		md.Authors = splitNames(author, ",;&")
	}
	if subject := infoString(info, "Subject"); subject != "" {
		md.Description = subject
	}
	if keywords := infoString(info, "Keywords"); keywords != "" {
		md.Subjects = splitNames(keywords, ",;")
	}

	return md, nil
}

// ExtractCover always returns (nil, nil); see the type comment.
func (e *PDFExtractor) ExtractCover(_ []byte) ([]byte, error) {
	return nil, nil
}

// infoString pulls one string entry out of the Info dictionary.
func infoString(info pdf.Value, key string) string {
	v := info.Key(key)
	if v.Kind() != pdf.String {
		return ""
	}
	return v.Text()
}
