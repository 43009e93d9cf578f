package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/phrazzld/shelfsync/internal/domain"
)

// EPUBExtractor parses EPUB containers: the OCF container.xml points at an
// OPF package document, whose Dublin Core metadata block and manifest carry
// everything we need.
type EPUBExtractor struct{}

// NewEPUBExtractor creates an EPUBExtractor.
func NewEPUBExtractor() *EPUBExtractor {
	return &EPUBExtractor{}
}

// Format returns the book format this extractor supports.
func (e *EPUBExtractor) Format() domain.BookFormat {
	return domain.FormatEPUB
}

// ocfContainer models META-INF/container.xml.
type ocfContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

// opfPackage models the parts of the OPF package document we read.
type opfPackage struct {
	Metadata struct {
		Titles       []string  `xml:"title"`
		Creators     []string  `xml:"creator"`
		Descriptions []string  `xml:"description"`
		Languages    []string  `xml:"language"`
		Publishers   []string  `xml:"publisher"`
		Dates        []string  `xml:"date"`
		Identifiers  []string  `xml:"identifier"`
		Subjects     []string  `xml:"subject"`
		Metas        []opfMeta `xml:"meta"`
	} `xml:"metadata"`
	Manifest struct {
		Items []opfItem `xml:"item"`
	} `xml:"manifest"`
}

type opfMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type opfItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

// ExtractMetadata parses the OPF metadata block.
func (e *EPUBExtractor) ExtractMetadata(data []byte) (*Metadata, error) {
	pkg, _, _, err := e.readPackage(data)
	if err != nil {
		return nil, err
	}

	md := &Metadata{}

	if len(pkg.Metadata.Titles) > 0 {
		md.Title = strings.TrimSpace(pkg.Metadata.Titles[0])
	}
	for _, creator := range pkg.Metadata.Creators {
		md.Authors = append(md.Authors, splitNames(creator, ",;&")...)
	}
	if len(pkg.Metadata.Descriptions) > 0 {
		md.Description = strings.TrimSpace(pkg.Metadata.Descriptions[0])
	}
	if len(pkg.Metadata.Languages) > 0 {
		md.Language = strings.TrimSpace(pkg.Metadata.Languages[0])
	}
	if len(pkg.Metadata.Publishers) > 0 {
		md.Publisher = strings.TrimSpace(pkg.Metadata.Publishers[0])
	}
	if len(pkg.Metadata.Dates) > 0 {
		md.PublishedDate = strings.TrimSpace(pkg.Metadata.Dates[0])
	}
	for _, id := range pkg.Metadata.Identifiers {
		if looksLikeISBN(id) {
			md.ISBN = strings.TrimSpace(id)
			break
		}
	}
	for _, subject := range pkg.Metadata.Subjects {
		md.Subjects = append(md.Subjects, splitNames(subject, ",;")...)
	}

	return md, nil
}

// ExtractCover returns the cover image bytes. EPUB 3 marks the cover with a
// manifest "cover-image" property; EPUB 2 uses a <meta name="cover"> entry
// naming the manifest item. Returns (nil, nil) when neither is present.
func (e *EPUBExtractor) ExtractCover(data []byte) ([]byte, error) {
	pkg, zr, opfPath, err := e.readPackage(data)
	if err != nil {
		return nil, err
	}

	var coverHref string
	for _, item := range pkg.Manifest.Items {
		if strings.Contains(item.Properties, "cover-image") {
			coverHref = item.Href
			break
		}
	}

	if coverHref == "" {
		var coverID string
		for _, meta := range pkg.Metadata.Metas {
			if meta.Name == "cover" {
				coverID = meta.Content
				break
			}
		}
		for _, item := range pkg.Manifest.Items {
			if coverID != "" && item.ID == coverID {
				coverHref = item.Href
				break
			}
		}
	}

	if coverHref == "" {
		return nil, nil
	}

	// Manifest hrefs are relative to the OPF document.
	coverPath := path.Join(path.Dir(opfPath), coverHref)
	return readZipFile(zr, coverPath)
}

// readPackage opens the zip container, locates the OPF document via
// container.xml, and parses it.
func (e *EPUBExtractor) readPackage(data []byte) (*opfPackage, *zip.Reader, string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to open EPUB container: %w", err)
	}

	containerXML, err := readZipFile(zr, "META-INF/container.xml")
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to read container.xml: %w", err)
	}

	var container ocfContainer
	if err := xml.Unmarshal(containerXML, &container); err != nil {
		return nil, nil, "", fmt.Errorf("failed to parse container.xml: %w", err)
	}
	if len(container.Rootfiles) == 0 || container.Rootfiles[0].FullPath == "" {
		return nil, nil, "", fmt.Errorf("EPUB container declares no rootfile")
	}

	opfPath := container.Rootfiles[0].FullPath
	opfXML, err := readZipFile(zr, opfPath)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to read package document %s: %w", opfPath, err)
	}

	var pkg opfPackage
	if err := xml.Unmarshal(opfXML, &pkg); err != nil {
		return nil, nil, "", fmt.Errorf("failed to parse package document: %w", err)
	}

	return &pkg, zr, opfPath, nil
}

// readZipFile reads one entry from the archive by exact path.
func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer func() { _ = rc.Close() }()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("entry %s not found in archive", name)
}

// splitNames splits a delimiter-joined name list and trims the pieces.
func splitNames(s, delims string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(delims, r)
	})
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// looksLikeISBN reports whether an identifier value is plausibly an ISBN:
// digits, dashes, and a trailing X check digit only.
func looksLikeISBN(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '-' || r == 'X' || r == 'x':
		default:
			return false
		}
	}
	return digits >= 9
}
