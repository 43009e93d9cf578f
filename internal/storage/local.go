package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/phrazzld/shelfsync/internal/domain"
	"github.com/phrazzld/shelfsync/internal/platform/logger"
)

// ErrFileNotFound is returned when no file exists at a storage path.
var ErrFileNotFound = errors.New("file not found")

// LocalStorage stores book files and covers on the local filesystem.
// Book files are content-addressed with a two-level hash fan-out
// (ab/cd/abcd... for hash abcd...) to keep directories small.
type LocalStorage struct {
	basePath   string
	coversPath string
}

// NewLocalStorage creates a LocalStorage rooted at the given paths,
// creating the directories if needed.
func NewLocalStorage(basePath, coversPath string) (*LocalStorage, error) {
	for _, dir := range []string{basePath, coversPath} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
		}
	}

	return &LocalStorage{
		basePath:   basePath,
		coversPath: coversPath,
	}, nil
}

// ComputeHash returns the hex SHA-256 of data, the content address used by
// Store.
func ComputeHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// hashToPath maps a content hash onto the fan-out layout, relative to the
// storage root.
func hashToPath(contentHash string) (string, error) {
	if len(contentHash) < 4 {
		return "", fmt.Errorf("content hash too short: %q", contentHash)
	}
	return filepath.Join(contentHash[:2], contentHash[2:4], contentHash), nil
}

// Store writes data under its content hash and returns the relative path.
func (s *LocalStorage) Store(ctx context.Context, contentHash string, data []byte) (string, error) {
	rel, err := hashToPath(contentHash)
	if err != nil {
		return "", err
	}

	full := filepath.Join(s.basePath, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", rel, err)
	}

	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", rel, err)
	}

	logger.FromContext(ctx).Debug("stored file",
		"hash", contentHash, "path", rel, "size", len(data))

	return rel, nil
}

// Retrieve reads the file at a storage path.
func (s *LocalStorage) Retrieve(ctx context.Context, storagePath string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.basePath, storagePath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, storagePath)
		}
		return nil, fmt.Errorf("failed to read %s: %w", storagePath, err)
	}
	return data, nil
}

// Exists reports whether a file exists at the storage path.
func (s *LocalStorage) Exists(ctx context.Context, storagePath string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.basePath, storagePath))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s: %w", storagePath, err)
	}
	return true, nil
}

// Delete removes the file at a storage path.
func (s *LocalStorage) Delete(ctx context.Context, storagePath string) (bool, error) {
	err := os.Remove(filepath.Join(s.basePath, storagePath))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete %s: %w", storagePath, err)
	}
	return true, nil
}

// coverPath returns the covers-relative path of one variant.
func coverPath(bookID uuid.UUID, size domain.CoverSize) string {
	return filepath.Join(bookID.String(), fmt.Sprintf("%s.jpg", size))
}

// StoreCover decodes imageData and writes the three resized JPEG variants.
// Images are fitted inside the variant dimensions, preserving aspect ratio.
func (s *LocalStorage) StoreCover(ctx context.Context, bookID uuid.UUID, imageData []byte) (*CoverPaths, error) {
	src, err := imaging.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode cover image: %w", err)
	}

	paths := &CoverPaths{}
	for _, size := range domain.AllCoverSizes() {
		w, h := size.Dimensions()
		resized := imaging.Fit(src, w, h, imaging.Lanczos)

		rel := coverPath(bookID, size)
		full := filepath.Join(s.coversPath, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cover directory: %w", err)
		}

		if err := imaging.Save(resized, full, imaging.JPEGQuality(85)); err != nil {
			return nil, fmt.Errorf("failed to save %s cover: %w", size, err)
		}

		switch size {
		case domain.CoverSizeSmall:
			paths.Small = rel
		case domain.CoverSizeMedium:
			paths.Medium = rel
		case domain.CoverSizeLarge:
			paths.Large = rel
		}
	}

	logger.FromContext(ctx).Debug("stored cover variants", "book_id", bookID)

	return paths, nil
}

// CoverExists reports whether all variants exist for the book.
func (s *LocalStorage) CoverExists(ctx context.Context, bookID uuid.UUID) (bool, error) {
	for _, size := range domain.AllCoverSizes() {
		_, err := os.Stat(filepath.Join(s.coversPath, coverPath(bookID, size)))
		if err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}
			return false, fmt.Errorf("failed to stat cover: %w", err)
		}
	}
	return true, nil
}
