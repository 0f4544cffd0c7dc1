package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"AppealScanner/internal/domain"
	"AppealScanner/internal/ports"
)

// FileStore keeps agenda PDFs on the local filesystem under random UUID keys,
// with metadata carried on the owning meeting row.
type FileStore struct {
	dir string
}

var _ ports.BlobStore = (*FileStore)(nil)

// NewFileStore ensures the storage directory exists.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Attach streams the reader to disk and returns the stored blob's reference.
func (s *FileStore) Attach(_ context.Context, r io.Reader, filename, contentType string) (domain.BlobRef, error) {
	key := uuid.NewString()

	f, err := os.Create(filepath.Join(s.dir, key))
	if err != nil {
		return domain.BlobRef{}, fmt.Errorf("create blob file: %w", err)
	}

	n, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return domain.BlobRef{}, fmt.Errorf("write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		return domain.BlobRef{}, fmt.Errorf("close blob file: %w", err)
	}

	return domain.BlobRef{
		Key:         key,
		Filename:    filename,
		ContentType: contentType,
		ByteSize:    n,
	}, nil
}

// Open returns a stream over the stored blob. Keys are validated as UUIDs so a
// corrupted key can never escape the storage directory.
func (s *FileStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if _, err := uuid.Parse(key); err != nil {
		return nil, fmt.Errorf("invalid blob key %q: %w", key, err)
	}

	f, err := os.Open(filepath.Join(s.dir, key))
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", key, err)
	}
	return f, nil
}
