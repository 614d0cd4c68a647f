package secmaster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/guttosm/isinmap/internal/domain/models"
)

// FileRepository looks securities up by streaming a TSV file. The file is
// opened on every call, so edits on disk are picked up by the next lookup.
type FileRepository struct {
	path string
}

// NewFileRepository returns a repository over the security master at path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

// Path is the file the repository reads.
func (f *FileRepository) Path() string {
	return f.path
}

// FindByISIN scans rows in file order and returns the first exact match.
// A nil security and nil error means no row matched.
func (f *FileRepository) FindByISIN(ctx context.Context, isin string) (*models.Security, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	r, err := NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.path, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		sec, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, fmt.Errorf("%s: %w", f.path, err)
		}
		if sec.ISIN == isin {
			return &sec, nil
		}
	}
}

// Ping checks that the file can be opened and carries a valid header.
func (f *FileRepository) Ping(_ context.Context) error {
	file, err := os.Open(f.path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	if _, err := NewReader(file); err != nil {
		return fmt.Errorf("%s: %w", f.path, err)
	}
	return nil
}
