package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/naka-gawa/github-traffic/internal/domain"
)

// FileStore keeps the dataset as a CSV file.
type FileStore struct {
	fs     afero.Fs
	path   string
	logger *slog.Logger
}

// NewFileStore returns a store for the CSV file at path on fs.
func NewFileStore(fs afero.Fs, path string, logger *slog.Logger) *FileStore {
	return &FileStore{fs: fs, path: path, logger: logger}
}

func (s *FileStore) Load(ctx context.Context) (*domain.Dataset, error) {
	f, err := s.fs.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrDatasetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	defer f.Close()

	ds, err := ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", s.path, err)
	}
	s.logger.Debug("loaded dataset", "path", s.path, "repositories", len(ds.Repositories), "dates", len(ds.Dates))
	return ds, nil
}

// Save writes to a temporary file next to the target and renames it into place,
// so the previous file stays intact until the new one is complete.
func (s *FileStore) Save(ctx context.Context, ds *domain.Dataset) error {
	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if err := WriteTable(tmp, ds); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := s.fs.Rename(tmpName, s.path); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	s.logger.Info("saved dataset", "path", s.path, "repositories", len(ds.Repositories), "dates", len(ds.Dates))
	return nil
}

func (s *FileStore) Close() error { return nil }
