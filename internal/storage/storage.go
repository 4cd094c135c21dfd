// Package storage persists the traffic dataset to a local file, an S3 object or a SQLite database.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/spf13/afero"

	"github.com/naka-gawa/github-traffic/internal/domain"
)

var (
	// ErrDatasetNotFound is returned by Load when nothing was persisted yet.
	ErrDatasetNotFound = errors.New("dataset not found")
	// ErrInvalidDestination is returned by Open for an unusable destination identifier.
	ErrInvalidDestination = errors.New("invalid dataset destination")
)

// DatasetStore loads the prior dataset and persists the new one.
// Save replaces the stored dataset as a whole; readers see either the old or the new version.
type DatasetStore interface {
	Load(ctx context.Context) (*domain.Dataset, error)
	Save(ctx context.Context, ds *domain.Dataset) error
	Close() error
}

// Options carries what the individual stores need besides the destination.
type Options struct {
	// Fs backs file destinations. Defaults to the OS filesystem.
	Fs         afero.Fs
	S3Region   string
	S3Endpoint string
	Logger     *slog.Logger
}

// Open returns the store for dest:
// "s3://bucket/key", "sqlite://path", "file://path" or a plain path.
func Open(ctx context.Context, dest string, opts Options) (DatasetStore, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if dest == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidDestination)
	}

	switch {
	case strings.HasPrefix(dest, "s3://"):
		u, err := url.Parse(dest)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDestination, err)
		}
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return nil, fmt.Errorf("%w: %q needs a bucket and a key", ErrInvalidDestination, dest)
		}
		client, err := NewS3Client(ctx, opts.S3Region, opts.S3Endpoint)
		if err != nil {
			return nil, err
		}
		return NewS3Store(client, u.Host, key, opts.Logger), nil
	case strings.HasPrefix(dest, "sqlite://"):
		path := strings.TrimPrefix(dest, "sqlite://")
		if path == "" {
			return nil, fmt.Errorf("%w: %q needs a database path", ErrInvalidDestination, dest)
		}
		return NewSQLiteStore(ctx, path, opts.Logger)
	default:
		path := strings.TrimPrefix(dest, "file://")
		fs := opts.Fs
		if fs == nil {
			fs = afero.NewOsFs()
		}
		return NewFileStore(fs, path, opts.Logger), nil
	}
}
