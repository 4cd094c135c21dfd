package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/naka-gawa/github-traffic/internal/domain"
)

// ObjectAPI is the part of the S3 client used by S3Store.
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client builds an S3 client from the default AWS credential chain.
// A non-empty endpoint selects an S3-compatible service with path-style addressing.
func NewS3Client(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// S3Store keeps the dataset as a CSV object. A PutObject replaces the object atomically.
type S3Store struct {
	client ObjectAPI
	bucket string
	key    string
	logger *slog.Logger
}

// NewS3Store returns a store for the object bucket/key.
func NewS3Store(client ObjectAPI, bucket, key string, logger *slog.Logger) *S3Store {
	return &S3Store{client: client, bucket: bucket, key: key, logger: logger}
}

func (s *S3Store) Load(ctx context.Context) (*domain.Dataset, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return nil, ErrDatasetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer out.Body.Close()

	ds, err := ReadTable(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3://%s/%s: %w", s.bucket, s.key, err)
	}
	s.logger.Debug("loaded dataset", "bucket", s.bucket, "key", s.key, "repositories", len(ds.Repositories), "dates", len(ds.Dates))
	return ds, nil
}

func (s *S3Store) Save(ctx context.Context, ds *domain.Dataset) error {
	var buf bytes.Buffer
	if err := WriteTable(&buf, ds); err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("failed to put s3://%s/%s: %w", s.bucket, s.key, err)
	}
	s.logger.Info("saved dataset", "bucket", s.bucket, "key", s.key, "repositories", len(ds.Repositories), "dates", len(ds.Dates))
	return nil
}

func (s *S3Store) Close() error { return nil }
