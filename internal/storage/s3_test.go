package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeObjectAPI keeps objects in memory.
type fakeObjectAPI struct {
	objects map[string][]byte
	putErr  error
}

func (f *fakeObjectAPI) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeObjectAPI) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)] = body
	return &s3.PutObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	api := &fakeObjectAPI{objects: map[string][]byte{}}
	store := NewS3Store(api, "bucket", "traffic/traffic.csv", discardLogger())

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, ErrDatasetNotFound)

	require.NoError(t, store.Save(ctx, sampleDataset()))
	assert.Contains(t, string(api.objects["bucket/traffic/traffic.csv"]), "TOTAL,5(2),4(1),9(3)")

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleDataset(), loaded)
}

func TestS3Store_SaveError(t *testing.T) {
	api := &fakeObjectAPI{objects: map[string][]byte{}, putErr: errors.New("access denied")}
	err := NewS3Store(api, "bucket", "key", discardLogger()).Save(context.Background(), sampleDataset())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to put s3://bucket/key")
}
