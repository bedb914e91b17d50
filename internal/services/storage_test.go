package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/chachabrian/wastepickup-backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	s3iface.S3API
	objects map[string]bool
	keys    []string
}

func (f *fakeS3) HeadObjectWithContext(_ aws.Context, in *s3.HeadObjectInput, _ ...request.Option) (*s3.HeadObjectOutput, error) {
	f.keys = append(f.keys, aws.StringValue(in.Key))
	if f.objects[aws.StringValue(in.Key)] {
		return &s3.HeadObjectOutput{}, nil
	}
	return nil, awserr.New("NotFound", "Not Found", nil)
}

func TestS3StorageExists(t *testing.T) {
	fake := &fakeS3{objects: map[string]bool{"pickups/123.jpg": true}}
	s := NewS3Storage(fake, "bucket")
	ctx := context.Background()

	ok, err := s.Exists(ctx, "pickups/123.jpg")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "https://bucket.s3.eu-west-1.amazonaws.com/pickups/123.jpg")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "pickups/404.jpg")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, []string{"pickups/123.jpg", "pickups/123.jpg", "pickups/404.jpg"}, fake.keys)
}

func TestLocalStorageExists(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pickups"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pickups", "a.jpg"), []byte("x"), 0o644))
	s := NewLocalStorage(dir)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "pickups/a.jpg")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "http://localhost:8080/uploads/pickups/a.jpg")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "pickups")
	require.NoError(t, err)
	assert.False(t, ok, "directories are not uploads")

	ok, err = s.Exists(ctx, "../../etc/passwd")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewStorageSelection(t *testing.T) {
	s, err := NewStorage(config.StorageConfig{})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = NewStorage(config.StorageConfig{UploadDir: t.TempDir()})
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Nil(t, s.s3)

	s, err = NewStorage(config.StorageConfig{
		AWSRegion: "eu-west-1", AWSAccessKey: "key", AWSSecretKey: "secret", Bucket: "bucket",
	})
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.NotNil(t, s.s3)
}
