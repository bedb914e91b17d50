package services

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/chachabrian/wastepickup-backend/internal/config"
	"github.com/cockroachdb/errors"
)

// Storage answers whether an upload reference points at a stored photo.
// Uploading itself happens elsewhere.
type Storage struct {
	s3     s3iface.S3API
	bucket string
	dir    string
}

// NewStorage picks S3 when fully configured, otherwise the local upload
// directory. It returns nil when neither is configured.
func NewStorage(cfg config.StorageConfig) (*Storage, error) {
	if cfg.UseS3() {
		sess, err := session.NewSession(&aws.Config{
			Region: aws.String(cfg.AWSRegion),
			Credentials: credentials.NewStaticCredentials(
				cfg.AWSAccessKey,
				cfg.AWSSecretKey,
				"",
			),
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create AWS session")
		}
		slog.Info("upload storage: s3", slog.String("bucket", cfg.Bucket))
		return NewS3Storage(s3.New(sess), cfg.Bucket), nil
	}

	if cfg.UploadDir != "" {
		slog.Info("upload storage: local", slog.String("dir", cfg.UploadDir))
		return NewLocalStorage(cfg.UploadDir), nil
	}

	slog.Warn("upload storage not configured, upload references are not verified")
	return nil, nil
}

func NewS3Storage(client s3iface.S3API, bucket string) *Storage {
	return &Storage{s3: client, bucket: bucket}
}

func NewLocalStorage(dir string) *Storage {
	return &Storage{dir: dir}
}

// Exists reports whether ref names a stored object. ref is either an object
// key or a full object URL.
func (s *Storage) Exists(ctx context.Context, ref string) (bool, error) {
	key := keyFromRef(ref)
	if key == "" {
		return false, nil
	}
	if s.s3 != nil {
		return s.existsS3(ctx, key)
	}
	return s.existsLocal(key)
}

func (s *Storage) existsS3(ctx context.Context, key string) (bool, error) {
	_, err := s.s3.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) && (aerr.Code() == "NotFound" || aerr.Code() == s3.ErrCodeNoSuchKey) {
		return false, nil
	}
	return false, errors.Wrapf(err, "head s3 object %s", key)
}

func (s *Storage) existsLocal(key string) (bool, error) {
	// Clean against a rooted path so ".." cannot climb out of dir
	path := filepath.Join(s.dir, filepath.FromSlash(filepath.Clean("/"+key)))
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "stat upload %s", key)
	}
	return !info.IsDir(), nil
}

func keyFromRef(ref string) string {
	if u, err := url.Parse(ref); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		ref = u.Path
		// local uploads are served under /uploads
		ref = strings.TrimPrefix(ref, "/uploads")
	}
	return strings.TrimPrefix(ref, "/")
}
