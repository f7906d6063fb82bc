package artifact

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dharsanguruparan/compressdash/internal/config"
)

// S3Sink wraps MinIO/S3 interactions for compressed artifacts.
type S3Sink struct {
	client *minio.Client
	bucket string
	prefix string
	region string
}

// NewS3Sink creates a MinIO client from the S3 settings.
func NewS3Sink(cfg config.S3Config) (*S3Sink, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("init minio: endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &S3Sink{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		region: cfg.Region,
	}, nil
}

// EnsureBucket makes sure the target bucket exists before use.
func (s *S3Sink) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// Put uploads the artifact under prefix/name. A negative size streams the
// object with multipart uploads.
func (s *S3Sink) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	key := ObjectKey(s.prefix, name)
	if key == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, s.bucket, key, r, size, opts); err != nil {
		return "", fmt.Errorf("upload artifact object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// ObjectKey joins prefix and the base of name. It returns "" for names that
// reduce to nothing.
func ObjectKey(prefix, name string) string {
	base := path.Base(path.Clean("/" + name))
	if base == "/" || base == "." {
		return ""
	}
	if prefix == "" {
		return base
	}
	return path.Join(prefix, base)
}
