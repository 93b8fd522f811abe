package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	cfg "github.com/templui/vaultgate/internal/config"
)

var ErrBlobNotFound = errors.New("blob not found")

// BlobStore holds file version contents by opaque path. Paths are never
// reused, so callers never overwrite.
type BlobStore interface {
	Save(ctx context.Context, path string, r io.Reader) error
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}

// New picks the backend named by STORAGE_BACKEND.
func New(c *cfg.Config) (BlobStore, error) {
	switch c.StorageBackend {
	case "s3":
		slog.Info("initializing S3 storage",
			"bucket", c.S3Bucket,
			"region", c.S3Region,
			"endpoint", c.S3Endpoint,
		)
		return NewS3Storage(S3Config{
			Region:    c.S3Region,
			Bucket:    c.S3Bucket,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
			Endpoint:  c.S3Endpoint,
		})
	case "minio":
		slog.Info("initializing MinIO storage", "endpoint", c.MinioEndpoint, "bucket", c.MinioBucket)
		return NewMinioStorage(MinioConfig{
			Endpoint:  c.MinioEndpoint,
			AccessKey: c.MinioAccessKey,
			SecretKey: c.MinioSecretKey,
			Bucket:    c.MinioBucket,
			UseSSL:    c.MinioUseSSL,
		})
	case "memory":
		slog.Warn("using in-memory storage, blobs are lost on restart")
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
}
