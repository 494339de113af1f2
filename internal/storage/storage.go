package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/onetarget777/kachra-site/internal/config"
)

// Storage abstracts where uploaded bytes live. The admission pipeline
// writes through this interface and records only the returned key.
type Storage interface {
	// Save persists the reader's contents under the given key and
	// returns the storage key to record in metadata.
	Save(ctx context.Context, reader io.Reader, key string, size int64) (string, error)

	// Get retrieves a stored object by its key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes a stored object. Deleting a missing object is not
	// an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether an object is present under the key.
	Exists(ctx context.Context, key string) (bool, error)
}

// FromConfig builds the storage backend selected by STORAGE_BACKEND.
func FromConfig(cfg *config.Config) (Storage, error) {
	switch cfg.StorageBackend {
	case "", "local":
		return NewLocalStorage(cfg.DataDir)
	case "s3":
		return NewS3Storage(S3Config{
			Endpoint:        cfg.S3Endpoint,
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			UsePathStyle:    cfg.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
