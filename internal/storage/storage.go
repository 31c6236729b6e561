package storage

import (
	"context"

	"golang.org/x/xerrors"
)

// ErrNotFound is returned by Get when nothing is stored under the key.
var ErrNotFound = xerrors.New("not found")

type Storage interface {
	// Put stores data with the given key and returns the storage URL
	Put(ctx context.Context, key string, data []byte) (string, error)
	// Get retrieves data stored under the given key or storage URL
	Get(ctx context.Context, key string) ([]byte, error)
}

type Config struct {
	File FileConfig
	S3   S3Config
}

// New returns the backend named by backend ("file" or "s3").
func New(ctx context.Context, backend string, c Config) (Storage, error) {
	switch backend {
	case "", "file":
		return NewFileStorage(ctx, c.File)
	case "s3":
		return NewS3Storage(ctx, c.S3)
	default:
		return nil, xerrors.Errorf("unknown storage backend: %s", backend)
	}
}
