package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when a key has no stored object.
var ErrObjectNotFound = errors.New("stored object not found")

// ObjectStore is implemented by every plan storage backend.
type ObjectStore interface {
	Save(ctx context.Context, key string, r io.ReadSeeker, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

var (
	_ ObjectStore = (*LocalStorage)(nil)
	_ ObjectStore = (*S3Storage)(nil)
)
