package object

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound indicates the storage key does not resolve to an object.
	ErrNotFound = errors.New("object not found")
	// ErrUnavailable indicates the backing store could not be reached or
	// failed the operation. Ingestion must not continue past an
	// unconfirmed write.
	ErrUnavailable = errors.New("object store unavailable")
)

// ObjectStore defines the contract for saving and retrieving binary objects.
type ObjectStore interface {
	Save(ctx context.Context, ownerID string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, storageKey string) error
}
