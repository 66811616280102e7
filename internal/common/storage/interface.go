package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when the requested object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage is the object store surface used for competition archives.
type ObjectStorage interface {
	// PutObject uploads sizeBytes bytes from reader. Pass -1 when the size is unknown.
	PutObject(ctx context.Context, bucket, objectKey string, reader io.Reader, sizeBytes int64, contentType string) error

	// GetObject opens a reader for an object. Caller must close it.
	GetObject(ctx context.Context, bucket, objectKey string) (io.ReadCloser, error)

	// RemoveObject deletes an object. Removing a missing object succeeds.
	RemoveObject(ctx context.Context, bucket, objectKey string) error
}
