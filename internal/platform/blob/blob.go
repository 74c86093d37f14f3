package blob

import (
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("blob not found")

type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// Store keeps proof files. Keys are opaque and never reused.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Open(ctx context.Context, key string) (Object, error)
}
