package object

import (
	"context"
	"io"
)

// Store defines the contract for the generated-files bucket: upload, open,
// prefix listing, batch removal, and public URL resolution.
type Store interface {
	Upload(ctx context.Context, key string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Remove(ctx context.Context, keys []string) error
	PublicURL(key string) string
}
