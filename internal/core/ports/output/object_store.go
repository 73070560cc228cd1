package ports

import (
	"context"
)

// ObjectStore persists pipeline artifacts under slash-separated keys.
// Get returns domain.ErrObjectNotFound for missing keys. A single Put is atomic:
// readers see the old or the new body, never a partial one.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)

	// List returns keys under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}
