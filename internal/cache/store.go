package cache

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key holds no value.
	ErrNotFound = errors.New("key not found")
	// ErrCapacity marks a write rejected because the store is out of space.
	ErrCapacity = errors.New("storage capacity exceeded")
)

// Store is a named-entry key-value store used for durable device sets.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}
