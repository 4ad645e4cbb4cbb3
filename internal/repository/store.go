package repository

import (
	"context"
)

// Store defines key/value persistence shared by the cache and settings.
// Values are raw JSON documents.
type Store interface {
	// Get returns the value stored under key; ok is false when the key is absent
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set creates or overwrites the value under key
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes the given keys; missing keys are ignored
	Remove(ctx context.Context, keys ...string) error

	// Keys lists every stored key
	Keys(ctx context.Context) ([]string, error)

	// Close releases resources held by the store
	Close() error
}
