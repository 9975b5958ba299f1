package kvstore

import "context"

// Store is a durable key-value store for small string blobs that survives
// process restarts. Each Set is atomic for its key.
type Store interface {
	// Get returns the value for key or ErrKeyNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set creates or replaces the value for key
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key is not an error
	Remove(ctx context.Context, key string) error

	// Keys lists the stored keys in no particular order
	Keys(ctx context.Context) ([]string, error)
}

// Closer is implemented by stores holding OS resources.
type Closer interface {
	Close() error
}
