package storage

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned when a key does not exist in the store.
var ErrKeyNotFound = errors.New("key not found")

// KV defines the key/value operations shared by the feature store adapters.
// This is a port that can be implemented by different storage providers.
type KV interface {
	// Get retrieves a value by key. Returns ErrKeyNotFound if the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value under the given key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// ListAppend appends a value to the end of the list stored at key,
	// creating the list if it does not exist.
	ListAppend(ctx context.Context, key string, value []byte) error

	// ListRange returns every element of the list stored at key, in insertion
	// order. An absent key yields an empty slice, not an error.
	ListRange(ctx context.Context, key string) ([][]byte, error)

	// ListLen returns the length of the list stored at key (0 if absent).
	ListLen(ctx context.Context, key string) (int64, error)

	// ListSet overwrites the element at index in the list stored at key.
	// Fails if the index is out of range.
	ListSet(ctx context.Context, key string, index int64, value []byte) error

	// SetAdd adds a member to the set stored at key.
	SetAdd(ctx context.Context, key string, member string) error

	// SetMembers returns all members of the set stored at key.
	SetMembers(ctx context.Context, key string) ([]string, error)

	// Ping checks if the storage service is reachable.
	Ping(ctx context.Context) error

	// Close closes the storage connection.
	Close() error
}
