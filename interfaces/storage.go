package interfaces

import (
	"context"
	"errors"
)

var (
	// ErrItemNotFound is returned when a key is absent from a storage backend.
	ErrItemNotFound = errors.New("item not found")
	// ErrBackendUnavailable is returned when a storage backend cannot be reached.
	ErrBackendUnavailable = errors.New("storage backend unavailable")
	// ErrInvalidLocationURI is returned for malformed storage URIs.
	ErrInvalidLocationURI = errors.New("invalid storage location URI")
)

// StorageBackendLocation is a storage URI such as file:///var/lib/identity or s3://bucket/prefix.
type StorageBackendLocation string

// KeyValueStorage is a string key/value store used to cache decryption
// authorizations between workflow runs.
type KeyValueStorage interface {
	// GetItem returns the value stored under key or ErrItemNotFound.
	GetItem(ctx context.Context, key string) (string, error)

	// SetItem stores value under key, replacing any previous value.
	SetItem(ctx context.Context, key string, value string) error

	// RemoveItem deletes key. Removing an absent key is not an error.
	RemoveItem(ctx context.Context, key string) error

	// Available checks if the backend is reachable.
	Available(ctx context.Context) bool

	// Name returns a unique identifier for this backend.
	Name() string

	// LocationURI returns the URI this backend was created from.
	LocationURI() string
}
