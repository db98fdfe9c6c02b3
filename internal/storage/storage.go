package storage

import (
	"context"
)

// Well-known storage keys. The guest cart and the auth token are the only
// values the storefront persists locally.
const (
	KeyCart      = "cart"
	KeyAuthToken = "authToken"
)

// KeyValue defines the persistent local key-value operations the storefront
// components depend on. Consumers treat it as the browser's persistent
// storage boundary: a flat namespace of string keys and string values.
type KeyValue interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value string) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
