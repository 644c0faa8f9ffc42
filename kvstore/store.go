// Package kvstore is the local persisted key/value area used by the local
// backend: the credential collection, the session snapshot and the per-user
// portfolio all live under fixed string keys, one JSON value each.
package kvstore

import (
	"context"

	apperrors "github.com/jrsteele09/go-portfolio-auth/internal/errors"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = apperrors.ErrNotFound

// Store is a flat key/value store. Values are opaque bytes and are always
// read and written whole.
type Store interface {
	// Get returns the value stored under key or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set replaces the value stored under key
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
}
