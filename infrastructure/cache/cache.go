// Package cache provides the key-value cache consumed by the read-through
// manager, the session store, and the revocation registry. Entries carry a
// TTL and are destroyed exclusively by the backing store's expiry; no sweep
// process exists elsewhere in the system.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable indicates the cache backend could not be reached. Callers
// decide whether to degrade to direct storage reads or fail the request.
var ErrUnavailable = errors.New("cache unavailable")

// Cache is a generic get/set/delete store with per-entry TTL. All operations
// are idempotent; Delete on an absent key is a no-op, not an error.
type Cache interface {
	// Get retrieves a value. The second return reports presence; an absent
	// key is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value. Deleting an absent key succeeds.
	Delete(ctx context.Context, key string) error
}
