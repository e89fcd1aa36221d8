// Package cache provides byte-value caching for generated sprite
// sheets, with implementations for different backends:
//   - file: hashed-path files with a TTL envelope, for CLI usage
//   - redis: shared cache for the serve mode
//   - null: disabled caching for tests and --no-cache runs
//
// Values are opaque encoded images; keys are derived from the
// generation parameters via [SheetKey] so identical requests hit the
// cache instead of re-billing the service.
package cache

import (
	"context"
	"errors"
	"time"
)

// Cache stores opaque byte values with per-entry TTL.
type Cache interface {
	// Get retrieves a value. The bool reports whether the key was
	// present and fresh; absence is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A TTL of 0 means the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the backend.
	Close() error
}

// ErrNotFound is returned when a requested item does not exist.
var ErrNotFound = errors.New("not found")
