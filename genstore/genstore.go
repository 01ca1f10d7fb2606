// Package genstore keeps a generation counter per cache key. Bumping a key's
// generation is how Invalidate marks a stored record stale: records remember
// the generation they were fetched under and read as stale once it moves.
package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where generations live. Use the local store for a
// single process; use the Redis store when several processes share a Redis
// provider and must see each other's invalidations.
type GenStore interface {
	// Snapshot returns the current generation; missing => 0.
	Snapshot(ctx context.Context, storageKey string) (uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, storageKey string) (uint64, error)
	// Cleanup prunes generations not bumped within retention (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources. Safe to call more than once.
	Close(context.Context) error
}
