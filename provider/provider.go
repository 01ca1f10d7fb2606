// Package provider defines the byte store behind a querycache.Cache.
//
// The keyspace "q:<ns>:" is owned by querycache. Anything else written under
// it is read as a corrupt record and deleted.
package provider

import (
	"context"
	"time"
)

// Provider is a byte store with per-entry TTLs.
//
// Implementations must be safe for concurrent use and transparent: Get
// returns exactly the bytes passed to Set. A Set that returned (true, nil)
// must be visible to the next Get on the same instance, otherwise a cache
// hit right after a fetch can turn into a second fetch.
type Provider interface {
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
	// IO or remote errors are (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value for ttl (ttl <= 0: no expiry). cost may be ignored.
	// ok=false means the store refused the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	Close(ctx context.Context) error
}
