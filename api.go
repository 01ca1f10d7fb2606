package querycache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/querycache/codec"
	gen "github.com/unkn0wn-root/querycache/genstore"
	pr "github.com/unkn0wn-root/querycache/provider"
)

type SetCostFunc func(key string, raw []byte) int64

// Cache is the request cache for values of type V. Serialization is handled
// by a pluggable Codec[V]; storage by a Provider.
type Cache[V any] interface {
	// Get returns the cached value for key while it is fresh. Otherwise it
	// starts fetch, or joins the fetch already in flight for key, and returns
	// that fetch's outcome. A caller whose ctx ends stops waiting; the fetch
	// carries on and still fills the entry.
	Get(ctx context.Context, key Key, fetch Fetcher[V], opts ...GetOption) (V, error)

	// Invalidate marks the entry stale without cancelling a fetch in flight.
	Invalidate(ctx context.Context, key Key) error

	// Status reports the entry's current state.
	Status(ctx context.Context, key Key) Status

	// Peek returns the stored value regardless of freshness, never fetching.
	Peek(ctx context.Context, key Key) (v V, ok bool, err error)

	Stats() Stats
	Close(context.Context) error
}

// Options tune a Cache. Namespace, Provider and Codec are required.
type Options[V any] struct {
	Namespace string // logical namespace to avoid collisions. e.g. "todos", "profile"
	Provider  pr.Provider
	Codec     c.Codec[V]

	StaleAfter      time.Duration // default staleness window; 0 => 5m
	Retention       time.Duration // provider TTL of records; 0 => 1h, never below the staleness window
	GenStore        gen.GenStore  // nil => in-process generations
	CleanupInterval time.Duration // local GenStore sweep; 0 => 1h
	GenRetention    time.Duration // local GenStore retention; 0 => 30d
	ComputeSetCost  SetCostFunc   // default 1

	// SharedProvider keeps Close from closing Provider; set it when several
	// caches use the same backend. A GenStore passed in is never closed.
	SharedProvider bool
}

// GetOption adjusts a single Get.
type GetOption func(*getConfig)

type getConfig struct {
	staleAfter time.Duration
	kind       Kind
}

// WithStaleAfter sets the staleness window for the entry this Get fills. It
// only applies when this call starts the fetch; joiners inherit the starter's.
func WithStaleAfter(d time.Duration) GetOption {
	return func(g *getConfig) {
		if d > 0 {
			g.staleAfter = d
		}
	}
}

// WithKind selects the retry budget. Gets are queries by default.
func WithKind(k Kind) GetOption {
	return func(g *getConfig) { g.kind = k }
}

func New[V any](client *Client, opts Options[V]) (Cache[V], error) {
	return newCache[V](client, opts)
}
