package querycache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	c "github.com/unkn0wn-root/querycache/codec"
	gen "github.com/unkn0wn-root/querycache/genstore"
	"github.com/unkn0wn-root/querycache/internal/flight"
	"github.com/unkn0wn-root/querycache/internal/wire"
	pr "github.com/unkn0wn-root/querycache/provider"
)

const (
	defaultGenRetention = 30 * 24 * time.Hour
	defaultSweep        = time.Hour
)

var errZeroKey = errors.New("querycache: zero key")

type cache[V any] struct {
	ns             string
	client         *Client
	provider       pr.Provider
	codec          c.Codec[V]
	gen            gen.GenStore
	ownsGen        bool
	shared         bool
	log            Logger
	hooks          Hooks
	staleAfter     time.Duration
	retention      time.Duration
	computeSetCost SetCostFunc

	flights flight.Group[V]

	// last terminal error per storage key; cleared by a success or Invalidate
	failMu sync.Mutex
	failed map[string]error

	stats     counters
	closeOnce sync.Once
}

func newCache[V any](client *Client, opts Options[V]) (*cache[V], error) {
	if client == nil {
		return nil, fmt.Errorf("querycache: client is required")
	}
	if opts.Provider == nil {
		return nil, fmt.Errorf("querycache: provider is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("querycache: codec is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("querycache: namespace is required")
	}

	qc := &cache[V]{
		ns:       opts.Namespace,
		client:   client,
		provider: opts.Provider,
		codec:    opts.Codec,
		log:      client.log,
		hooks:    client.hooks,
		failed:   make(map[string]error),
		shared:   opts.SharedProvider,
	}

	qc.staleAfter = coalesce(opts.StaleAfter, DefaultStaleAfter)
	qc.retention = coalesce(opts.Retention, DefaultRetention)
	if opts.ComputeSetCost != nil {
		qc.computeSetCost = opts.ComputeSetCost
	} else {
		qc.computeSetCost = func(string, []byte) int64 { return 1 }
	}

	if opts.GenStore != nil {
		qc.gen = opts.GenStore
	} else {
		qc.gen = gen.NewLocalGenStore(
			coalesce(opts.CleanupInterval, defaultSweep),
			coalesce(opts.GenRetention, defaultGenRetention),
		)
		qc.ownsGen = true
	}
	return qc, nil
}

func (qc *cache[V]) Get(ctx context.Context, key Key, fetch Fetcher[V], opts ...GetOption) (V, error) {
	var zero V
	if fetch == nil {
		return zero, ErrNilFetcher
	}
	if key.IsZero() {
		return zero, errZeroKey
	}
	if qc.client.isClosed() {
		return zero, ErrClosed
	}

	cfg := getConfig{staleAfter: qc.staleAfter, kind: KindQuery}
	for _, o := range opts {
		o(&cfg)
	}

	sk := qc.storageKey(key)
	if v, ok := qc.fresh(ctx, sk); ok {
		qc.stats.hits.Add(1)
		return v, nil
	}

	call, leader := qc.flights.Join(sk)
	if !leader {
		qc.stats.joins.Add(1)
		qc.hooks.FlightJoined(key.String())
		return call.Wait(ctx)
	}

	qc.stats.fetches.Add(1)
	started := qc.client.spawn(func(fctx context.Context) {
		qc.fill(fctx, key, sk, call, fetch, cfg)
	})
	if !started {
		qc.flights.Settle(sk, call, zero, ErrClosed)
	}
	return call.Wait(ctx)
}

// fill runs on the client's goroutine and settles call exactly once.
func (qc *cache[V]) fill(ctx context.Context, key Key, sk string, call *flight.Call[V], fetch Fetcher[V], cfg getConfig) {
	var zero V

	// a flight that settled between our freshness check and Join may have
	// just stored a fresh record
	if v, ok := qc.fresh(ctx, sk); ok {
		qc.flights.Settle(sk, call, v, nil)
		return
	}

	// observe before fetching; an Invalidate during the fetch bumps the
	// generation and leaves the stored result stale
	obs, _ := qc.snapshotGen(ctx, sk)

	v, err := execute(ctx, qc.client, key.String(), cfg.kind, fetch)
	if err != nil {
		qc.stats.failures.Add(1)
		qc.setFailed(sk, err)
		qc.flights.Settle(sk, call, zero, err)
		return
	}

	qc.store(ctx, sk, key, v, obs, cfg.staleAfter)
	qc.setFailed(sk, nil)
	qc.flights.Settle(sk, call, v, nil)
}

func (qc *cache[V]) Invalidate(ctx context.Context, key Key) error {
	if key.IsZero() {
		return errZeroKey
	}
	sk := qc.storageKey(key)
	qc.setFailed(sk, nil)

	newGen, bumpErr := qc.gen.Bump(ctx, sk)
	if bumpErr == nil {
		qc.log.Debug("invalidated key (bumped gen)", Fields{"key": key.String(), "newGen": newGen})
		return nil
	}

	// without a new generation the record would still read as fresh; drop it
	qc.hooks.GenBumpError(sk, bumpErr)
	delErr := qc.provider.Del(ctx, sk)
	if delErr != nil {
		return &InvalidateError{Key: key.String(), BumpErr: bumpErr, DelErr: delErr}
	}
	qc.log.Warn("gen bump failed; record deleted instead", Fields{"key": key.String(), "err": bumpErr})
	return nil
}

func (qc *cache[V]) Status(ctx context.Context, key Key) Status {
	if key.IsZero() {
		return StatusEmpty
	}
	sk := qc.storageKey(key)
	if qc.flights.Pending(sk) {
		return StatusFetching
	}
	if qc.lastFailure(sk) != nil {
		return StatusFailed
	}
	rec, ok := qc.load(ctx, sk)
	if !ok {
		return StatusEmpty
	}
	g, ok := qc.snapshotGen(ctx, sk)
	if ok && rec.Fresh(qc.client.clock.Now(), g) {
		return StatusFresh
	}
	return StatusStale
}

func (qc *cache[V]) Peek(ctx context.Context, key Key) (V, bool, error) {
	var zero V
	if key.IsZero() {
		return zero, false, errZeroKey
	}
	sk := qc.storageKey(key)
	raw, ok, err := qc.provider.Get(ctx, sk)
	if err != nil || !ok {
		return zero, false, err
	}
	rec, err := wire.Decode(raw)
	if err != nil {
		qc.selfHeal(ctx, sk, "corrupt")
		return zero, false, nil
	}
	v, err := qc.codec.Decode(rec.Payload)
	if err != nil {
		qc.selfHeal(ctx, sk, "value_decode")
		return zero, false, nil
	}
	return v, true, nil
}

func (qc *cache[V]) Stats() Stats { return qc.stats.snapshot() }

// Close releases the generation store when the cache created it, and the
// provider unless it is shared. In-flight fetches belong to the Client.
func (qc *cache[V]) Close(ctx context.Context) error {
	var err error
	qc.closeOnce.Do(func() {
		if qc.ownsGen {
			_ = qc.gen.Close(ctx)
		}
		if !qc.shared {
			err = qc.provider.Close(ctx)
		}
	})
	return err
}

// fresh returns the decoded value when a current-generation record inside
// its staleness window exists.
func (qc *cache[V]) fresh(ctx context.Context, sk string) (V, bool) {
	var zero V
	rec, ok := qc.load(ctx, sk)
	if !ok {
		return zero, false
	}
	g, ok := qc.snapshotGen(ctx, sk)
	if !ok || !rec.Fresh(qc.client.clock.Now(), g) {
		return zero, false
	}
	v, err := qc.codec.Decode(rec.Payload)
	if err != nil {
		qc.selfHeal(ctx, sk, "value_decode")
		return zero, false
	}
	return v, true
}

// load reads and unframes the record. Provider errors read as a miss so a
// flaky store degrades to fetching.
func (qc *cache[V]) load(ctx context.Context, sk string) (wire.Record, bool) {
	raw, ok, err := qc.provider.Get(ctx, sk)
	if err != nil {
		qc.log.Warn("provider get failed", Fields{"key": sk, "err": err})
		return wire.Record{}, false
	}
	if !ok {
		return wire.Record{}, false
	}
	rec, err := wire.Decode(raw)
	if err != nil {
		qc.selfHeal(ctx, sk, "corrupt")
		return wire.Record{}, false
	}
	return rec, true
}

func (qc *cache[V]) store(ctx context.Context, sk string, key Key, v V, obs uint64, staleAfter time.Duration) {
	payload, err := qc.codec.Encode(v)
	if err != nil {
		qc.log.Error("encode failed; value not cached", Fields{"key": key.String(), "err": err})
		return
	}
	raw := wire.Encode(wire.Record{
		Gen:        obs,
		FetchedAt:  qc.client.clock.Now(),
		StaleAfter: staleAfter,
		Payload:    payload,
	})
	ttl := qc.retention
	if ttl < staleAfter {
		ttl = staleAfter
	}
	ok, err := qc.provider.Set(ctx, sk, raw, qc.computeSetCost(sk, raw), ttl)
	if err != nil {
		qc.log.Warn("provider set failed", Fields{"key": key.String(), "err": err})
		return
	}
	if !ok {
		qc.hooks.ProviderSetRejected(sk)
		qc.log.Debug("set rejected by provider (pressure)", Fields{"key": key.String()})
	}
}

func (qc *cache[V]) selfHeal(ctx context.Context, sk, reason string) {
	_ = qc.provider.Del(ctx, sk)
	qc.hooks.SelfHeal(sk, reason)
	qc.log.Debug("self-heal: dropped unreadable record", Fields{"key": sk, "reason": reason})
}

func (qc *cache[V]) snapshotGen(ctx context.Context, sk string) (uint64, bool) {
	g, err := qc.gen.Snapshot(ctx, sk)
	if err != nil {
		// treat as stale so the caller refetches
		qc.hooks.GenSnapshotError(sk, err)
		qc.log.Warn("gen snapshot error", Fields{"key": sk, "err": err})
		return 0, false
	}
	return g, true
}

func (qc *cache[V]) setFailed(sk string, err error) {
	qc.failMu.Lock()
	if err == nil {
		delete(qc.failed, sk)
	} else {
		qc.failed[sk] = err
	}
	qc.failMu.Unlock()
}

func (qc *cache[V]) lastFailure(sk string) error {
	qc.failMu.Lock()
	defer qc.failMu.Unlock()
	return qc.failed[sk]
}

func (qc *cache[V]) storageKey(k Key) string {
	// isolate by namespace
	return "q:" + qc.ns + ":" + k.encoded()
}
