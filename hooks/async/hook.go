// Package asynchook moves hook delivery off the fetch path.
//
//	raw := sloghook.New(slog.Default(), sloghook.Options{RetryEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	client := querycache.NewClient(querycache.ClientOptions{Hooks: hooks})
//
// Events are dropped, never blocked on, when the queue is full.
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/querycache"
)

type Hooks struct {
	inner   querycache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards closed against sends on q
	closed  bool
	dropped atomic.Uint64
}

var _ querycache.Hooks = (*Hooks)(nil)

func New(inner querycache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events after Close are
// dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped returns how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) FlightJoined(k string) { h.try(func() { h.inner.FlightJoined(k) }) }
func (h *Hooks) RetryScheduled(k string, kind querycache.Kind, attempt int, c querycache.Class, d time.Duration) {
	h.try(func() { h.inner.RetryScheduled(k, kind, attempt, c, d) })
}
func (h *Hooks) FetchSettled(k string, kind querycache.Kind, attempts int, err error) {
	h.try(func() { h.inner.FetchSettled(k, kind, attempts, err) })
}
func (h *Hooks) SelfHeal(k, r string)                 { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) ProviderSetRejected(k string)         { h.try(func() { h.inner.ProviderSetRejected(k) }) }
func (h *Hooks) GenSnapshotError(k string, err error) { h.try(func() { h.inner.GenSnapshotError(k, err) }) }
func (h *Hooks) GenBumpError(k string, err error)     { h.try(func() { h.inner.GenBumpError(k, err) }) }
func (h *Hooks) SessionExpired(ep string)             { h.try(func() { h.inner.SessionExpired(ep) }) }
