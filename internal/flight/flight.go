// Package flight collapses concurrent operations on the same key into one.
//
// Unlike a plain single-flight, joining is explicit: the first caller for a
// key is told to run the operation, everyone else receives the same *Call and
// waits on it. Waiters may give up (context) without affecting the call.
package flight

import (
	"context"
	"sync"
)

// Call is one in-flight operation shared by all callers that joined it.
type Call[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// Done is closed once the call has settled.
func (c *Call[V]) Done() <-chan struct{} { return c.done }

// Result returns the settlement. Only valid after Done is closed.
func (c *Call[V]) Result() (V, error) { return c.val, c.err }

// Wait blocks until the call settles or ctx is done, whichever comes first.
func (c *Call[V]) Wait(ctx context.Context) (V, error) {
	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Group tracks calls by key. The zero value is ready to use.
type Group[V any] struct {
	mu    sync.Mutex
	calls map[string]*Call[V]
}

// Join returns the pending call for key, creating it when there is none.
// leader is true for the caller that created it; that caller must Settle it.
func (g *Group[V]) Join(key string) (c *Call[V], leader bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.calls[key]; ok {
		return c, false
	}
	if g.calls == nil {
		g.calls = make(map[string]*Call[V])
	}
	c = &Call[V]{done: make(chan struct{})}
	g.calls[key] = c
	return c, true
}

// Settle records the outcome, releases every waiter and forgets the call so
// the next Join starts a new one.
func (g *Group[V]) Settle(key string, c *Call[V], v V, err error) {
	c.val, c.err = v, err
	g.mu.Lock()
	if g.calls[key] == c {
		delete(g.calls, key)
	}
	g.mu.Unlock()
	close(c.done)
}

// Pending reports whether a call for key is in flight.
func (g *Group[V]) Pending(key string) bool {
	g.mu.Lock()
	_, ok := g.calls[key]
	g.mu.Unlock()
	return ok
}

// Len returns the number of calls in flight.
func (g *Group[V]) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}
