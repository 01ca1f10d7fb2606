package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
)

// Fetcher performs one attempt of a request. The cache treats it as opaque
// except for classifying the error it returns.
type Fetcher[V any] func(ctx context.Context) (V, error)

// ClientOptions configure a Client. Every field is optional.
type ClientOptions struct {
	Classifier ErrorClassifier // nil => DefaultClassifier{}
	Policy     RetryPolicy     // zero => DefaultRetryPolicy
	Backoff    Backoff         // zero => 200ms exponential, capped at 5s

	// Session-expired sequence collaborators. See Monitor.
	Session   SessionManager
	Navigator Navigator
	LoginPath string // "" => DefaultLoginPath

	Logger Logger // nil => NopLogger
	Hooks  Hooks  // nil => NopHooks
	Clock  Clock  // nil => system clock
}

// Client is the session-scoped context every cache and mutation runs in.
// It owns the retry policy, the auth failure monitor and the lifetime of
// in-flight fetches: flights keep running when their callers give up, and
// stop only when the Client is closed.
//
// Create one per user session (or per process for a single-user app).
type Client struct {
	classifier ErrorClassifier
	policy     RetryPolicy
	backoff    Backoff
	monitor    *Monitor
	log        Logger
	hooks      Hooks
	clock      Clock

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex // guards closed against wg.Add
	closed bool
	wg     sync.WaitGroup

	inflight atomic.Int64
}

func NewClient(opts ClientOptions) *Client {
	c := &Client{
		classifier: coalesce[ErrorClassifier](opts.Classifier, DefaultClassifier{}),
		policy:     opts.Policy,
		backoff:    opts.Backoff,
		log:        coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:      coalesce[Hooks](opts.Hooks, NopHooks{}),
		clock:      coalesce[Clock](opts.Clock, systemClock{}),
	}
	c.monitor = NewMonitor(MonitorOptions{
		Session:   opts.Session,
		Navigator: opts.Navigator,
		LoginPath: opts.LoginPath,
		Logger:    c.log,
		Hooks:     c.hooks,
	})
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Monitor exposes the auth failure monitor shared by all caches of c.
func (c *Client) Monitor() *Monitor { return c.monitor }

// SessionEstablished must be called after a successful login; it closes the
// current session-expired episode.
func (c *Client) SessionEstablished() { c.monitor.SessionEstablished() }

// InFlight returns the number of flights currently running.
func (c *Client) InFlight() int { return int(c.inflight.Load()) }

// Close cancels in-flight fetches and waits for them to settle, or for ctx.
// Safe to call multiple times.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// spawn runs fn on its own goroutine bound to the client's lifetime rather
// than any caller's. It returns false once the client is closed.
func (c *Client) spawn(fn func(ctx context.Context)) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.wg.Add(1)
	c.mu.Unlock()

	c.inflight.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.inflight.Add(-1)
		fn(c.ctx)
	}()
	return true
}

// Mutate runs a write with the mutation retry budget. Mutations are neither
// cached nor deduplicated and run on the caller's context. Terminal auth
// failures reach the monitor like any query.
func Mutate[V any](ctx context.Context, c *Client, fn Fetcher[V]) (V, error) {
	var zero V
	if fn == nil {
		return zero, ErrNilFetcher
	}
	if c.isClosed() {
		return zero, ErrClosed
	}
	return execute(ctx, c, "", KindMutation, fn)
}

// execute drives one logical fetch: attempt, classify, consult the policy,
// back off, repeat. On a terminal failure it returns a *FetchError and
// forwards the class to the monitor.
func execute[V any](ctx context.Context, c *Client, key string, kind Kind, fetch Fetcher[V]) (V, error) {
	var (
		val     V
		tries   int
		class   Class
		lastErr error
	)

	inner := c.backoff.schedule()
	b := retry.BackoffFunc(func() (time.Duration, bool) {
		d, stop := inner.Next()
		if !stop {
			c.hooks.RetryScheduled(key, kind, tries, class, d)
			c.log.Debug("retrying fetch", Fields{"key": key, "kind": kind.String(), "attempt": tries, "class": class.String(), "delay": d, "err": lastErr})
		}
		return d, stop
	})

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		v, err := fetch(ctx)
		tries++
		if err == nil {
			val = v
			return nil
		}
		lastErr = err
		class = c.classifier.Classify(err)
		if !c.policy.ShouldRetry(kind, class, tries-1) {
			return err
		}
		return retry.RetryableError(err)
	})
	if err == nil {
		c.hooks.FetchSettled(key, kind, tries, nil)
		return val, nil
	}

	// Do gave up on the context rather than on the fetcher's error
	if lastErr == nil || !errors.Is(err, lastErr) {
		class = c.classifier.Classify(err)
		if lastErr != nil {
			err = errors.Join(err, lastErr)
		}
	}

	fe := &FetchError{Key: key, Kind: kind, Class: class, Attempts: tries, Err: err}
	c.hooks.FetchSettled(key, kind, tries, fe)
	c.log.Debug("fetch failed", Fields{"key": key, "kind": kind.String(), "class": class.String(), "attempts": tries, "err": err})
	// the episode must run to completion even if this caller is gone
	c.monitor.OnClassifiedFailure(context.WithoutCancel(ctx), class, fe)

	var zero V
	return zero, fe
}
