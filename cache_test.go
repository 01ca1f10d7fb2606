package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	c "github.com/unkn0wn-root/querycache/codec"
	gen "github.com/unkn0wn-root/querycache/genstore"
	pr "github.com/unkn0wn-root/querycache/provider"
)

type memEntry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type memProvider struct {
	mu     sync.Mutex
	m      map[string]memEntry
	getErr error
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider { return &memProvider{m: make(map[string]memEntry)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.getErr != nil {
		return nil, false, p.getErr
	}
	e, ok := p.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(p.m, key)
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.mu.Lock()
	p.m[key] = memEntry{v: value, exp: exp}
	p.mu.Unlock()
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.m, key)
	p.mu.Unlock()
	return nil
}

func (p *memProvider) Close(_ context.Context) error { return nil }

func (p *memProvider) put(key string, raw []byte) {
	p.mu.Lock()
	p.m[key] = memEntry{v: raw}
	p.mu.Unlock()
}

func (p *memProvider) has(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.m[key]
	return ok
}

func (p *memProvider) failGets(err error) {
	p.mu.Lock()
	p.getErr = err
	p.mu.Unlock()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(1_700_000_000, 0)} }

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

type recHooks struct {
	NopHooks
	mu        sync.Mutex
	selfHeals []string
	bumpErrs  int
	settled   int
}

func (h *recHooks) SelfHeal(_, reason string) {
	h.mu.Lock()
	h.selfHeals = append(h.selfHeals, reason)
	h.mu.Unlock()
}

func (h *recHooks) GenBumpError(string, error) {
	h.mu.Lock()
	h.bumpErrs++
	h.mu.Unlock()
}

func (h *recHooks) FetchSettled(string, Kind, int, error) {
	h.mu.Lock()
	h.settled++
	h.mu.Unlock()
}

type user struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func testClient(t *testing.T, opts ClientOptions) *Client {
	t.Helper()
	opts.Backoff.Disabled = true
	cl := NewClient(opts)
	t.Cleanup(func() { _ = cl.Close(context.Background()) })
	return cl
}

func newTestCache(t *testing.T, cl *Client, mp pr.Provider, optsOpt func(*Options[user])) Cache[user] {
	t.Helper()
	opts := Options[user]{
		Namespace: "user",
		Provider:  mp,
		Codec:     c.JSON[user]{},
	}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	qc, err := New[user](cl, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = qc.Close(context.Background()) })
	return qc
}

func mustImpl[V any](t *testing.T, qc Cache[V]) *cache[V] {
	t.Helper()
	impl, ok := qc.(*cache[V])
	if !ok {
		t.Fatalf("unexpected concrete type for Cache")
	}
	return impl
}

// countingFetcher returns v and counts calls.
func countingFetcher(v user, calls *atomic.Int32) Fetcher[user] {
	return func(context.Context) (user, error) {
		calls.Add(1)
		return v, nil
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

var ada = user{ID: "1", Name: "Ada"}

func TestNewValidates(t *testing.T) {
	cl := testClient(t, ClientOptions{})
	mp := newMemProvider()
	cases := []struct {
		name string
		cl   *Client
		opts Options[user]
	}{
		{"nil client", nil, Options[user]{Namespace: "n", Provider: mp, Codec: c.JSON[user]{}}},
		{"no provider", cl, Options[user]{Namespace: "n", Codec: c.JSON[user]{}}},
		{"no codec", cl, Options[user]{Namespace: "n", Provider: mp}},
		{"no namespace", cl, Options[user]{Provider: mp, Codec: c.JSON[user]{}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New[user](tc.cl, tc.opts); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestGetArgumentErrors(t *testing.T) {
	ctx := context.Background()
	qc := newTestCache(t, testClient(t, ClientOptions{}), newMemProvider(), nil)

	if _, err := qc.Get(ctx, MustKey("u", 1), nil); !errors.Is(err, ErrNilFetcher) {
		t.Fatalf("nil fetcher: got %v", err)
	}
	var calls atomic.Int32
	if _, err := qc.Get(ctx, Key{}, countingFetcher(ada, &calls)); err == nil {
		t.Fatalf("zero key: expected error")
	}
	if calls.Load() != 0 {
		t.Fatalf("fetcher must not run for invalid arguments")
	}
}

// TestConcurrentGetsShareOneFetch: N callers for the same key while a fetch
// is pending trigger exactly one fetch and all receive its result.
func TestConcurrentGetsShareOneFetch(t *testing.T) {
	ctx := context.Background()
	qc := newTestCache(t, testClient(t, ClientOptions{}), newMemProvider(), nil)
	impl := mustImpl(t, qc)

	const n = 16
	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) (user, error) {
		calls.Add(1)
		<-release
		return ada, nil
	}

	k := MustKey("user", 1)
	var wg sync.WaitGroup
	results := make([]user, n)
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = qc.Get(ctx, k, fetch)
		}(i)
	}

	waitFor(t, "all callers to join", func() bool { return impl.Stats().Joins == n-1 })
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("fetch ran %d times, want 1", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil || results[i] != ada {
			t.Fatalf("caller %d: got %v, %v", i, results[i], errs[i])
		}
	}
	if st := qc.Stats(); st.Fetches != 1 {
		t.Fatalf("stats: %+v", st)
	}
}

// TestJoinersShareFailure: every waiter of a failed flight sees the same error.
func TestJoinersShareFailure(t *testing.T) {
	ctx := context.Background()
	qc := newTestCache(t, testClient(t, ClientOptions{}), newMemProvider(), nil)
	impl := mustImpl(t, qc)

	boom := Permanent(errors.New("boom"))
	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(context.Context) (user, error) {
		calls.Add(1)
		<-release
		return user{}, boom
	}

	k := MustKey("user", 2)
	const n = 4
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := qc.Get(ctx, k, fetch)
			errs <- err
		}()
	}
	waitFor(t, "joins", func() bool { return impl.Stats().Joins == n-1 })
	close(release)

	for i := 0; i < n; i++ {
		err := <-errs
		var fe *FetchError
		if !errors.As(err, &fe) || fe.Class != ClassPermanent || !errors.Is(err, boom) {
			t.Fatalf("caller got %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("fetch ran %d times", calls.Load())
	}
}

func TestQueryRetriesTransientThreeTimes(t *testing.T) {
	ctx := context.Background()
	hooks := &recHooks{}
	qc := newTestCache(t, testClient(t, ClientOptions{Hooks: hooks}), newMemProvider(), nil)

	var calls atomic.Int32
	netErr := errors.New("connection reset")
	_, err := qc.Get(ctx, MustKey("user", 3), func(context.Context) (user, error) {
		calls.Add(1)
		return user{}, netErr
	})

	if calls.Load() != 4 {
		t.Fatalf("attempts = %d, want 4", calls.Load())
	}
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("want *FetchError, got %T %v", err, err)
	}
	if fe.Attempts != 4 || fe.Class != ClassTransient || fe.Kind != KindQuery || !errors.Is(err, netErr) {
		t.Fatalf("unexpected FetchError %+v", fe)
	}
	if hooks.settled != 1 {
		t.Fatalf("FetchSettled fired %d times", hooks.settled)
	}
}

func TestMutationKindRetriesTwice(t *testing.T) {
	ctx := context.Background()
	qc := newTestCache(t, testClient(t, ClientOptions{}), newMemProvider(), nil)

	var calls atomic.Int32
	_, err := qc.Get(ctx, MustKey("user", 4), func(context.Context) (user, error) {
		calls.Add(1)
		return user{}, &StatusError{Code: 503}
	}, WithKind(KindMutation))

	if err == nil || calls.Load() != 3 {
		t.Fatalf("attempts = %d err=%v, want 3 attempts", calls.Load(), err)
	}
}

func TestTransientThenSuccess(t *testing.T) {
	ctx := context.Background()
	qc := newTestCache(t, testClient(t, ClientOptions{}), newMemProvider(), nil)

	var calls atomic.Int32
	v, err := qc.Get(ctx, MustKey("user", 5), func(context.Context) (user, error) {
		if calls.Add(1) < 3 {
			return user{}, &StatusError{Code: 502}
		}
		return ada, nil
	})
	if err != nil || v != ada || calls.Load() != 3 {
		t.Fatalf("got %v, %v after %d calls", v, err, calls.Load())
	}
	if qc.Status(ctx, MustKey("user", 5)) != StatusFresh {
		t.Fatalf("expected fresh after success")
	}
}

type sessionRec struct {
	logouts   atomic.Int32
	redirects atomic.Int32
	mu        sync.Mutex
	paths     []string
}

func (s *sessionRec) options() ClientOptions {
	return ClientOptions{
		Session: SessionFunc(func(context.Context) error {
			s.logouts.Add(1)
			return nil
		}),
		Navigator: NavigatorFunc(func(_ context.Context, path string) {
			s.redirects.Add(1)
			s.mu.Lock()
			s.paths = append(s.paths, path)
			s.mu.Unlock()
		}),
	}
}

func TestAuthFailureFetchesOnceAndExpiresSession(t *testing.T) {
	ctx := context.Background()
	rec := &sessionRec{}
	qc := newTestCache(t, testClient(t, rec.options()), newMemProvider(), nil)

	var calls atomic.Int32
	_, err := qc.Get(ctx, MustKey("user", 6), func(context.Context) (user, error) {
		calls.Add(1)
		return user{}, &StatusError{Code: 401}
	})

	if calls.Load() != 1 {
		t.Fatalf("auth failure must not retry; attempts = %d", calls.Load())
	}
	if class, ok := ClassOf(err); !ok || class != ClassAuthFailure {
		t.Fatalf("class = %v (%v)", class, ok)
	}
	if rec.logouts.Load() != 1 || rec.redirects.Load() != 1 {
		t.Fatalf("logouts=%d redirects=%d", rec.logouts.Load(), rec.redirects.Load())
	}
	if rec.paths[0] != DefaultLoginPath {
		t.Fatalf("redirect path = %q", rec.paths[0])
	}
}

// TestConcurrentAuthFailuresOneEpisode: simultaneous auth failures on
// different keys produce one logout and one redirect.
func TestConcurrentAuthFailuresOneEpisode(t *testing.T) {
	ctx := context.Background()
	rec := &sessionRec{}
	cl := testClient(t, rec.options())
	qc := newTestCache(t, cl, newMemProvider(), nil)

	start := make(chan struct{})
	fetch := func(context.Context) (user, error) {
		<-start
		return user{}, Unauthenticated(errors.New("token expired"))
	}

	const n = 5
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, _ = qc.Get(ctx, MustKey("user", 100+i), fetch)
		}(i)
	}
	waitFor(t, "flights", func() bool { return cl.InFlight() == n })
	close(start)
	wg.Wait()

	if rec.logouts.Load() != 1 || rec.redirects.Load() != 1 {
		t.Fatalf("logouts=%d redirects=%d, want 1/1", rec.logouts.Load(), rec.redirects.Load())
	}

	// a new session opens a new episode
	cl.SessionEstablished()
	_, _ = qc.Get(ctx, MustKey("user", 200), fetch)
	if rec.logouts.Load() != 2 || cl.Monitor().Episodes() != 2 {
		t.Fatalf("after re-login: logouts=%d episodes=%d", rec.logouts.Load(), cl.Monitor().Episodes())
	}
}

// TestStalenessWindow walks the fake clock through 0s, 100s and 400s with a
// 300s window.
func TestStalenessWindow(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	qc := newTestCache(t, testClient(t, ClientOptions{Clock: clock}), newMemProvider(), func(o *Options[user]) {
		o.StaleAfter = 300 * time.Second
	})

	var calls atomic.Int32
	k := MustKey("todos", 1)
	fetch := countingFetcher(ada, &calls)

	if _, err := qc.Get(ctx, k, fetch); err != nil || calls.Load() != 1 {
		t.Fatalf("t=0: err=%v calls=%d", err, calls.Load())
	}

	clock.Advance(100 * time.Second)
	if s := qc.Status(ctx, k); s != StatusFresh {
		t.Fatalf("t=100s: status %v", s)
	}
	if _, err := qc.Get(ctx, k, fetch); err != nil || calls.Load() != 1 {
		t.Fatalf("t=100s: expected hit, err=%v calls=%d", err, calls.Load())
	}

	clock.Advance(300 * time.Second)
	if s := qc.Status(ctx, k); s != StatusStale {
		t.Fatalf("t=400s: status %v", s)
	}
	if _, err := qc.Get(ctx, k, fetch); err != nil || calls.Load() != 2 {
		t.Fatalf("t=400s: expected refetch, err=%v calls=%d", err, calls.Load())
	}
	if st := qc.Stats(); st.Hits != 1 || st.Fetches != 2 {
		t.Fatalf("stats %+v", st)
	}
}

func TestWithStaleAfterPerGet(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	qc := newTestCache(t, testClient(t, ClientOptions{Clock: clock}), newMemProvider(), nil)

	var calls atomic.Int32
	k := MustKey("todos", 2)
	if _, err := qc.Get(ctx, k, countingFetcher(ada, &calls), WithStaleAfter(time.Second)); err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Second)
	if s := qc.Status(ctx, k); s != StatusStale {
		t.Fatalf("record window must override the 5m default; status %v", s)
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	ctx := context.Background()
	qc := newTestCache(t, testClient(t, ClientOptions{}), newMemProvider(), nil)

	var calls atomic.Int32
	k := MustKey("user", 7)
	fetch := countingFetcher(ada, &calls)
	if _, err := qc.Get(ctx, k, fetch); err != nil {
		t.Fatal(err)
	}
	if err := qc.Invalidate(ctx, k); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if s := qc.Status(ctx, k); s != StatusStale {
		t.Fatalf("after invalidate: %v", s)
	}
	if v, ok, _ := qc.Peek(ctx, k); !ok || v != ada {
		t.Fatalf("stale value must stay peekable")
	}
	if _, err := qc.Get(ctx, k, fetch); err != nil || calls.Load() != 2 {
		t.Fatalf("expected refetch; calls=%d err=%v", calls.Load(), err)
	}
	if s := qc.Status(ctx, k); s != StatusFresh {
		t.Fatalf("after refetch: %v", s)
	}
}

// TestInvalidateDuringFlight: the flight completes, but its result was
// fetched under the old generation and reads as stale.
func TestInvalidateDuringFlight(t *testing.T) {
	ctx := context.Background()
	cl := testClient(t, ClientOptions{})
	qc := newTestCache(t, cl, newMemProvider(), nil)

	started := make(chan struct{})
	release := make(chan struct{})
	k := MustKey("user", 8)
	done := make(chan error, 1)
	go func() {
		_, err := qc.Get(ctx, k, func(context.Context) (user, error) {
			close(started)
			<-release
			return ada, nil
		})
		done <- err
	}()
	<-started

	if err := qc.Invalidate(ctx, k); err != nil {
		t.Fatal(err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("flight must not be cancelled by Invalidate: %v", err)
	}
	if s := qc.Status(ctx, k); s != StatusStale {
		t.Fatalf("status %v, want stale", s)
	}
}

func TestCallerCancelDoesNotStopFlight(t *testing.T) {
	cl := testClient(t, ClientOptions{})
	qc := newTestCache(t, cl, newMemProvider(), nil)

	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(ctx context.Context) (user, error) {
		calls.Add(1)
		select {
		case <-release:
			return ada, nil
		case <-ctx.Done():
			return user{}, ctx.Err()
		}
	}

	k := MustKey("user", 9)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := qc.Get(ctx, k, fetch)
		errc <- err
	}()
	waitFor(t, "flight", func() bool { return cl.InFlight() == 1 })
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller got %v", err)
	}

	close(release)
	waitFor(t, "flight to settle", func() bool { return cl.InFlight() == 0 })

	v, err := qc.Get(context.Background(), k, fetch)
	if err != nil || v != ada || calls.Load() != 1 {
		t.Fatalf("expected the abandoned flight to fill the cache: v=%v err=%v calls=%d", v, err, calls.Load())
	}
}

func TestStatusTransitions(t *testing.T) {
	ctx := context.Background()
	qc := newTestCache(t, testClient(t, ClientOptions{}), newMemProvider(), nil)
	k := MustKey("user", 10)

	if s := qc.Status(ctx, k); s != StatusEmpty {
		t.Fatalf("initial: %v", s)
	}

	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = qc.Get(ctx, k, func(context.Context) (user, error) {
			<-release
			return ada, nil
		})
	}()
	waitFor(t, "fetching", func() bool { return qc.Status(ctx, k) == StatusFetching })
	close(release)
	<-done
	if s := qc.Status(ctx, k); s != StatusFresh {
		t.Fatalf("after success: %v", s)
	}

	// a failed refetch outranks the stale record
	_ = qc.Invalidate(ctx, k)
	_, err := qc.Get(ctx, k, func(context.Context) (user, error) {
		return user{}, Permanent(errors.New("validation"))
	})
	if err == nil {
		t.Fatal("expected failure")
	}
	if s := qc.Status(ctx, k); s != StatusFailed {
		t.Fatalf("after failure: %v", s)
	}

	var calls atomic.Int32
	if _, err := qc.Get(ctx, k, countingFetcher(ada, &calls)); err != nil {
		t.Fatal(err)
	}
	if s := qc.Status(ctx, k); s != StatusFresh {
		t.Fatalf("recovered: %v", s)
	}
}

func TestInvalidateClearsFailure(t *testing.T) {
	ctx := context.Background()
	qc := newTestCache(t, testClient(t, ClientOptions{}), newMemProvider(), nil)
	k := MustKey("user", 11)

	_, _ = qc.Get(ctx, k, func(context.Context) (user, error) { return user{}, Permanent(errors.New("x")) })
	if qc.Status(ctx, k) != StatusFailed {
		t.Fatal("expected failed")
	}
	_ = qc.Invalidate(ctx, k)
	if s := qc.Status(ctx, k); s != StatusEmpty {
		t.Fatalf("after invalidate: %v", s)
	}
}

func TestPeek(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	qc := newTestCache(t, testClient(t, ClientOptions{Clock: clock}), newMemProvider(), nil)
	k := MustKey("user", 12)

	if _, ok, err := qc.Peek(ctx, k); ok || err != nil {
		t.Fatalf("empty peek: ok=%v err=%v", ok, err)
	}
	var calls atomic.Int32
	_, _ = qc.Get(ctx, k, countingFetcher(ada, &calls))
	clock.Advance(time.Hour)
	v, ok, err := qc.Peek(ctx, k)
	if err != nil || !ok || v != ada {
		t.Fatalf("peek stale: %v %v %v", v, ok, err)
	}
	if calls.Load() != 1 {
		t.Fatalf("Peek must never fetch")
	}
}

func TestSelfHealCorruptRecord(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	hooks := &recHooks{}
	qc := newTestCache(t, testClient(t, ClientOptions{Hooks: hooks}), mp, nil)
	impl := mustImpl(t, qc)
	k := MustKey("user", 13)
	sk := impl.storageKey(k)

	mp.put(sk, []byte("not a record"))

	var calls atomic.Int32
	v, err := qc.Get(ctx, k, countingFetcher(ada, &calls))
	if err != nil || v != ada || calls.Load() != 1 {
		t.Fatalf("corrupt record must read as a miss: v=%v err=%v calls=%d", v, err, calls.Load())
	}
	hooks.mu.Lock()
	heals := append([]string(nil), hooks.selfHeals...)
	hooks.mu.Unlock()
	if len(heals) == 0 || heals[0] != "corrupt" {
		t.Fatalf("self heal reasons %v", heals)
	}
	if qc.Status(ctx, k) != StatusFresh {
		t.Fatalf("refetched record must be fresh")
	}
}

func TestSelfHealUndecodableValue(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	hooks := &recHooks{}
	cl := testClient(t, ClientOptions{Hooks: hooks})

	// same namespace, different value type
	strCache, err := New[string](cl, Options[string]{Namespace: "user", Provider: mp, Codec: c.String{}})
	if err != nil {
		t.Fatal(err)
	}
	k := MustKey("user", 14)
	if _, err := strCache.Get(ctx, k, func(context.Context) (string, error) { return "{{{", nil }); err != nil {
		t.Fatal(err)
	}

	qc := newTestCache(t, cl, mp, nil)
	if _, ok, _ := qc.Peek(ctx, k); ok {
		t.Fatal("undecodable value must not be returned")
	}
	if mp.has(mustImpl(t, qc).storageKey(k)) {
		t.Fatal("undecodable record must be deleted")
	}
}

func TestProviderErrorReadsAsMiss(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	qc := newTestCache(t, testClient(t, ClientOptions{}), mp, nil)

	mp.failGets(errors.New("backend down"))
	var calls atomic.Int32
	v, err := qc.Get(ctx, MustKey("user", 15), countingFetcher(ada, &calls))
	if err != nil || v != ada || calls.Load() != 1 {
		t.Fatalf("v=%v err=%v calls=%d", v, err, calls.Load())
	}
}

type failingGen struct{ gen.GenStore }

func (failingGen) Bump(context.Context, string) (uint64, error) {
	return 0, errors.New("gen down")
}

func TestInvalidateFallsBackToDelete(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	hooks := &recHooks{}
	local := gen.NewLocalGenStore(0, 0)
	qc := newTestCache(t, testClient(t, ClientOptions{Hooks: hooks}), mp, func(o *Options[user]) {
		o.GenStore = failingGen{local}
	})
	k := MustKey("user", 16)

	var calls atomic.Int32
	_, _ = qc.Get(ctx, k, countingFetcher(ada, &calls))
	if err := qc.Invalidate(ctx, k); err != nil {
		t.Fatalf("delete fallback should succeed: %v", err)
	}
	if s := qc.Status(ctx, k); s != StatusEmpty {
		t.Fatalf("status %v, want empty", s)
	}
	if hooks.bumpErrs != 1 {
		t.Fatalf("GenBumpError fired %d times", hooks.bumpErrs)
	}
}

func TestClosedClientRejectsGet(t *testing.T) {
	ctx := context.Background()
	cl := NewClient(ClientOptions{})
	qc := newTestCache(t, cl, newMemProvider(), nil)
	if err := cl.Close(ctx); err != nil {
		t.Fatal(err)
	}
	var calls atomic.Int32
	if _, err := qc.Get(ctx, MustKey("user", 17), countingFetcher(ada, &calls)); !errors.Is(err, ErrClosed) {
		t.Fatalf("got %v, want ErrClosed", err)
	}
}

func TestNamespacesIsolate(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	cl := testClient(t, ClientOptions{})
	a := newTestCache(t, cl, mp, func(o *Options[user]) { o.Namespace = "a" })
	b := newTestCache(t, cl, mp, func(o *Options[user]) { o.Namespace = "b" })

	var calls atomic.Int32
	k := MustKey("user", 18)
	_, _ = a.Get(ctx, k, countingFetcher(ada, &calls))
	if b.Status(ctx, k) != StatusEmpty {
		t.Fatal("namespace b must not see a's record")
	}
}
