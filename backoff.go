package querycache

import (
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	DefaultBackoffBase = 200 * time.Millisecond
	DefaultBackoffCap  = 5 * time.Second
)

// Backoff shapes the wait between attempts: exponential from Base, capped at
// Cap, with JitterPercent of random spread. Zero fields take the defaults.
// Disabled retries immediately, with no wait at all.
type Backoff struct {
	Base          time.Duration
	Cap           time.Duration
	JitterPercent uint64
	Disabled      bool
}

// schedule returns a fresh iterator; one per logical fetch.
func (b Backoff) schedule() retry.Backoff {
	if b.Disabled {
		return retry.BackoffFunc(func() (time.Duration, bool) { return 0, false })
	}
	base := coalesce(b.Base, DefaultBackoffBase)
	if base < 0 {
		base = DefaultBackoffBase
	}
	next := retry.NewExponential(base)
	next = retry.WithCappedDuration(coalesce(b.Cap, DefaultBackoffCap), next)
	if b.JitterPercent > 0 {
		next = retry.WithJitterPercent(b.JitterPercent, next)
	}
	return next
}
