package querycache

import "time"

// Hooks are lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; they run on the fetch path.
// key is the rendered Key (empty for mutations).
type Hooks interface {
	// A caller joined a fetch that was already in flight.
	FlightJoined(key string)

	// A failed attempt will be retried after delay.
	RetryScheduled(key string, kind Kind, attempt int, class Class, delay time.Duration)

	// A logical fetch settled. err is nil on success.
	FetchSettled(key string, kind Kind, attempts int, err error)

	// A stored record was deleted on read.
	// reason ∈ {"corrupt", "value_decode"}
	SelfHeal(storageKey, reason string)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)

	// GenStore errors (snapshot or bump).
	GenSnapshotError(storageKey string, err error)
	GenBumpError(storageKey string, err error)

	// The first auth failure of an episode fired logout and redirect.
	SessionExpired(episode string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) FlightJoined(string)                                    {}
func (NopHooks) RetryScheduled(string, Kind, int, Class, time.Duration) {}
func (NopHooks) FetchSettled(string, Kind, int, error)                  {}
func (NopHooks) SelfHeal(string, string)                                {}
func (NopHooks) ProviderSetRejected(string)                             {}
func (NopHooks) GenSnapshotError(string, error)                         {}
func (NopHooks) GenBumpError(string, error)                             {}
func (NopHooks) SessionExpired(string)                                  {}
