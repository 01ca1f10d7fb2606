package querycache

// Status is the derived state of a cache entry.
type Status uint8

const (
	StatusEmpty Status = iota
	StatusFetching
	StatusFresh
	StatusStale
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusFetching:
		return "fetching"
	case StatusFresh:
		return "fresh"
	case StatusStale:
		return "stale"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}
