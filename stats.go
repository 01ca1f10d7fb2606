package querycache

import "sync/atomic"

// Stats is a point-in-time copy of a cache's counters.
type Stats struct {
	Hits     int64 // served fresh without fetching
	Fetches  int64 // flights started
	Joins    int64 // callers that joined a pending flight
	Failures int64 // flights that settled with an error
}

// HitRate returns hits over all Get calls, 0 when there were none.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Fetches + s.Joins
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type counters struct {
	hits     atomic.Int64
	fetches  atomic.Int64
	joins    atomic.Int64
	failures atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Hits:     c.hits.Load(),
		Fetches:  c.fetches.Load(),
		Joins:    c.joins.Load(),
		Failures: c.failures.Load(),
	}
}
