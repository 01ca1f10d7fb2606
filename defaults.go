package querycache

import "time"

const (
	DefaultStaleAfter         = 5 * time.Minute
	DefaultRetention          = time.Hour
	DefaultMaxQueryRetries    = 3
	DefaultMaxMutationRetries = 2
	DefaultLoginPath          = "/login"
)

// coalesce returns def when v is the zero value of T, v otherwise.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
