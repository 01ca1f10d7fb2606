package querycache

// Kind separates reads from writes; each has its own retry budget.
type Kind uint8

const (
	KindQuery Kind = iota
	KindMutation
)

func (k Kind) String() string {
	if k == KindMutation {
		return "mutation"
	}
	return "query"
}

// RetryPolicy decides whether a failed attempt is tried again.
// Zero fields fall back to DefaultMaxQueryRetries and DefaultMaxMutationRetries;
// use a negative value to disable retries for a kind.
type RetryPolicy struct {
	MaxQueryRetries    int
	MaxMutationRetries int
}

// DefaultRetryPolicy allows 3 query retries (4 attempts) and 2 mutation
// retries (3 attempts).
var DefaultRetryPolicy = RetryPolicy{
	MaxQueryRetries:    DefaultMaxQueryRetries,
	MaxMutationRetries: DefaultMaxMutationRetries,
}

// Max returns the retry budget for kind.
func (p RetryPolicy) Max(kind Kind) int {
	var n int
	if kind == KindMutation {
		n = coalesce(p.MaxMutationRetries, DefaultMaxMutationRetries)
	} else {
		n = coalesce(p.MaxQueryRetries, DefaultMaxQueryRetries)
	}
	if n < 0 {
		return 0
	}
	return n
}

// ShouldRetry reports whether another attempt is allowed after attempt
// retries have already been made. Auth and permanent failures never retry.
func (p RetryPolicy) ShouldRetry(kind Kind, class Class, attempt int) bool {
	switch class {
	case ClassAuthFailure, ClassPermanent:
		return false
	}
	return attempt < p.Max(kind)
}
