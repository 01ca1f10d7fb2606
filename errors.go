package querycache

import (
	"errors"
	"fmt"
)

var (
	ErrClosed     = errors.New("querycache: client closed")
	ErrNilFetcher = errors.New("querycache: nil fetcher")
)

// FetchError is what callers receive once a fetch has stopped retrying.
// It unwraps to the fetcher's last error.
type FetchError struct {
	Key      string // empty for mutations
	Kind     Kind
	Class    Class
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	switch {
	case e.Key != "" && e.Attempts > 1:
		return fmt.Sprintf("%s %q failed after %d attempts (%s): %v", e.Kind, e.Key, e.Attempts, e.Class, e.Err)
	case e.Key != "":
		return fmt.Sprintf("%s %q failed (%s): %v", e.Kind, e.Key, e.Class, e.Err)
	case e.Attempts > 1:
		return fmt.Sprintf("%s failed after %d attempts (%s): %v", e.Kind, e.Attempts, e.Class, e.Err)
	default:
		return fmt.Sprintf("%s failed (%s): %v", e.Kind, e.Class, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// ClassOf returns the class recorded on a *FetchError in err's chain.
// ok is false when err did not come out of a cache or mutation.
func ClassOf(err error) (Class, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Class, true
	}
	return ClassTransient, false
}

// InvalidateError is returned when neither a generation bump nor a delete
// could make the entry stale (likely a backend outage).
type InvalidateError struct {
	Key     string
	BumpErr error
	DelErr  error
}

func (e *InvalidateError) Error() string {
	return fmt.Sprintf("invalidate %q failed: gen bump and delete failed: bump=%v; delete=%v",
		e.Key, e.BumpErr, e.DelErr)
}

func (e *InvalidateError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.BumpErr != nil {
		errs = append(errs, e.BumpErr)
	}
	if e.DelErr != nil {
		errs = append(errs, e.DelErr)
	}
	return errs
}
