package querycache

import "time"

// Clock is the time source used for staleness windows.
// Tests swap it to move time without sleeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
