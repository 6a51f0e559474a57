package app

import "time"

// Clock lets the registry's throttle and TTL decisions run on fake time in tests.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
