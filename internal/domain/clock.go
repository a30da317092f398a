package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock stamps prediction attempts. Tests freeze it via SetClock so
// published events carry deterministic timestamps.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source for attempt timestamps. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current time from the domain clock.
func Now() time.Time {
	return clock.Now()
}
