// Package clock makes "now" an explicit dependency so recurrence arithmetic
// and driver loops stay deterministic under test.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System is the process wall clock.
var System Clock = systemClock{}
