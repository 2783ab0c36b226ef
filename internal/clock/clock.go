// Package clock abstracts wall-clock time and one-shot timers so that
// polling cadences and lifecycle timeouts can be driven deterministically
// in tests.
package clock

import "time"

// Timer is a cancelable one-shot timer
type Timer interface {
	// Stop cancels the timer. It reports false if the timer already
	// fired or was stopped.
	Stop() bool
}

// Clock tells time and schedules callbacks
type Clock interface {
	Now() time.Time
	// AfterFunc calls f on its own goroutine once d has elapsed
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is the Clock backed by the time package
type Real struct{}

// New returns the real clock
func New() Clock {
	return Real{}
}

func (Real) Now() time.Time {
	return time.Now()
}

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
