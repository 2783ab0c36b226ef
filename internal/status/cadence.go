package status

import (
	"time"

	"dispenser-client/internal/clock"
)

// scheduler is the two-state polling timer: the cadence the armed timer
// was set with, and its handle. gen invalidates callbacks of timers that
// fired after being superseded.
type scheduler struct {
	clock   clock.Clock
	cadence time.Duration
	timer   clock.Timer
	gen     uint64
}

// arm cancels any armed timer and schedules fn(gen) after cadence
func (s *scheduler) arm(cadence time.Duration, fn func(gen uint64)) {
	s.cancel()
	s.cadence = cadence
	gen := s.gen
	s.timer = s.clock.AfterFunc(cadence, func() { fn(gen) })
}

// cancel stops the armed timer, if any
func (s *scheduler) cancel() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

// current reports whether gen belongs to the armed timer
func (s *scheduler) current(gen uint64) bool {
	return s.timer != nil && gen == s.gen
}

// cadenceFor picks the polling interval for a connectivity classification
func cadenceFor(online bool, fast, slow time.Duration) time.Duration {
	if online {
		return fast
	}
	return slow
}
