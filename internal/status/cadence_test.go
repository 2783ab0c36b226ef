package status

import (
	"testing"
	"time"

	"dispenser-client/internal/clock"
)

func TestCadenceFor(t *testing.T) {
	if got := cadenceFor(true, 2*time.Second, 5*time.Second); got != 2*time.Second {
		t.Errorf("online cadence = %v", got)
	}
	if got := cadenceFor(false, 2*time.Second, 5*time.Second); got != 5*time.Second {
		t.Errorf("offline cadence = %v", got)
	}
}

func TestScheduler_ReArmSupersedesPreviousTimer(t *testing.T) {
	fake := clock.NewFake(epoch)
	s := scheduler{clock: fake}

	var fired []uint64
	record := func(gen uint64) {
		if s.current(gen) {
			fired = append(fired, gen)
		}
	}

	s.arm(5*time.Second, record)
	first := s.gen
	s.arm(2*time.Second, record)

	if fake.Pending() != 1 {
		t.Fatalf("re-arming must leave exactly one timer, got %d", fake.Pending())
	}
	if s.current(first) {
		t.Error("superseded generation must not be current")
	}

	fake.Advance(2 * time.Second)
	if len(fired) != 1 || fired[0] != s.gen {
		t.Errorf("expected only the latest timer to fire, got %v", fired)
	}
}

func TestScheduler_Cancel(t *testing.T) {
	fake := clock.NewFake(epoch)
	s := scheduler{clock: fake}

	calls := 0
	s.arm(time.Second, func(uint64) { calls++ })
	s.cancel()

	fake.Advance(time.Minute)
	if calls != 0 || fake.Pending() != 0 {
		t.Errorf("cancelled timer fired (calls=%d, pending=%d)", calls, fake.Pending())
	}
}
