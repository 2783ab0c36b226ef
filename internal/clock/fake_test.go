package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

func TestFake_FiresInDeadlineOrder(t *testing.T) {
	f := NewFake(epoch)
	var order []string

	f.AfterFunc(3*time.Second, func() { order = append(order, "c") })
	f.AfterFunc(1*time.Second, func() { order = append(order, "a") })
	f.AfterFunc(2*time.Second, func() { order = append(order, "b") })

	f.Advance(2 * time.Second)
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("unexpected order after 2s: %v", order)
	}
	if f.Pending() != 1 {
		t.Errorf("expected 1 pending timer, got %d", f.Pending())
	}

	f.Advance(time.Second)
	if len(order) != 3 || order[2] != "c" {
		t.Errorf("unexpected order after 3s: %v", order)
	}
	if got := f.Now(); !got.Equal(epoch.Add(3 * time.Second)) {
		t.Errorf("unexpected now %v", got)
	}
}

func TestFake_CallbackSeesDeadlineAsNow(t *testing.T) {
	f := NewFake(epoch)
	var seen time.Time
	f.AfterFunc(1500*time.Millisecond, func() { seen = f.Now() })

	f.Advance(10 * time.Second)

	if !seen.Equal(epoch.Add(1500 * time.Millisecond)) {
		t.Errorf("callback saw %v", seen)
	}
}

func TestFake_TimersArmedDuringAdvance(t *testing.T) {
	f := NewFake(epoch)
	fired := 0

	var tick func()
	tick = func() {
		fired++
		f.AfterFunc(time.Second, tick)
	}
	f.AfterFunc(time.Second, tick)

	f.Advance(5 * time.Second)

	if fired != 5 {
		t.Errorf("expected 5 ticks, got %d", fired)
	}
	if rem := f.Remaining(); len(rem) != 1 || rem[0] != time.Second {
		t.Errorf("expected one timer 1s out, got %v", rem)
	}
}

func TestFake_Stop(t *testing.T) {
	f := NewFake(epoch)
	fired := false
	timer := f.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Error("first Stop should report true")
	}
	if timer.Stop() {
		t.Error("second Stop should report false")
	}

	f.Advance(time.Minute)
	if fired {
		t.Error("stopped timer fired")
	}
}
