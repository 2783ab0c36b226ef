package status

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"dispenser-client/internal/clock"
	"dispenser-client/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

var errUnreachable = errors.New("connection refused")

type fetchResult struct {
	status models.SystemStatus
	err    error
}

// scriptFetcher returns results in order, repeating the last one
type scriptFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	calls   int
}

func (f *scriptFetcher) FetchStatus(ctx context.Context) (models.SystemStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.calls
	f.calls++
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	return f.results[i].status, f.results[i].err
}

func (f *scriptFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func online(lastPour float64) fetchResult {
	return fetchResult{status: models.SystemStatus{
		ServerOnline: true,
		EspOnline:    true,
		EspStatus: models.DeviceStatus{
			State:        models.DeviceIdle,
			GlassPresent: true,
			Uptime:       100,
			LastPourMl:   lastPour,
		},
		Timestamp: 1718000000,
	}}
}

func offline() fetchResult {
	return fetchResult{status: models.SystemStatus{
		ServerOnline: true,
		EspOnline:    false,
		EspStatus:    models.DeviceStatus{State: models.DeviceOffline},
	}}
}

func failed() fetchResult {
	return fetchResult{err: errUnreachable}
}

func newTestSynchronizer(t *testing.T, results ...fetchResult) (*Synchronizer, *scriptFetcher, *clock.Fake) {
	t.Helper()

	fake := clock.NewFake(epoch)
	fetcher := &scriptFetcher{results: results}
	s := NewSynchronizer(fetcher, Config{
		OnlineInterval:  2 * time.Second,
		OfflineInterval: 5 * time.Second,
		Clock:           fake,
	})
	t.Cleanup(s.Stop)
	return s, fetcher, fake
}

func TestNewSynchronizer_InitialSnapshotIsOffline(t *testing.T) {
	s, fetcher, _ := newTestSynchronizer(t, online(0))

	snap := s.Snapshot()
	if snap.ServerOnline || snap.DeviceOnline || snap.DeviceState != models.DeviceOffline {
		t.Errorf("expected all-offline snapshot, got %+v", snap)
	}
	if !s.LastUpdated().IsZero() {
		t.Error("LastUpdated should be zero before the first fetch")
	}
	if s.Cadence() != 0 {
		t.Error("no timer should be armed before Start")
	}
	if fetcher.Calls() != 0 {
		t.Error("constructing must not fetch")
	}
}

func TestStart_FetchesImmediately(t *testing.T) {
	s, fetcher, fake := newTestSynchronizer(t, online(15))

	s.Start(context.Background())

	if fetcher.Calls() != 1 {
		t.Fatalf("expected 1 fetch before any tick, got %d", fetcher.Calls())
	}
	if !s.Snapshot().DeviceOnline {
		t.Error("snapshot should reflect the first fetch")
	}
	if !s.LastUpdated().Equal(epoch) {
		t.Errorf("LastUpdated = %v, want %v", s.LastUpdated(), epoch)
	}
	if s.Cadence() != 2*time.Second {
		t.Errorf("online device should poll every 2s, got %v", s.Cadence())
	}
	if fake.Pending() != 1 {
		t.Errorf("expected exactly one armed timer, got %d", fake.Pending())
	}
}

func TestStart_Twice_DoesNotDoubleSchedule(t *testing.T) {
	s, fetcher, fake := newTestSynchronizer(t, online(0))

	s.Start(context.Background())
	s.Start(context.Background())

	if fetcher.Calls() != 1 {
		t.Errorf("expected a single initial fetch, got %d", fetcher.Calls())
	}
	if fake.Pending() != 1 {
		t.Errorf("expected one timer, got %d", fake.Pending())
	}

	fake.Advance(2 * time.Second)
	if fetcher.Calls() != 2 {
		t.Errorf("expected one tick per interval, got %d fetches", fetcher.Calls())
	}
}

func TestCadenceFollowsConnectivity(t *testing.T) {
	s, fetcher, fake := newTestSynchronizer(t,
		online(0), // initial
		offline(), // t=2s
		offline(), // t=7s
		online(0), // t=12s
		failed(),  // t=14s
		online(0), // t=19s
	)

	steps := []struct {
		advance time.Duration
		fetches int
		cadence time.Duration
	}{
		{0, 1, 2 * time.Second},
		{2 * time.Second, 2, 5 * time.Second},
		{5 * time.Second, 3, 5 * time.Second},
		{5 * time.Second, 4, 2 * time.Second},
		{2 * time.Second, 5, 5 * time.Second},
		{5 * time.Second, 6, 2 * time.Second},
	}

	s.Start(context.Background())
	for i, step := range steps {
		fake.Advance(step.advance)
		if fetcher.Calls() != step.fetches {
			t.Fatalf("step %d: expected %d fetches, got %d", i, step.fetches, fetcher.Calls())
		}
		if s.Cadence() != step.cadence {
			t.Errorf("step %d: expected cadence %v, got %v", i, step.cadence, s.Cadence())
		}
		if fake.Pending() != 1 {
			t.Errorf("step %d: expected one armed timer, got %d", i, fake.Pending())
		}
		if rem := fake.Remaining(); rem[0] != step.cadence {
			t.Errorf("step %d: next tick in %v, want %v", i, rem[0], step.cadence)
		}
	}
}

func TestManualRefresh_ReschedulesOnChange(t *testing.T) {
	s, _, fake := newTestSynchronizer(t, online(0), offline())

	s.Start(context.Background())
	fake.Advance(time.Second)

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	if s.Cadence() != 5*time.Second {
		t.Errorf("manual refresh seeing offline should switch to 5s, got %v", s.Cadence())
	}
	if rem := fake.Remaining(); len(rem) != 1 || rem[0] != 5*time.Second {
		t.Errorf("expected a single timer 5s out, got %v", rem)
	}
}

func TestFailedPoll_KeepsNonConnectivityFields(t *testing.T) {
	s, _, fake := newTestSynchronizer(t, online(30), failed())

	s.Start(context.Background())
	before := s.Snapshot()

	fake.Advance(2 * time.Second)
	after := s.Snapshot()

	if after.ServerOnline || after.DeviceOnline || after.DeviceState != models.DeviceOffline {
		t.Errorf("connectivity should be forced offline, got %+v", after)
	}
	if after.LastPourMl != 30 || after.GlassPresent != before.GlassPresent ||
		after.UptimeSeconds != before.UptimeSeconds || after.ObservedAtEpochSeconds != before.ObservedAtEpochSeconds {
		t.Errorf("non-connectivity fields changed: before=%+v after=%+v", before, after)
	}
	if !s.LastUpdated().Equal(epoch.Add(2 * time.Second)) {
		t.Errorf("LastUpdated should advance on failure too, got %v", s.LastUpdated())
	}
}

func TestRefresh_ReturnsFetchError(t *testing.T) {
	s, _, _ := newTestSynchronizer(t, failed())

	if err := s.Refresh(context.Background()); !errors.Is(err, errUnreachable) {
		t.Errorf("expected fetch error, got %v", err)
	}
	if s.Snapshot().DeviceOnline {
		t.Error("snapshot should stay offline")
	}
}

func TestStop_CancelsTimer(t *testing.T) {
	s, fetcher, fake := newTestSynchronizer(t, online(0), offline())

	s.Start(context.Background())
	s.Stop()

	if fake.Pending() != 0 {
		t.Errorf("expected no armed timers after Stop, got %d", fake.Pending())
	}
	if s.Cadence() != 0 {
		t.Errorf("expected no cadence after Stop, got %v", s.Cadence())
	}

	fake.Advance(time.Minute)
	if fetcher.Calls() != 1 {
		t.Errorf("no fetch should happen after Stop, got %d", fetcher.Calls())
	}

	s.Refresh(context.Background())
	if !s.Snapshot().DeviceOnline {
		t.Error("results completing after Stop must be discarded")
	}

	s.Start(context.Background())
	if fake.Pending() != 0 {
		t.Error("Start after Stop must not re-arm")
	}
}

func TestSubscribe_ReceivesEverySnapshot(t *testing.T) {
	s, _, fake := newTestSynchronizer(t, online(10), failed())

	var got []models.StatusSnapshot
	s.Subscribe(func(snap models.StatusSnapshot) { got = append(got, snap) })

	s.Start(context.Background())
	fake.Advance(2 * time.Second)

	if len(got) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(got))
	}
	if !got[0].DeviceOnline || got[1].DeviceOnline || got[1].LastPourMl != 10 {
		t.Errorf("unexpected notifications: %+v", got)
	}
}

// gatedFetcher blocks each call until the test releases it
type gatedFetcher struct {
	entered chan int
	gates   []chan fetchResult
	n       atomic.Int32
}

func (f *gatedFetcher) FetchStatus(ctx context.Context) (models.SystemStatus, error) {
	i := int(f.n.Add(1)) - 1
	f.entered <- i
	r := <-f.gates[i]
	return r.status, r.err
}

func TestOverlappingRefresh_LastCompletionWins(t *testing.T) {
	fetcher := &gatedFetcher{
		entered: make(chan int, 2),
		gates:   []chan fetchResult{make(chan fetchResult), make(chan fetchResult)},
	}
	s := NewSynchronizer(fetcher, Config{Clock: clock.NewFake(epoch)})
	defer s.Stop()

	doneFirst := make(chan struct{})
	doneSecond := make(chan struct{})

	go func() {
		s.Refresh(context.Background())
		close(doneFirst)
	}()
	<-fetcher.entered

	go func() {
		s.Refresh(context.Background())
		close(doneSecond)
	}()
	<-fetcher.entered

	// The later call completes first; the earlier call completes last and wins
	fetcher.gates[1] <- online(10)
	<-doneSecond
	fetcher.gates[0] <- online(20)
	<-doneFirst

	if got := s.Snapshot().LastPourMl; got != 20 {
		t.Errorf("expected the most recently completed result (20ml), got %v", got)
	}
}

func TestSubscribe_OverlappingRefreshesDeliverInStoreOrder(t *testing.T) {
	s, _, _ := newTestSynchronizer(t, online(10), online(20))

	var (
		mu       sync.Mutex
		received []float64
	)
	entered := make(chan struct{})
	release := make(chan struct{})
	s.Subscribe(func(snap models.StatusSnapshot) {
		mu.Lock()
		received = append(received, snap.LastPourMl)
		mu.Unlock()
		if snap.LastPourMl == 10 {
			close(entered)
			<-release
		}
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.Refresh(context.Background())
	}()
	<-entered

	go func() {
		defer wg.Done()
		s.Refresh(context.Background())
	}()
	deadline := time.Now().Add(5 * time.Second)
	for s.Snapshot().LastPourMl != 20 {
		if time.Now().After(deadline) {
			t.Fatal("second fetch was never stored")
		}
		time.Sleep(time.Millisecond)
	}

	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(received) == 0 || received[len(received)-1] != s.Snapshot().LastPourMl {
		t.Errorf("listeners ended on %v, stored snapshot is %v", received, s.Snapshot().LastPourMl)
	}
	if len(received) != 2 || received[0] != 10 || received[1] != 20 {
		t.Errorf("expected delivery order [10 20], got %v", received)
	}
}

func TestDeliver_SkipsSupersededSnapshot(t *testing.T) {
	s, _, _ := newTestSynchronizer(t)

	var received []float64
	listeners := []func(models.StatusSnapshot){
		func(snap models.StatusSnapshot) { received = append(received, snap.LastPourMl) },
	}

	s.deliver(2, models.StatusSnapshot{LastPourMl: 20}, listeners)
	s.deliver(1, models.StatusSnapshot{LastPourMl: 10}, listeners)

	if len(received) != 1 || received[0] != 20 {
		t.Errorf("older snapshot delivered after a newer one: %v", received)
	}
}
