// Package status keeps a local snapshot of the dispenser's server and
// device status fresh by polling on a cadence that follows connectivity.
package status

import (
	"context"
	"sync"
	"time"

	"dispenser-client/internal/clock"
	"dispenser-client/internal/models"
	"dispenser-client/pkg/logger"
)

const (
	DefaultOnlineInterval  = 2 * time.Second
	DefaultOfflineInterval = 5 * time.Second
)

// Fetcher is the transport operation the synchronizer polls
type Fetcher interface {
	FetchStatus(ctx context.Context) (models.SystemStatus, error)
}

// Config holds synchronizer configuration
type Config struct {
	OnlineInterval  time.Duration // cadence while the device is online
	OfflineInterval time.Duration // cadence while it is offline
	Clock           clock.Clock
}

// Synchronizer polls status and owns the latest snapshot. Exactly one poll
// timer is armed between Start and Stop.
type Synchronizer struct {
	fetcher Fetcher
	clock   clock.Clock
	fast    time.Duration
	slow    time.Duration

	mu          sync.Mutex
	snapshot    models.StatusSnapshot
	lastUpdated time.Time
	started     bool
	stopped     bool
	sched       scheduler
	ctx         context.Context
	cancel      context.CancelFunc
	listeners   []func(models.StatusSnapshot)
	seq         uint64 // bumped for every stored snapshot

	// deliverMu orders listener calls; delivered is the newest seq handed out
	deliverMu sync.Mutex
	delivered uint64
}

// NewSynchronizer creates a synchronizer holding the all-offline snapshot
func NewSynchronizer(fetcher Fetcher, config Config) *Synchronizer {
	if config.OnlineInterval <= 0 {
		config.OnlineInterval = DefaultOnlineInterval
	}
	if config.OfflineInterval <= 0 {
		config.OfflineInterval = DefaultOfflineInterval
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}

	return &Synchronizer{
		fetcher:  fetcher,
		clock:    config.Clock,
		fast:     config.OnlineInterval,
		slow:     config.OfflineInterval,
		snapshot: models.InitialSnapshot(),
		sched:    scheduler{clock: config.Clock},
	}
}

// Subscribe registers fn to receive snapshots in the order they were
// stored. A snapshot superseded before its delivery began is skipped, so
// the last one delivered is always the one Snapshot returns. fn must not
// call Refresh synchronously. Must be called before Start.
func (s *Synchronizer) Subscribe(fn func(models.StatusSnapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Start arms the poll timer and performs the first fetch before returning.
// ctx bounds every timer-driven fetch. Calling Start again, or after Stop,
// does nothing.
func (s *Synchronizer) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.sched.arm(cadenceFor(s.snapshot.DeviceOnline, s.fast, s.slow), s.tick)
	runCtx := s.ctx
	s.mu.Unlock()

	logger.For("status").Infof("Starting status polling (online=%v, offline=%v)", s.fast, s.slow)
	s.Refresh(runCtx)
}

// Stop cancels the poll timer and any in-flight fetch. Results that
// complete after Stop are discarded.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true
	s.sched.cancel()
	if s.cancel != nil {
		s.cancel()
	}
}

// Refresh fetches status once and stores the result. It may run
// concurrently with the poll timer; whichever fetch completes last wins.
// The returned error is informational: the snapshot already reflects it.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	wire, err := s.fetcher.FetchStatus(ctx)
	s.apply(wire, err)
	return err
}

// Snapshot returns the latest snapshot
func (s *Synchronizer) Snapshot() models.StatusSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// LastUpdated returns when the latest fetch completed; zero before the first
func (s *Synchronizer) LastUpdated() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdated
}

// Cadence returns the interval of the armed poll timer; zero when none is armed
func (s *Synchronizer) Cadence() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sched.timer == nil {
		return 0
	}
	return s.sched.cadence
}

// tick runs when the poll timer fires. The next tick is armed before the
// fetch so polling keeps a steady interval regardless of fetch latency.
func (s *Synchronizer) tick(gen uint64) {
	s.mu.Lock()
	if s.stopped || !s.sched.current(gen) {
		s.mu.Unlock()
		return
	}
	s.sched.arm(s.sched.cadence, s.tick)
	ctx := s.ctx
	s.mu.Unlock()

	s.Refresh(ctx)
}

// apply stores the outcome of one fetch and re-arms the timer when the
// connectivity classification no longer matches its cadence.
func (s *Synchronizer) apply(wire models.SystemStatus, err error) {
	log := logger.For("status")

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}

	if err != nil {
		log.WithError(err).Debug("status fetch failed, projecting offline")
		s.snapshot = s.snapshot.OfflineProjection()
	} else {
		s.snapshot = models.SnapshotFromWire(wire)
	}
	s.lastUpdated = s.clock.Now()

	if s.started {
		want := cadenceFor(s.snapshot.DeviceOnline, s.fast, s.slow)
		if want != s.sched.cadence {
			log.Infof("Device online=%v, switching poll cadence %v -> %v",
				s.snapshot.DeviceOnline, s.sched.cadence, want)
			s.sched.arm(want, s.tick)
		}
	}

	s.seq++
	seq := s.seq
	snap := s.snapshot
	listeners := append([]func(models.StatusSnapshot){}, s.listeners...)
	s.mu.Unlock()

	s.deliver(seq, snap, listeners)
}

func (s *Synchronizer) deliver(seq uint64, snap models.StatusSnapshot, listeners []func(models.StatusSnapshot)) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	if seq <= s.delivered {
		return
	}
	s.delivered = seq
	for _, fn := range listeners {
		fn(snap)
	}
}
