// Package refresh reconciles views that depend on a completed dispense:
// after a settle delay it refreshes each registered view concurrently.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"dispenser-client/internal/clock"
	"dispenser-client/pkg/logger"
)

// DefaultSettleDelay gives the server time to record a finished pour
const DefaultSettleDelay = 1 * time.Second

// Target is a view that can refresh itself on demand
type Target interface {
	Refresh(ctx context.Context) error
}

// TargetFunc adapts a function to Target
type TargetFunc func(ctx context.Context) error

func (f TargetFunc) Refresh(ctx context.Context) error {
	return f(ctx)
}

type namedTarget struct {
	name   string
	target Target
}

// Config holds refresher configuration
type Config struct {
	SettleDelay time.Duration
	Clock       clock.Clock
}

// Refresher runs one round of refreshes per Trigger. A Trigger that lands
// while a settle timer is pending replaces it.
type Refresher struct {
	clock clock.Clock
	delay time.Duration

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	targets []namedTarget
	timer   clock.Timer
	gen     uint64
	closed  bool
}

// NewRefresher creates a refresher. Rounds run under a background context
// until Start binds them to a caller's.
func NewRefresher(config Config) *Refresher {
	if config.SettleDelay <= 0 {
		config.SettleDelay = DefaultSettleDelay
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Refresher{
		clock:  config.Clock,
		delay:  config.SettleDelay,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start scopes later refresh rounds to ctx. Rounds already running keep
// the context they started with until it is cancelled.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.cancel()
	r.ctx, r.cancel = context.WithCancel(ctx)
}

// Add registers a view to refresh
func (r *Refresher) Add(name string, t Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = append(r.targets, namedTarget{name: name, target: t})
}

// Trigger schedules a refresh round after the settle delay
func (r *Refresher) Trigger() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.stopLocked()
	gen := r.gen
	r.timer = r.clock.AfterFunc(r.delay, func() { r.fire(gen) })
}

// Pending reports whether a settle timer is armed
func (r *Refresher) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timer != nil
}

// Close cancels a pending round and any refresh in flight
func (r *Refresher) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	r.stopLocked()
	r.cancel()
}

func (r *Refresher) stopLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.gen++
}

func (r *Refresher) fire(gen uint64) {
	r.mu.Lock()
	if r.closed || gen != r.gen {
		r.mu.Unlock()
		return
	}
	r.timer = nil
	ctx := r.ctx
	targets := append([]namedTarget(nil), r.targets...)
	r.mu.Unlock()

	if err := refreshAll(ctx, targets); err != nil {
		logger.For("refresh").WithError(err).Debug("dependent view refresh round incomplete")
	}
}

// refreshAll runs every target concurrently. A plain group is used so a
// failing target neither cancels nor delays the others; the first error
// comes back annotated with how many views failed.
func refreshAll(ctx context.Context, targets []namedTarget) error {
	var (
		g      errgroup.Group
		failed atomic.Int32
	)
	for _, nt := range targets {
		nt := nt
		g.Go(func() error {
			if err := nt.target.Refresh(ctx); err != nil {
				failed.Add(1)
				return fmt.Errorf("%s: %w", nt.name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%d of %d views failed, first %w", failed.Load(), len(targets), err)
	}
	return nil
}
