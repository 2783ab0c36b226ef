// Package feed polls the dispenser's activity log and leaderboard on a
// fixed cadence. Failures are silent: the previous items stay in place
// until a later fetch succeeds.
package feed

import (
	"context"
	"sync"
	"time"

	"dispenser-client/internal/clock"
	"dispenser-client/pkg/logger"
)

const (
	DefaultLogsInterval        = 5 * time.Second
	DefaultLeaderboardInterval = 10 * time.Second
)

// FetchFunc loads the full current collection
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// Poller holds the latest collection and replaces it wholesale on every
// successful fetch.
type Poller[T any] struct {
	name     string
	fetch    FetchFunc[T]
	clock    clock.Clock
	interval time.Duration

	mu          sync.Mutex
	items       []T
	lastUpdated time.Time
	timer       clock.Timer
	gen         uint64
	started     bool
	stopped     bool
	ctx         context.Context
	cancel      context.CancelFunc
	listeners   []func([]T)
	seq         uint64

	deliverMu sync.Mutex
	delivered uint64
}

// NewPoller creates a poller; name only shows up in logs
func NewPoller[T any](name string, fetch FetchFunc[T], interval time.Duration, c clock.Clock) *Poller[T] {
	if c == nil {
		c = clock.New()
	}
	return &Poller[T]{
		name:     name,
		fetch:    fetch,
		clock:    c,
		interval: interval,
	}
}

// Subscribe registers fn to receive fetched collections in the order they
// were stored, skipping any superseded before delivery began. fn must not
// call Refresh synchronously. Must be called before Start.
func (p *Poller[T]) Subscribe(fn func([]T)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Start fetches once and then every interval until Stop. Repeated calls do
// nothing.
func (p *Poller[T]) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.armLocked()
	runCtx := p.ctx
	p.mu.Unlock()

	logger.For(p.name).Infof("Starting %s polling every %v", p.name, p.interval)
	p.Refresh(runCtx)
}

// Stop cancels the timer and any in-flight fetch
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}
	p.stopped = true
	p.cancelLocked()
	if p.cancel != nil {
		p.cancel()
	}
}

// Refresh fetches once outside the cadence. The error is returned for
// callers that care; the poller itself ignores it.
func (p *Poller[T]) Refresh(ctx context.Context) error {
	items, err := p.fetch(ctx)
	if err != nil {
		logger.For(p.name).WithError(err).Debugf("%s fetch failed", p.name)
		return err
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.items = items
	p.lastUpdated = p.clock.Now()
	p.seq++
	seq := p.seq
	listeners := append([]func([]T){}, p.listeners...)
	p.mu.Unlock()

	p.deliver(seq, items, listeners)
	return nil
}

func (p *Poller[T]) deliver(seq uint64, items []T, listeners []func([]T)) {
	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()

	if seq <= p.delivered {
		return
	}
	p.delivered = seq
	for _, fn := range listeners {
		fn(items)
	}
}

// Items returns the latest collection in server order
func (p *Poller[T]) Items() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]T(nil), p.items...)
}

// LastUpdated returns when the latest successful fetch completed
func (p *Poller[T]) LastUpdated() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastUpdated
}

func (p *Poller[T]) armLocked() {
	p.cancelLocked()
	gen := p.gen
	p.timer = p.clock.AfterFunc(p.interval, func() { p.tick(gen) })
}

func (p *Poller[T]) cancelLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.gen++
}

func (p *Poller[T]) tick(gen uint64) {
	p.mu.Lock()
	if p.stopped || gen != p.gen {
		p.mu.Unlock()
		return
	}
	p.armLocked()
	ctx := p.ctx
	p.mu.Unlock()

	p.Refresh(ctx)
}
