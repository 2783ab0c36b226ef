// Package dispense drives the session's single dispense command through
// submitting, an optimistic pouring phase, and timed feedback back to idle.
package dispense

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"dispenser-client/internal/api"
	"dispenser-client/internal/clock"
	"dispenser-client/internal/models"
	"dispenser-client/pkg/logger"
)

const (
	DefaultPourTimeout      = 4 * time.Second
	DefaultFeedbackDuration = 3 * time.Second
)

var (
	// ErrInvalidAmount rejects a request outside (0, MaxDispenseMl]
	ErrInvalidAmount = errors.New("invalid dispense amount")

	// ErrBusy rejects a request while another command is in its lifecycle
	ErrBusy = errors.New("dispense already in progress")

	// ErrClosed rejects a request after the engine was closed
	ErrClosed = errors.New("dispense engine closed")
)

// Submitter is the transport operation the engine calls
type Submitter interface {
	SendDispense(ctx context.Context, req models.DispenseRequest) (models.DispenseOutcome, error)
}

// Change describes one lifecycle transition
type Change struct {
	CommandID string
	From      State
	To        State
	Event     Event
	Request   models.DispenseRequest
	Reason    string // set on entry to StateError
	At        time.Time
}

// Config holds engine timings and callbacks. Callbacks run outside the
// engine's state lock and may read State or LastError. They must not call
// Close.
type Config struct {
	PourTimeout      time.Duration // simulated pour duration
	FeedbackDuration time.Duration // how long success/error is shown
	Clock            clock.Clock

	OnSuccess func()
	OnError   func(reason string)
	OnChange  func(Change)
}

// Engine owns the lifecycle state. At most one timer is armed at a time.
type Engine struct {
	submitter Submitter
	clock     clock.Clock
	pour      time.Duration
	feedback  time.Duration

	onSuccess func()
	onError   func(string)
	onChange  func(Change)

	// cbMu is held for reading while callbacks run; Close takes it for
	// writing so it returns only once delivery has stopped.
	cbMu sync.RWMutex

	mu        sync.Mutex
	state     State
	commandID string
	request   models.DispenseRequest
	lastError string
	timer     clock.Timer
	gen       uint64
	closed    bool
}

// NewEngine creates an idle engine
func NewEngine(submitter Submitter, config Config) *Engine {
	if config.PourTimeout <= 0 {
		config.PourTimeout = DefaultPourTimeout
	}
	if config.FeedbackDuration <= 0 {
		config.FeedbackDuration = DefaultFeedbackDuration
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}

	return &Engine{
		submitter: submitter,
		clock:     config.Clock,
		pour:      config.PourTimeout,
		feedback:  config.FeedbackDuration,
		onSuccess: config.OnSuccess,
		onError:   config.OnError,
		onChange:  config.OnChange,
		state:     StateIdle,
	}
}

// Dispense submits req if the engine is idle and the amount is valid.
// Validation failures return before any network call and leave the state
// untouched. Otherwise it blocks for the server's acknowledgement and
// returns nil; the outcome is reported through the callbacks.
func (e *Engine) Dispense(ctx context.Context, req models.DispenseRequest) error {
	if !req.Valid() {
		return fmt.Errorf("%w: %dml (must be 1-%dml)", ErrInvalidAmount, req.AmountMl, models.MaxDispenseMl)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.state != StateIdle {
		e.mu.Unlock()
		return ErrBusy
	}
	id := uuid.NewString()
	e.commandID = id
	e.request = req
	e.lastError = ""
	change, err := e.enterLocked(EventSubmit, "")
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.emit(change)

	log := logger.For("dispense").WithField("command_id", id)
	log.Infof("Submitting dispense: %dml for %s", req.AmountMl, req.UserToken)

	outcome, sendErr := e.submitter.SendDispense(ctx, req)

	event, reason := EventAccepted, ""
	if sendErr != nil || !outcome.Success {
		event, reason = EventRejected, rejectionText(outcome, sendErr)
		log.WithField("reason", reason).Warn("Dispense rejected")
	} else {
		log.Info("Dispense acknowledged, pouring")
	}

	e.mu.Lock()
	if e.closed || e.commandID != id || e.state != StateSubmitting {
		e.mu.Unlock()
		return nil
	}
	change, err = e.enterLocked(event, reason)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.emit(change)
	return nil
}

// State returns the current lifecycle state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// LastError returns the reason shown for the current error state; empty
// outside of StateError.
func (e *Engine) LastError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateError {
		return ""
	}
	return e.lastError
}

// Close cancels any pending timer. It waits for callbacks already running,
// no callback fires after it returns, and later Dispense calls fail with
// ErrClosed.
func (e *Engine) Close() {
	e.cbMu.Lock()
	defer e.cbMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	e.cancelTimerLocked()
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// enterLocked applies event, replaces the armed timer with the one the new
// state needs, and returns the change to emit. Caller holds e.mu.
func (e *Engine) enterLocked(event Event, reason string) (Change, error) {
	from := e.state
	to, err := Transition(from, event)
	if err != nil {
		return Change{}, err
	}

	e.state = to
	if to == StateError {
		e.lastError = reason
	}

	e.cancelTimerLocked()
	if next, ok := timedEvent(to); ok {
		d := e.feedback
		if to == StatePouring {
			d = e.pour
		}
		gen := e.gen
		e.timer = e.clock.AfterFunc(d, func() { e.fire(gen, next) })
	}

	return Change{
		CommandID: e.commandID,
		From:      from,
		To:        to,
		Event:     event,
		Request:   e.request,
		Reason:    reason,
		At:        e.clock.Now(),
	}, nil
}

func (e *Engine) cancelTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.gen++
}

// fire handles an expired pour or feedback timer
func (e *Engine) fire(gen uint64, event Event) {
	e.mu.Lock()
	if e.closed || gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.timer = nil
	change, err := e.enterLocked(event, "")
	e.mu.Unlock()

	if err != nil {
		logger.For("dispense").WithError(err).Error("timer fired in unexpected state")
		return
	}
	e.emit(change)
}

// emit runs the callbacks for a change unless the engine was closed since
// the change was applied
func (e *Engine) emit(c Change) {
	e.cbMu.RLock()
	defer e.cbMu.RUnlock()

	if e.isClosed() {
		return
	}
	logger.For("dispense").WithField("command_id", c.CommandID).Debugf("%s -> %s", c.From, c.To)

	if e.onChange != nil {
		e.onChange(c)
	}
	switch c.To {
	case StateSuccess:
		if e.onSuccess != nil {
			e.onSuccess()
		}
	case StateError:
		if e.onError != nil {
			e.onError(c.Reason)
		}
	}
}

// rejectionText picks the user-facing text for a failed submission: the
// server's reason code, then its message, then a generic fallback.
func rejectionText(outcome models.DispenseOutcome, err error) string {
	if err != nil {
		return api.ReasonText(err)
	}
	if outcome.Reason != "" {
		return outcome.Reason
	}
	if outcome.Message != "" {
		return outcome.Message
	}
	return api.DefaultReason
}
