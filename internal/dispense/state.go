package dispense

import (
	"errors"
	"fmt"
)

// State is the lifecycle state of the session's single dispense command
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StatePouring    State = "pouring"
	StateSuccess    State = "success"
	StateError      State = "error"
)

// Event drives the lifecycle from one state to the next
type Event int

const (
	EventSubmit          Event = iota // a valid command was accepted for submission
	EventAccepted                     // the server acknowledged with success=true
	EventRejected                     // transport failure or success=false
	EventPourElapsed                  // simulated pour duration passed
	EventFeedbackElapsed              // feedback display duration passed
)

func (e Event) String() string {
	switch e {
	case EventSubmit:
		return "submit"
	case EventAccepted:
		return "accepted"
	case EventRejected:
		return "rejected"
	case EventPourElapsed:
		return "pour_elapsed"
	case EventFeedbackElapsed:
		return "feedback_elapsed"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// ErrInvalidTransition is returned for an event the current state does not accept
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

type edge struct {
	from  State
	event Event
}

var transitions = map[edge]State{
	{StateIdle, EventSubmit}:             StateSubmitting,
	{StateSubmitting, EventAccepted}:     StatePouring,
	{StateSubmitting, EventRejected}:     StateError,
	{StatePouring, EventPourElapsed}:     StateSuccess,
	{StateSuccess, EventFeedbackElapsed}: StateIdle,
	{StateError, EventFeedbackElapsed}:   StateIdle,
}

// Transition returns the state that follows from on event. It has no side
// effects; timers are the engine's concern.
func Transition(from State, event Event) (State, error) {
	to, ok := transitions[edge{from, event}]
	if !ok {
		return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, from, event)
	}
	return to, nil
}

// timedEvent is the event a state schedules for itself on entry, if any
func timedEvent(s State) (Event, bool) {
	switch s {
	case StatePouring:
		return EventPourElapsed, true
	case StateSuccess, StateError:
		return EventFeedbackElapsed, true
	default:
		return 0, false
	}
}
