package model

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used for history keys.
const DateLayout = "2006-01-02"

// Action is a clock action emitted by the engine.
type Action string

const (
	ActionNone Action = ""
	ActionIn   Action = "in"
	ActionOut  Action = "out"
)

// ParseAction accepts "in"/"out" in any case.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in":
		return ActionIn, nil
	case "out":
		return ActionOut, nil
	default:
		return ActionNone, fmt.Errorf("unknown action %q", s)
	}
}

// Opposite returns the other action. ActionNone stays ActionNone.
func (a Action) Opposite() Action {
	switch a {
	case ActionIn:
		return ActionOut
	case ActionOut:
		return ActionIn
	default:
		return ActionNone
	}
}

// ResultingState is the clock state implied by a successful action.
func (a Action) ResultingState() ClockState {
	switch a {
	case ActionIn:
		return StateIn
	case ActionOut:
		return StateOut
	default:
		return StateUnknown
	}
}

// Verb renders the action for humans ("clock in").
func (a Action) Verb() string {
	if a == ActionNone {
		return "none"
	}
	return "clock " + string(a)
}

// ClockState is the observed state of the portal.
type ClockState string

const (
	StateIn      ClockState = "in"
	StateOut     ClockState = "out"
	StateUnknown ClockState = "unknown"
	StateError   ClockState = "error"
)

// Definite reports whether the state is in or out.
func (s ClockState) Definite() bool {
	return s == StateIn || s == StateOut
}

// Phase is the lifecycle of one boundary on one day.
type Phase string

const (
	PhasePending    Phase = "pending"
	PhaseAttempting Phase = "attempting"
	PhaseConfirmed  Phase = "confirmed"
	PhaseAbandoned  Phase = "abandoned"
)

// ClockEvent is a journal row written after every engine cycle that reached a decision.
type ClockEvent struct {
	ID         int64     `json:"id"`
	CycleID    string    `json:"cycle_id"`
	Trigger    string    `json:"trigger"`
	Action     Action    `json:"action"`
	Outcome    string    `json:"outcome"`
	ProbeState string    `json:"probe_state"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
