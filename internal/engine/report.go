package engine

import (
	"fmt"
	"time"

	"autoclock/internal/model"
)

type Trigger string

const (
	TriggerTick     Trigger = "tick"
	TriggerSettings Trigger = "settings"
	TriggerCheck    Trigger = "check"
	TriggerTest     Trigger = "test"
	TriggerManual   Trigger = "manual"
)

type Outcome string

const (
	OutcomeDisabled    Outcome = "disabled"
	OutcomeInactiveDay Outcome = "inactive_day"
	OutcomeNotNear     Outcome = "not_near"
	OutcomeNoop        Outcome = "noop"
	OutcomeSuppressed  Outcome = "suppressed"
	OutcomeClockedIn   Outcome = "clocked_in"
	OutcomeClockedOut  Outcome = "clocked_out"
	OutcomeFailed      Outcome = "failed"
	OutcomeBusy        Outcome = "busy"
)

// touchedBrowser reports whether a cycle with this outcome got past the cheap gates.
func (o Outcome) touchedBrowser() bool {
	switch o {
	case OutcomeDisabled, OutcomeInactiveDay, OutcomeNotNear, OutcomeBusy:
		return false
	}
	return true
}

func clockedOutcome(a model.Action) Outcome {
	if a == model.ActionOut {
		return OutcomeClockedOut
	}
	return OutcomeClockedIn
}

// Report describes one engine cycle.
type Report struct {
	CycleID    string           `json:"cycle_id"`
	Trigger    Trigger          `json:"trigger"`
	Outcome    Outcome          `json:"outcome"`
	Action     model.Action     `json:"action,omitempty"`
	Probe      model.ClockState `json:"probe,omitempty"`
	Attempts   int              `json:"attempts,omitempty"`
	Err        error            `json:"-"`
	Error      string           `json:"error,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

func (r Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// StatusText is the message shown to whoever triggered the cycle.
func (r Report) StatusText() string {
	switch r.Outcome {
	case OutcomeClockedIn:
		return "Successfully clocked in!"
	case OutcomeClockedOut:
		return "Successfully clocked out!"
	case OutcomeFailed:
		if r.Action != model.ActionNone {
			return fmt.Sprintf("Failed to %s. Try again.", r.Action.Verb())
		}
		return "Check failed. Try again."
	case OutcomeBusy:
		return "Another check is already running."
	case OutcomeDisabled:
		return "Auto clock in/out is disabled"
	case OutcomeInactiveDay:
		return "Today is not an active day."
	case OutcomeNotNear:
		return "Not near a scheduled clock time."
	case OutcomeSuppressed:
		return fmt.Sprintf("Already did %s today.", r.Action.Verb())
	case OutcomeNoop:
		if r.Probe.Definite() {
			return fmt.Sprintf("Nothing to do, portal shows clocked %s.", r.Probe)
		}
		return "Nothing to do."
	default:
		return string(r.Outcome)
	}
}
