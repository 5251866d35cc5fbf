package engine

import "autoclock/internal/model"

// GraceMinutes is how long after a boundary an action is still attempted.
const GraceMinutes = 120

// Boundary is one scheduled action of the day.
type Boundary struct {
	Action model.Action
	At     model.TimeOfDay
	Buffer int
}

// Boundaries returns the clock-in and clock-out boundaries of s.
func Boundaries(s model.Schedule) (in, out Boundary) {
	in = Boundary{Action: model.ActionIn, At: s.ClockIn, Buffer: s.BufferMinutes}
	out = Boundary{Action: model.ActionOut, At: s.ClockOut, Buffer: s.BufferMinutes}
	return in, out
}

// Near reports whether now falls within the buffer around the boundary or
// within the grace window after it. Only the same calendar day counts.
func (b Boundary) Near(now model.TimeOfDay) bool {
	diff := now.Minutes() - b.At.Minutes()
	if diff >= -b.Buffer && diff <= b.Buffer {
		return true
	}
	return diff > 0 && diff <= GraceMinutes
}

// Phase places the boundary in its daily lifecycle.
func (b Boundary) Phase(now model.TimeOfDay, recorded bool) model.Phase {
	switch {
	case recorded:
		return model.PhaseConfirmed
	case b.Near(now):
		return model.PhaseAttempting
	case now.Minutes() < b.At.Minutes():
		return model.PhasePending
	default:
		return model.PhaseAbandoned
	}
}
