package engine

import "autoclock/internal/model"

// Reconcile decides the action for a probed state. nearIn and nearOut must
// already exclude boundaries recorded today. The function is total.
func Reconcile(state model.ClockState, nearIn, nearOut bool, last model.Action) model.Action {
	switch state {
	case model.StateOut:
		if nearIn {
			return model.ActionIn
		}
		return model.ActionNone
	case model.StateIn:
		if nearOut {
			return model.ActionOut
		}
		return model.ActionNone
	}

	// The page could not tell; trust the last recorded action.
	if nearIn && last != model.ActionIn {
		return model.ActionIn
	}
	if nearOut && last == model.ActionIn {
		return model.ActionOut
	}
	return model.ActionNone
}
