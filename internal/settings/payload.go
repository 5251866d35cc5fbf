package settings

import (
	"errors"
	"fmt"
	"time"

	"autoclock/internal/model"
)

// ScheduleView is the JSON form of a schedule, keyed like the store.
type ScheduleView struct {
	Enabled       bool   `json:"enabled"`
	ClockInTime   string `json:"clockInTime"`
	ClockOutTime  string `json:"clockOutTime"`
	BufferMinutes int    `json:"bufferMinutes"`
	Monday        bool   `json:"monday"`
	Tuesday       bool   `json:"tuesday"`
	Wednesday     bool   `json:"wednesday"`
	Thursday      bool   `json:"thursday"`
	Friday        bool   `json:"friday"`
	Saturday      bool   `json:"saturday"`
	Sunday        bool   `json:"sunday"`
}

func ViewOf(s model.Schedule) ScheduleView {
	return ScheduleView{
		Enabled:       s.Enabled,
		ClockInTime:   s.ClockIn.String(),
		ClockOutTime:  s.ClockOut.String(),
		BufferMinutes: s.BufferMinutes,
		Monday:        s.Days[time.Monday],
		Tuesday:       s.Days[time.Tuesday],
		Wednesday:     s.Days[time.Wednesday],
		Thursday:      s.Days[time.Thursday],
		Friday:        s.Days[time.Friday],
		Saturday:      s.Days[time.Saturday],
		Sunday:        s.Days[time.Sunday],
	}
}

// HistoryView is the JSON form of the action history.
type HistoryView struct {
	LastClockInDate   string `json:"lastClockInDate"`
	LastClockOutDate  string `json:"lastClockOutDate"`
	LastActionType    string `json:"lastActionType"`
	LastDetectedState string `json:"lastDetectedState"`
}

func HistoryViewOf(h model.History) HistoryView {
	return HistoryView{
		LastClockInDate:   h.LastClockInDate,
		LastClockOutDate:  h.LastClockOutDate,
		LastActionType:    string(h.LastActionType),
		LastDetectedState: string(h.LastDetectedState),
	}
}

// ErrInvalidValue wraps every rejected update field.
var ErrInvalidValue = errors.New("invalid setting")

// ScheduleUpdate is a partial schedule. Nil fields keep the current value.
type ScheduleUpdate struct {
	Enabled       *bool   `json:"enabled,omitempty"`
	ClockInTime   *string `json:"clockInTime,omitempty"`
	ClockOutTime  *string `json:"clockOutTime,omitempty"`
	BufferMinutes *int    `json:"bufferMinutes,omitempty"`
	Monday        *bool   `json:"monday,omitempty"`
	Tuesday       *bool   `json:"tuesday,omitempty"`
	Wednesday     *bool   `json:"wednesday,omitempty"`
	Thursday      *bool   `json:"thursday,omitempty"`
	Friday        *bool   `json:"friday,omitempty"`
	Saturday      *bool   `json:"saturday,omitempty"`
	Sunday        *bool   `json:"sunday,omitempty"`
}

// Apply returns base with the update applied. Invalid values are rejected
// rather than replaced, so a bad request never reaches the store.
func (u ScheduleUpdate) Apply(base model.Schedule) (model.Schedule, error) {
	s := base
	if u.Enabled != nil {
		s.Enabled = *u.Enabled
	}
	if u.ClockInTime != nil {
		t, err := model.ParseTimeOfDay(*u.ClockInTime)
		if err != nil {
			return base, fmt.Errorf("%w: clockInTime: %w", ErrInvalidValue, err)
		}
		s.ClockIn = t
	}
	if u.ClockOutTime != nil {
		t, err := model.ParseTimeOfDay(*u.ClockOutTime)
		if err != nil {
			return base, fmt.Errorf("%w: clockOutTime: %w", ErrInvalidValue, err)
		}
		s.ClockOut = t
	}
	if u.BufferMinutes != nil {
		if *u.BufferMinutes < 0 {
			return base, fmt.Errorf("%w: bufferMinutes must not be negative, got %d", ErrInvalidValue, *u.BufferMinutes)
		}
		s.BufferMinutes = *u.BufferMinutes
	}

	days := map[time.Weekday]*bool{
		time.Monday:    u.Monday,
		time.Tuesday:   u.Tuesday,
		time.Wednesday: u.Wednesday,
		time.Thursday:  u.Thursday,
		time.Friday:    u.Friday,
		time.Saturday:  u.Saturday,
		time.Sunday:    u.Sunday,
	}
	for d, v := range days {
		if v != nil {
			s.Days[d] = *v
		}
	}
	return s, nil
}
