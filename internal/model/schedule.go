package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTime is returned for a time of day outside 00:00-23:59.
var ErrInvalidTime = errors.New("invalid time of day")

// TimeOfDay is a wall-clock time in 24h format.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: hour %q", ErrInvalidTime, parts[0])
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: minute %q", ErrInvalidTime, parts[1])
	}

	t := TimeOfDay{Hour: hour, Minute: minute}
	if !t.Valid() {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return t, nil
}

// TimeOfDayOf extracts the wall-clock time of t.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

// Minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Schedule is the persisted configuration read by the engine.
type Schedule struct {
	Enabled       bool
	ClockIn       TimeOfDay
	ClockOut      TimeOfDay
	BufferMinutes int
	// Days is indexed by time.Weekday (Sunday = 0).
	Days [7]bool
}

// DefaultSchedule returns the schedule used on first start.
func DefaultSchedule() Schedule {
	return Schedule{
		Enabled:       false,
		ClockIn:       TimeOfDay{Hour: 9, Minute: 30},
		ClockOut:      TimeOfDay{Hour: 19, Minute: 0},
		BufferMinutes: 5,
		Days: [7]bool{
			time.Monday:    true,
			time.Tuesday:   true,
			time.Wednesday: true,
			time.Thursday:  true,
			time.Friday:    true,
		},
	}
}

// ActiveOn reports whether the schedule runs on the given weekday.
func (s Schedule) ActiveOn(day time.Weekday) bool {
	return s.Days[day]
}

// ActiveDays lists the enabled weekdays starting from Monday.
func (s Schedule) ActiveDays() []time.Weekday {
	var days []time.Weekday
	for _, d := range WeekOrder {
		if s.Days[d] {
			days = append(days, d)
		}
	}
	return days
}

// Summary renders the one-line status shown on every control surface.
func (s Schedule) Summary() string {
	if !s.Enabled {
		return "Auto clock in/out is disabled"
	}

	days := s.ActiveDays()
	names := make([]string, 0, len(days))
	for _, d := range days {
		names = append(names, ShortDayName(d))
	}
	dayList := strings.Join(names, ", ")
	if dayList == "" {
		dayList = "no days"
	}

	return fmt.Sprintf("Active: Clock in at %s, clock out at %s on %s", s.ClockIn, s.ClockOut, dayList)
}

// WeekOrder is Monday-first ordering used for display and persistence.
var WeekOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// DayKey is the lowercase full weekday name ("monday").
func DayKey(d time.Weekday) string {
	return strings.ToLower(d.String())
}

// ShortDayName returns "Mon", "Tue", ...
func ShortDayName(d time.Weekday) string {
	return d.String()[:3]
}

// ParseWeekday accepts full or three-letter names in any case.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, d := range WeekOrder {
		if s == DayKey(d) || s == strings.ToLower(ShortDayName(d)) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", s)
}

// History records the last successful actions.
type History struct {
	LastClockInDate   string
	LastClockOutDate  string
	LastActionType    Action
	LastDetectedState ClockState
}

// RecordedOn reports whether the action was already recorded for date.
func (h History) RecordedOn(action Action, date string) bool {
	switch action {
	case ActionIn:
		return h.LastClockInDate == date
	case ActionOut:
		return h.LastClockOutDate == date
	default:
		return false
	}
}

// Record returns a copy of h with action recorded for date.
func (h History) Record(action Action, date string, detected ClockState) History {
	switch action {
	case ActionIn:
		h.LastClockInDate = date
	case ActionOut:
		h.LastClockOutDate = date
	default:
		return h
	}
	h.LastActionType = action
	if detected != "" {
		h.LastDetectedState = detected
	}
	return h
}
