package settings

import (
	"strconv"
	"time"

	"autoclock/internal/model"
)

// Persisted keys. Names match the values stored by earlier installs.
const (
	KeyEnabled           = "enabled"
	KeyClockInTime       = "clockInTime"
	KeyClockOutTime      = "clockOutTime"
	KeyBufferMinutes     = "bufferMinutes"
	KeyLastClockInDate   = "lastClockInDate"
	KeyLastClockOutDate  = "lastClockOutDate"
	KeyLastActionType    = "lastActionType"
	KeyLastDetectedState = "lastDetectedState"
)

// ScheduleKeys lists every key written by a settings save.
func ScheduleKeys() []string {
	keys := []string{KeyEnabled, KeyClockInTime, KeyClockOutTime, KeyBufferMinutes}
	for _, d := range model.WeekOrder {
		keys = append(keys, model.DayKey(d))
	}
	return keys
}

// HistoryKeys lists the keys owned by the engine.
func HistoryKeys() []string {
	return []string{KeyLastClockInDate, KeyLastClockOutDate, KeyLastActionType, KeyLastDetectedState}
}

// AllKeys is ScheduleKeys followed by HistoryKeys.
func AllKeys() []string {
	return append(ScheduleKeys(), HistoryKeys()...)
}

// Defaults returns the value of every key on a fresh install.
func Defaults() map[string]string {
	values := EncodeSchedule(model.DefaultSchedule())
	for _, k := range HistoryKeys() {
		values[k] = ""
	}
	return values
}

// EncodeSchedule renders s as stored values.
func EncodeSchedule(s model.Schedule) map[string]string {
	values := map[string]string{
		KeyEnabled:       strconv.FormatBool(s.Enabled),
		KeyClockInTime:   s.ClockIn.String(),
		KeyClockOutTime:  s.ClockOut.String(),
		KeyBufferMinutes: strconv.Itoa(s.BufferMinutes),
	}
	for _, d := range model.WeekOrder {
		values[model.DayKey(d)] = strconv.FormatBool(s.Days[d])
	}
	return values
}

// DecodeSchedule builds a schedule from stored values. Missing or malformed
// values keep their defaults; the names of the offending keys are returned.
func DecodeSchedule(values map[string]string) (model.Schedule, []string) {
	s := model.DefaultSchedule()
	var invalid []string

	if v, ok := values[KeyEnabled]; ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			invalid = append(invalid, KeyEnabled)
		} else {
			s.Enabled = b
		}
	}

	if v, ok := values[KeyClockInTime]; ok && v != "" {
		t, err := model.ParseTimeOfDay(v)
		if err != nil {
			invalid = append(invalid, KeyClockInTime)
		} else {
			s.ClockIn = t
		}
	}

	if v, ok := values[KeyClockOutTime]; ok && v != "" {
		t, err := model.ParseTimeOfDay(v)
		if err != nil {
			invalid = append(invalid, KeyClockOutTime)
		} else {
			s.ClockOut = t
		}
	}

	if v, ok := values[KeyBufferMinutes]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			invalid = append(invalid, KeyBufferMinutes)
		} else {
			s.BufferMinutes = n
		}
	}

	for _, d := range model.WeekOrder {
		key := model.DayKey(d)
		v, ok := values[key]
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			invalid = append(invalid, key)
			continue
		}
		s.Days[d] = b
	}

	return s, invalid
}

// DecodeHistory builds the action history from stored values. Unrecognised
// action or state values are treated as empty.
func DecodeHistory(values map[string]string) model.History {
	h := model.History{
		LastClockInDate:  validDate(values[KeyLastClockInDate]),
		LastClockOutDate: validDate(values[KeyLastClockOutDate]),
	}

	switch a := model.Action(values[KeyLastActionType]); a {
	case model.ActionIn, model.ActionOut:
		h.LastActionType = a
	}

	switch s := model.ClockState(values[KeyLastDetectedState]); s {
	case model.StateIn, model.StateOut, model.StateUnknown, model.StateError:
		h.LastDetectedState = s
	}

	return h
}

func validDate(s string) string {
	if _, err := time.Parse(model.DateLayout, s); err != nil {
		return ""
	}
	return s
}
