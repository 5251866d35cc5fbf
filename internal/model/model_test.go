package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"09:30", TimeOfDay{9, 30}, false},
		{" 7:05 ", TimeOfDay{7, 5}, false},
		{"23:59", TimeOfDay{23, 59}, false},
		{"24:00", TimeOfDay{}, true},
		{"12:60", TimeOfDay{}, true},
		{"-1:00", TimeOfDay{}, true},
		{"noon", TimeOfDay{}, true},
		{"", TimeOfDay{}, true},
		{"10:00:00", TimeOfDay{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTime)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Hour*60+tt.want.Minute, got.Minutes())
		})
	}
}

func TestScheduleSummary(t *testing.T) {
	s := DefaultSchedule()
	assert.Equal(t, "Auto clock in/out is disabled", s.Summary())

	s.Enabled = true
	assert.Equal(t, "Active: Clock in at 09:30, clock out at 19:00 on Mon, Tue, Wed, Thu, Fri", s.Summary())

	s.Days = [7]bool{time.Sunday: true, time.Saturday: true}
	assert.Equal(t, "Active: Clock in at 09:30, clock out at 19:00 on Sat, Sun", s.Summary())
}

func TestDefaultScheduleDays(t *testing.T) {
	s := DefaultSchedule()
	assert.True(t, s.ActiveOn(time.Wednesday))
	assert.False(t, s.ActiveOn(time.Saturday))
	assert.False(t, s.ActiveOn(time.Sunday))
	assert.Len(t, s.ActiveDays(), 5)
}

func TestHistoryRecord(t *testing.T) {
	var h History
	assert.False(t, h.RecordedOn(ActionIn, "2024-05-15"))

	h = h.Record(ActionIn, "2024-05-15", StateIn)
	assert.True(t, h.RecordedOn(ActionIn, "2024-05-15"))
	assert.False(t, h.RecordedOn(ActionOut, "2024-05-15"))
	assert.Equal(t, ActionIn, h.LastActionType)
	assert.Equal(t, StateIn, h.LastDetectedState)

	h = h.Record(ActionOut, "2024-05-15", "")
	assert.Equal(t, ActionOut, h.LastActionType)
	assert.Equal(t, StateIn, h.LastDetectedState)
	assert.Equal(t, "2024-05-15", h.LastClockInDate)

	assert.Equal(t, h, h.Record(ActionNone, "2024-05-16", StateOut))
}

func TestActionHelpers(t *testing.T) {
	a, err := ParseAction("OUT")
	require.NoError(t, err)
	assert.Equal(t, ActionOut, a)
	assert.Equal(t, ActionIn, a.Opposite())
	assert.Equal(t, StateOut, a.ResultingState())
	assert.Equal(t, "clock out", a.Verb())

	_, err = ParseAction("sideways")
	assert.Error(t, err)

	assert.True(t, StateIn.Definite())
	assert.False(t, StateUnknown.Definite())
}

func TestParseWeekday(t *testing.T) {
	d, err := ParseWeekday("Wed")
	require.NoError(t, err)
	assert.Equal(t, time.Wednesday, d)

	d, err = ParseWeekday("SUNDAY")
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, d)

	_, err = ParseWeekday("funday")
	assert.Error(t, err)
}
