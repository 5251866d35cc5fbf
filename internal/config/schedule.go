package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"autoclock/internal/model"
)

// ScheduleFile is the YAML form of the schedule.
type ScheduleFile struct {
	Enabled       bool     `yaml:"enabled"`
	ClockIn       string   `yaml:"clock_in"`
	ClockOut      string   `yaml:"clock_out"`
	BufferMinutes *int     `yaml:"buffer_minutes"`
	Days          []string `yaml:"days"`
}

// Schedule validates the file and converts it. Omitted fields take the defaults.
func (f ScheduleFile) Schedule() (model.Schedule, error) {
	s := model.DefaultSchedule()
	s.Enabled = f.Enabled

	if f.ClockIn != "" {
		t, err := model.ParseTimeOfDay(f.ClockIn)
		if err != nil {
			return s, fmt.Errorf("clock_in: %w", err)
		}
		s.ClockIn = t
	}
	if f.ClockOut != "" {
		t, err := model.ParseTimeOfDay(f.ClockOut)
		if err != nil {
			return s, fmt.Errorf("clock_out: %w", err)
		}
		s.ClockOut = t
	}
	if f.BufferMinutes != nil {
		if *f.BufferMinutes < 0 {
			return s, fmt.Errorf("buffer_minutes: must not be negative, got %d", *f.BufferMinutes)
		}
		s.BufferMinutes = *f.BufferMinutes
	}
	if f.Days != nil {
		s.Days = [7]bool{}
		for _, name := range f.Days {
			d, err := model.ParseWeekday(name)
			if err != nil {
				return s, fmt.Errorf("days: %w", err)
			}
			s.Days[d] = true
		}
	}
	return s, nil
}

// ScheduleFileOf renders s for writing back to disk.
func ScheduleFileOf(s model.Schedule) ScheduleFile {
	buffer := s.BufferMinutes
	f := ScheduleFile{
		Enabled:       s.Enabled,
		ClockIn:       s.ClockIn.String(),
		ClockOut:      s.ClockOut.String(),
		BufferMinutes: &buffer,
		Days:          []string{},
	}
	for _, d := range s.ActiveDays() {
		f.Days = append(f.Days, model.ShortDayName(d))
	}
	return f
}

// LoadSchedule reads and validates a schedule file.
func LoadSchedule(path string) (model.Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Schedule{}, err
	}

	var f ScheduleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return model.Schedule{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return f.Schedule()
}

// WriteSchedule stores s at path in YAML.
func WriteSchedule(path string, s model.Schedule) error {
	data, err := yaml.Marshal(ScheduleFileOf(s))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
