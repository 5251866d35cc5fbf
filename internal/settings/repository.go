package settings

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"autoclock/internal/model"
)

// Repository reads and writes the schedule and action history on top of a Store.
type Repository struct {
	store  Store
	logger zerolog.Logger
}

func NewRepository(store Store, logger zerolog.Logger) *Repository {
	return &Repository{
		store:  store,
		logger: logger.With().Str("component", "settings").Logger(),
	}
}

// EnsureDefaults writes the default value of every key that is missing.
// Existing values are never overwritten.
func (r *Repository) EnsureDefaults(ctx context.Context) error {
	existing, err := r.store.GetMany(ctx, AllKeys())
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	missing := make(map[string]string)
	for k, v := range Defaults() {
		if _, ok := existing[k]; !ok {
			missing[k] = v
		}
	}
	if len(missing) == 0 {
		return nil
	}

	if err := r.store.SetMany(ctx, missing); err != nil {
		return fmt.Errorf("write default settings: %w", err)
	}
	r.logger.Info().Int("keys", len(missing)).Msg("Default settings written")
	return nil
}

// LoadSchedule returns the stored schedule. Malformed values are replaced by
// their defaults and logged.
func (r *Repository) LoadSchedule(ctx context.Context) (model.Schedule, error) {
	values, err := r.store.GetMany(ctx, ScheduleKeys())
	if err != nil {
		return model.Schedule{}, fmt.Errorf("read schedule: %w", err)
	}

	s, invalid := DecodeSchedule(values)
	if len(invalid) > 0 {
		r.logger.Warn().Strs("keys", invalid).Msg("Malformed schedule values replaced by defaults")
	}
	return s, nil
}

// SaveSchedule overwrites every schedule key.
func (r *Repository) SaveSchedule(ctx context.Context, s model.Schedule) error {
	if !s.ClockIn.Valid() || !s.ClockOut.Valid() {
		return fmt.Errorf("save schedule: %w", model.ErrInvalidTime)
	}
	if s.BufferMinutes < 0 {
		return fmt.Errorf("save schedule: negative buffer %d", s.BufferMinutes)
	}
	if err := r.store.SetMany(ctx, EncodeSchedule(s)); err != nil {
		return fmt.Errorf("write schedule: %w", err)
	}
	return nil
}

// SetEnabled flips only the enabled flag.
func (r *Repository) SetEnabled(ctx context.Context, enabled bool) error {
	if err := r.store.SetMany(ctx, map[string]string{KeyEnabled: strconv.FormatBool(enabled)}); err != nil {
		return fmt.Errorf("write enabled: %w", err)
	}
	return nil
}

func (r *Repository) LoadHistory(ctx context.Context) (model.History, error) {
	values, err := r.store.GetMany(ctx, HistoryKeys())
	if err != nil {
		return model.History{}, fmt.Errorf("read history: %w", err)
	}
	return DecodeHistory(values), nil
}

// RecordAction stores a successful action for date.
func (r *Repository) RecordAction(ctx context.Context, action model.Action, date string, detected model.ClockState) error {
	values := map[string]string{KeyLastActionType: string(action)}
	switch action {
	case model.ActionIn:
		values[KeyLastClockInDate] = date
	case model.ActionOut:
		values[KeyLastClockOutDate] = date
	default:
		return fmt.Errorf("record action: unknown action %q", action)
	}
	if detected != "" {
		values[KeyLastDetectedState] = string(detected)
	}

	if err := r.store.SetMany(ctx, values); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

// All returns the raw stored values of every known key.
func (r *Repository) All(ctx context.Context) (map[string]string, error) {
	values, err := r.store.GetMany(ctx, AllKeys())
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	return values, nil
}
