package db

import (
	"context"
	"time"

	"autoclock/internal/model"
)

// AppendEvent writes a journal row and sets its ID.
func (db *DB) AppendEvent(ctx context.Context, ev *model.ClockEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO clock_events (cycle_id, trigger_name, action, outcome, probe_state, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.CycleID, ev.Trigger, string(ev.Action), ev.Outcome, ev.ProbeState, ev.Error, ev.CreatedAt.UTC())
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ev.ID = id
	return nil
}

// ListEvents returns journal rows created in [from, to), oldest first.
func (db *DB) ListEvents(ctx context.Context, from, to time.Time) ([]model.ClockEvent, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, cycle_id, trigger_name, action, outcome, probe_state, error, created_at
		FROM clock_events
		WHERE created_at >= ? AND created_at < ?
		ORDER BY created_at ASC, id ASC`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.ClockEvent
	for rows.Next() {
		var ev model.ClockEvent
		var action string
		if err := rows.Scan(&ev.ID, &ev.CycleID, &ev.Trigger, &action, &ev.Outcome,
			&ev.ProbeState, &ev.Error, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Action = model.Action(action)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// DeleteEventsBefore removes journal rows older than cutoff and returns how many were deleted.
func (db *DB) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM clock_events WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
