package db

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoclock/internal/model"
	"autoclock/internal/settings"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "autoclock.db"), zerolog.New(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

var _ settings.Store = (*DB)(nil)

func TestSettingsUpsert(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	got, err := db.GetMany(ctx, []string{"enabled"})
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, db.SetMany(ctx, map[string]string{"enabled": "false", "clockInTime": "09:30"}))
	require.NoError(t, db.SetMany(ctx, map[string]string{"enabled": "true"}))

	got, err = db.GetMany(ctx, []string{"enabled", "clockInTime", "clockOutTime"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"enabled": "true", "clockInTime": "09:30"}, got)

	got, err = db.GetMany(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRepositoryOnSQLite(t *testing.T) {
	ctx := context.Background()
	repo := settings.NewRepository(newTestDB(t), zerolog.New(io.Discard))

	require.NoError(t, repo.EnsureDefaults(ctx))
	require.NoError(t, repo.RecordAction(ctx, model.ActionIn, "2024-05-15", model.StateIn))

	h, err := repo.LoadHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-15", h.LastClockInDate)
	assert.Equal(t, model.ActionIn, h.LastActionType)

	s, err := repo.LoadSchedule(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultSchedule(), s)
}

func TestJournal(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	base := time.Date(2024, 5, 15, 9, 31, 0, 0, time.UTC)
	for i, outcome := range []string{"not_near", "clocked_in", "failed"} {
		ev := &model.ClockEvent{
			CycleID:    "cycle",
			Trigger:    "tick",
			Action:     model.ActionIn,
			Outcome:    outcome,
			ProbeState: "out",
			CreatedAt:  base.Add(time.Duration(i) * 24 * time.Hour),
		}
		require.NoError(t, db.AppendEvent(ctx, ev))
		assert.NotZero(t, ev.ID)
	}

	events, err := db.ListEvents(ctx, base, base.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "not_near", events[0].Outcome)
	assert.Equal(t, "clocked_in", events[1].Outcome)
	assert.Equal(t, model.ActionIn, events[1].Action)

	n, err := db.DeleteEventsBefore(ctx, base.Add(36*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	events, err = db.ListEvents(ctx, base, base.Add(72*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "failed", events[0].Outcome)
}

func TestBackup(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, db.SetMany(ctx, map[string]string{"enabled": "true"}))

	dir := t.TempDir()
	svc := NewBackupService(db, BackupConfig{Enabled: true, Dir: dir, RetentionDays: 7}, zerolog.New(io.Discard))

	path, err := svc.PerformBackup(ctx)
	require.NoError(t, err)
	assert.FileExists(t, path)

	stale := filepath.Join(dir, "autoclock_20000101_000000.db")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))
	old := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(stale, old, old))

	assert.Equal(t, 1, svc.CleanupOldBackups())
	assert.NoFileExists(t, stale)
	assert.FileExists(t, path)

	restored, err := NewDB(path, zerolog.New(io.Discard))
	require.NoError(t, err)
	defer restored.Close()
	got, err := restored.GetMany(ctx, []string{"enabled"})
	require.NoError(t, err)
	assert.Equal(t, "true", got["enabled"])
}
