package audit

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"autoclock/internal/model"
)

type fakeSource struct {
	events    []model.ClockEvent
	from, to  time.Time
	cutoff    time.Time
	deleteErr error
}

func (f *fakeSource) ListEvents(_ context.Context, from, to time.Time) ([]model.ClockEvent, error) {
	f.from, f.to = from, to
	var out []model.ClockEvent
	for _, ev := range f.events {
		if !ev.CreatedAt.Before(from) && ev.CreatedAt.Before(to) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeSource) DeleteEventsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 3, f.deleteErr
}

type fakeNotifier struct {
	filename string
	caption  string
	size     int
}

func (f *fakeNotifier) SendDocument(_ context.Context, filename string, data io.Reader, caption string) error {
	b, err := io.ReadAll(data)
	f.filename, f.caption, f.size = filename, caption, len(b)
	return err
}

func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.May, day, hour, minute, 0, 0, time.UTC)
}

func TestService_Export(t *testing.T) {
	src := &fakeSource{events: []model.ClockEvent{
		{ID: 1, CycleID: "a", Trigger: "tick", Action: model.ActionIn, Outcome: "clocked_in", ProbeState: "out", CreatedAt: at(14, 9, 26)},
		{ID: 2, CycleID: "b", Trigger: "tick", Action: model.ActionOut, Outcome: "failed", ProbeState: "in", Error: "not found", CreatedAt: at(14, 18, 56)},
		{ID: 3, CycleID: "c", Trigger: "tick", Action: model.ActionOut, Outcome: "clocked_out", ProbeState: "in", CreatedAt: at(14, 18, 57)},
		{ID: 4, CycleID: "d", Trigger: "check", Outcome: "noop", ProbeState: "in", CreatedAt: at(15, 10, 0)},
		{ID: 5, CycleID: "e", Trigger: "tick", Action: model.ActionIn, Outcome: "clocked_in", CreatedAt: time.Date(2024, time.June, 1, 9, 30, 0, 0, time.UTC)},
	}}
	notifier := &fakeNotifier{}
	dir := t.TempDir()
	s := NewService(Config{Dir: dir, Location: time.UTC}, src, nil, notifier, zerolog.Nop())

	path, err := s.Export(context.Background(), at(20, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "journal_2024-05.xlsx"), path)
	assert.Equal(t, at(1, 0, 0), src.from)
	assert.Equal(t, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC), src.to)

	assert.Equal(t, "journal_2024-05.xlsx", notifier.filename)
	assert.Equal(t, "Clock journal May 2024 (4 events)", notifier.caption)
	assert.Positive(t, notifier.size)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Events")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, eventColumns, rows[0])
	assert.Equal(t, "2024-05-14 18:56:00", rows[2][2])
	assert.Equal(t, "not found", rows[2][7])

	daily, err := f.GetRows("Daily")
	require.NoError(t, err)
	require.Len(t, daily, 2)
	assert.Equal(t, []string{"2024-05-14", "09:26", "18:57", "1"}, daily[1])
}

func TestService_ExportWithoutDir(t *testing.T) {
	s := NewService(Config{Location: time.UTC}, &fakeSource{}, nil, nil, zerolog.Nop())

	path, err := s.Export(context.Background(), at(1, 0, 0))
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestService_Cleanup(t *testing.T) {
	src := &fakeSource{}
	s := NewService(Config{RetentionDays: 30}, src, nil, nil, zerolog.Nop())
	s.now = func() time.Time { return at(31, 12, 0) }

	n, err := s.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, at(1, 12, 0), src.cutoff)

	src.deleteErr = errors.New("locked")
	_, err = s.Cleanup(context.Background())
	assert.ErrorContains(t, err, "locked")
}

func TestService_NextFirstOfMonth(t *testing.T) {
	s := NewService(Config{Location: time.UTC}, nil, nil, nil, zerolog.Nop())
	s.now = func() time.Time { return time.Date(2024, time.December, 31, 23, 0, 0, 0, time.UTC) }

	assert.Equal(t, time.Date(2025, time.January, 1, 0, 1, 0, 0, time.UTC), s.nextFirstOfMonth())
}

func TestService_StartStop(t *testing.T) {
	s := NewService(Config{}, &fakeSource{}, nil, nil, zerolog.Nop())
	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
}
