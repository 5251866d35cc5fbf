package config

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoclock/internal/model"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadAppliesDefaultsAndEnv(t *testing.T) {
	t.Setenv("AUTOCLOCK_TEST_TOKEN", "secret-token")
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
timezone: Asia/Kolkata
telegram:
  enabled: true
  bot_token: ${AUTOCLOCK_TEST_TOKEN}
  allowed_users: [42]
executor:
  max_attempts: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", cfg.Telegram.BotToken)
	assert.Equal(t, []int64{42}, cfg.Telegram.AllowedUsers)
	assert.Equal(t, 2, cfg.Executor.MaxAttempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, cfg.RetryDelays())
	assert.Equal(t, 15*time.Second, cfg.ElementTimeout())
	assert.Equal(t, time.Second, cfg.ConfirmSettle())
	assert.Equal(t, 5*time.Second, cfg.ExistingSettle())
	assert.Equal(t, 10*time.Second, cfg.NewTabSettle())
	assert.Equal(t, "@every 1m", cfg.Scheduler.Spec)
	assert.Equal(t, 5*time.Minute, cfg.CycleTimeout())
	assert.Equal(t, "sqlite", cfg.Storage)
	assert.Equal(t, "https://newstreet.keka.com/#/home/dashboard", cfg.Portal.DashboardURL)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadValidates(t *testing.T) {
	tests := map[string]string{
		"bad timezone":    "timezone: Mars/Olympus",
		"bad storage":     "storage: etcd",
		"redis no addr":   "storage: redis",
		"telegram token":  "telegram:\n  enabled: true",
		"too many clicks": "executor:\n  max_attempts: 7",
		"falling delays":  "executor:\n  retry_delays_seconds: [4, 2]",
		"zero delay":      "executor:\n  retry_delays_seconds: [0, 2]",
		"flat delays":     "executor:\n  retry_delays_seconds: [2, 2]",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			writeFile(t, path, content)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsUnboundedRetries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "executor:\n  max_attempts: 7\n  retry_delays_seconds: [4, 2, 0]\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_attempts")

	writeFile(t, path, "executor:\n  max_attempts: 3\n  retry_delays_seconds: [1, 3]\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second, 3 * time.Second}, cfg.RetryDelays())
}

func TestScheduleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	writeFile(t, path, `
enabled: true
clock_in: "08:45"
buffer_minutes: 0
days: [mon, Wednesday, sat]
`)

	s, err := LoadSchedule(path)
	require.NoError(t, err)
	assert.True(t, s.Enabled)
	assert.Equal(t, model.TimeOfDay{Hour: 8, Minute: 45}, s.ClockIn)
	assert.Equal(t, model.TimeOfDay{Hour: 19}, s.ClockOut)
	assert.Equal(t, 0, s.BufferMinutes)
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday, time.Saturday}, s.ActiveDays())

	require.NoError(t, WriteSchedule(path, s))
	again, err := LoadSchedule(path)
	require.NoError(t, err)
	assert.Equal(t, s, again)
}

func TestScheduleFileRejectsInvalid(t *testing.T) {
	for name, content := range map[string]string{
		"time":   `clock_out: "19:75"`,
		"day":    `days: [funday]`,
		"buffer": `buffer_minutes: -1`,
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "schedule.yaml")
			writeFile(t, path, content)
			_, err := LoadSchedule(path)
			assert.Error(t, err)
		})
	}
}

func TestWatchSchedule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	writeFile(t, path, "enabled: false\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []model.Schedule
	err := WatchSchedule(ctx, path, 20*time.Millisecond, zerolog.New(io.Discard), func(_ context.Context, s model.Schedule) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})
	require.NoError(t, err)

	mu.Lock()
	require.Len(t, got, 1)
	assert.False(t, got[0].Enabled)
	mu.Unlock()

	writeFile(t, path, "enabled: true\nclock_in: \"07:00\"\n")
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) >= 2 && got[len(got)-1].Enabled && got[len(got)-1].ClockIn.Hour == 7
	}, 3*time.Second, 20*time.Millisecond)

	writeFile(t, filepath.Join(filepath.Dir(path), "other.yaml"), "enabled: false\n")
	writeFile(t, path, "clock_in: \"99:00\"\n")
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, got[len(got)-1].Enabled)
}
