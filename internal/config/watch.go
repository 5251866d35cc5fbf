package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"autoclock/internal/model"
)

// WatchSchedule loads the schedule file, calls onUpdate, and keeps calling it
// whenever the file changes. Invalid edits are logged and skipped. The
// directory is watched so editors that replace the file are handled.
func WatchSchedule(
	ctx context.Context,
	path string,
	debounce time.Duration,
	logger zerolog.Logger,
	onUpdate func(context.Context, model.Schedule),
) error {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	l := logger.With().Str("component", "schedule_watch").Str("path", path).Logger()

	s, err := LoadSchedule(path)
	if err != nil {
		return err
	}
	onUpdate(ctx, s)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	target := filepath.Clean(path)
	go func() {
		defer watcher.Close()

		timer := time.NewTimer(debounce)
		timer.Stop()
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					timer.Reset(debounce)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.Warn().Err(err).Msg("Schedule watcher error")
			case <-timer.C:
				s, err := LoadSchedule(path)
				if err != nil {
					l.Warn().Err(err).Msg("Schedule file ignored")
					continue
				}
				l.Info().Str("schedule", s.Summary()).Msg("Schedule file reloaded")
				onUpdate(ctx, s)
			}
		}
	}()

	return nil
}
