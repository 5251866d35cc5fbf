package audit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"autoclock/internal/model"
)

// Config holds configuration for the audit service.
type Config struct {
	// RetentionDays is how many days of journal to keep. Default: 90.
	RetentionDays int
	// Dir receives the monthly workbooks. Empty disables writing to disk.
	Dir      string
	Location *time.Location
}

// Service exports the previous month's journal on the 1st and prunes old rows.
type Service struct {
	config   Config
	source   EventSource
	writer   func() ExcelWriter
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

func NewService(config Config, source EventSource, writerFactory func() ExcelWriter, notifier Notifier, logger zerolog.Logger) *Service {
	if config.RetentionDays <= 0 {
		config.RetentionDays = 90
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if writerFactory == nil {
		writerFactory = NewExcelizeWriter
	}
	return &Service{
		config:   config,
		source:   source,
		writer:   writerFactory,
		notifier: notifier,
		logger:   logger.With().Str("component", "audit").Logger(),
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()

	s.logger.Info().Int("retention_days", s.config.RetentionDays).Msg("Audit service started")
}

// Stop gracefully stops the audit service.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info().Msg("Audit service stopped")
}

func (s *Service) loop() {
	defer s.wg.Done()

	nextRun := s.nextFirstOfMonth()
	timer := time.NewTimer(time.Until(nextRun))
	defer timer.Stop()
	s.logger.Info().Time("time", nextRun).Msg("Next audit scheduled")

	for {
		select {
		case <-s.stopCh:
			return
		case <-timer.C:
			s.RunExportAndCleanup()

			nextRun = s.nextFirstOfMonth()
			timer.Reset(time.Until(nextRun))
			s.logger.Info().Time("time", nextRun).Msg("Next audit scheduled")
		}
	}
}

func (s *Service) nextFirstOfMonth() time.Time {
	now := s.now().In(s.config.Location)
	return time.Date(now.Year(), now.Month()+1, 1, 0, 1, 0, 0, now.Location())
}

// RunExportAndCleanup exports last month and then prunes the journal.
func (s *Service) RunExportAndCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	prev := s.now().In(s.config.Location).AddDate(0, -1, 0)
	if _, err := s.Export(ctx, prev); err != nil {
		s.logger.Error().Err(err).Msg("Failed to export journal")
	}
	if _, err := s.Cleanup(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Failed to clean up journal")
	}
}

// Export writes the journal of month's calendar month to a workbook and
// returns its path. The path is empty when Dir is unset.
func (s *Service) Export(ctx context.Context, month time.Time) (string, error) {
	if s.source == nil {
		return "", errors.New("event source not configured")
	}

	from, to := MonthRange(month.In(s.config.Location))
	evs, err := s.source.ListEvents(ctx, from, to)
	if err != nil {
		return "", fmt.Errorf("list events: %w", err)
	}

	excel := s.writer()
	defer excel.Close()

	if err := s.writeEvents(excel, evs); err != nil {
		return "", err
	}
	if err := s.writeDaily(excel, evs); err != nil {
		return "", err
	}

	filename := GenerateFilename(from)
	var path string
	if s.config.Dir != "" {
		if err := os.MkdirAll(s.config.Dir, 0o755); err != nil {
			return "", fmt.Errorf("create export dir: %w", err)
		}
		path = filepath.Join(s.config.Dir, filename)
		if err := excel.SaveToFile(path); err != nil {
			return "", fmt.Errorf("save %s: %w", path, err)
		}
	}

	if s.notifier != nil {
		var buf bytes.Buffer
		if err := excel.Save(&buf); err != nil {
			return path, fmt.Errorf("save excel: %w", err)
		}
		caption := fmt.Sprintf("Clock journal %s (%d events)", from.Format("January 2006"), len(evs))
		if err := s.notifier.SendDocument(ctx, filename, &buf, caption); err != nil {
			return path, fmt.Errorf("send document: %w", err)
		}
	}

	s.logger.Info().Str("file", filename).Int("events", len(evs)).Msg("Journal exported")
	return path, nil
}

var eventColumns = []string{"id", "cycle_id", "created_at", "trigger", "action", "outcome", "probe_state", "error"}

func (s *Service) writeEvents(excel ExcelWriter, evs []model.ClockEvent) error {
	if err := excel.AddSheet("Events"); err != nil {
		return err
	}
	if err := excel.WriteHeader(eventColumns); err != nil {
		return err
	}
	for _, ev := range evs {
		row := []any{
			ev.ID,
			ev.CycleID,
			ev.CreatedAt.In(s.config.Location).Format("2006-01-02 15:04:05"),
			ev.Trigger,
			string(ev.Action),
			ev.Outcome,
			ev.ProbeState,
			ev.Error,
		}
		if err := excel.WriteRow(row); err != nil {
			return fmt.Errorf("write event %d: %w", ev.ID, err)
		}
	}
	return nil
}

type daySummary struct {
	clockIn  string
	clockOut string
	failures int
}

// writeDaily condenses the month into one row per day with a successful or failed action.
func (s *Service) writeDaily(excel ExcelWriter, evs []model.ClockEvent) error {
	days := make(map[string]*daySummary)
	for _, ev := range evs {
		if ev.Outcome != "clocked_in" && ev.Outcome != "clocked_out" && ev.Outcome != "failed" {
			continue
		}
		t := ev.CreatedAt.In(s.config.Location)
		key := t.Format(model.DateLayout)
		d, ok := days[key]
		if !ok {
			d = &daySummary{}
			days[key] = d
		}
		switch ev.Outcome {
		case "clocked_in":
			if d.clockIn == "" {
				d.clockIn = t.Format("15:04")
			}
		case "clocked_out":
			d.clockOut = t.Format("15:04")
		default:
			d.failures++
		}
	}

	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if err := excel.AddSheet("Daily"); err != nil {
		return err
	}
	if err := excel.WriteHeader([]string{"date", "clock_in", "clock_out", "failures"}); err != nil {
		return err
	}
	for _, k := range keys {
		d := days[k]
		if err := excel.WriteRow([]any{k, d.clockIn, d.clockOut, d.failures}); err != nil {
			return fmt.Errorf("write day %s: %w", k, err)
		}
	}
	return nil
}

// Cleanup deletes journal rows older than the retention window.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	if s.source == nil {
		return 0, nil
	}

	cutoff := s.now().Add(-time.Duration(s.config.RetentionDays) * 24 * time.Hour)
	deleted, err := s.source.DeleteEventsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old events: %w", err)
	}

	s.logger.Info().
		Int64("deleted_count", deleted).
		Int("retention_days", s.config.RetentionDays).
		Msg("Cleaned up old journal rows")
	return deleted, nil
}
