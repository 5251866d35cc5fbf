package audit

import (
	"context"
	"fmt"
	"io"
	"time"

	"autoclock/internal/model"
)

// EventSource reads and prunes the clock journal.
type EventSource interface {
	ListEvents(ctx context.Context, from, to time.Time) ([]model.ClockEvent, error)
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ExcelWriter writes data to Excel format.
type ExcelWriter interface {
	// AddSheet adds a new sheet with the given name.
	AddSheet(name string) error

	// WriteHeader writes column headers to current sheet.
	WriteHeader(columns []string) error

	// WriteRow writes a data row to current sheet.
	WriteRow(row []any) error

	Save(w io.Writer) error
	SaveToFile(path string) error
	Close() error
}

// Notifier delivers a finished report somewhere outside the process.
type Notifier interface {
	SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error
}

// GenerateFilename creates a filename like "journal_2026-01.xlsx".
func GenerateFilename(month time.Time) string {
	return fmt.Sprintf("journal_%s.xlsx", month.Format("2006-01"))
}

// MonthRange returns [first day of month, first day of next month) in t's location.
func MonthRange(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0)
}
