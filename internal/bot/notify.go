package bot

import (
	"context"
	"errors"
	"fmt"
	"io"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"autoclock/internal/engine"
	"autoclock/internal/events"
)

// Subscribe pushes scheduled cycle results to the notify chat.
// Manual and command-triggered cycles are answered in place and skipped here.
func (b *Bot) Subscribe(bus *events.EventBus) {
	if b.notifyChatID == 0 {
		return
	}
	bus.Subscribe(events.CycleCompleted, b.onCycle)
}

func (b *Bot) onCycle(ev events.Event) error {
	var rep engine.Report
	if err := ev.Decode(&rep); err != nil {
		return fmt.Errorf("decode report: %w", err)
	}
	if !shouldNotify(rep) {
		return nil
	}

	text := fmt.Sprintf("[%s] %s", rep.Trigger, formatReport(rep))
	if _, err := b.tg.Send(tgbotapi.NewMessage(b.notifyChatID, text)); err != nil {
		return fmt.Errorf("notify chat %d: %w", b.notifyChatID, err)
	}
	return nil
}

func shouldNotify(rep engine.Report) bool {
	switch rep.Trigger {
	case engine.TriggerTick, engine.TriggerSettings:
	default:
		return false
	}
	switch rep.Outcome {
	case engine.OutcomeClockedIn, engine.OutcomeClockedOut, engine.OutcomeFailed:
		return true
	default:
		return false
	}
}

// SendDocument uploads a file to the notify chat.
func (b *Bot) SendDocument(_ context.Context, filename string, data io.Reader, caption string) error {
	if b.notifyChatID == 0 {
		return errors.New("notify chat is not configured")
	}
	doc := tgbotapi.NewDocument(b.notifyChatID, tgbotapi.FileReader{Name: filename, Reader: data})
	doc.Caption = caption
	if _, err := b.tg.Send(doc); err != nil {
		return fmt.Errorf("upload %s: %w", filename, err)
	}
	return nil
}
