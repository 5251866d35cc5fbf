package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"autoclock/internal/engine"
	"autoclock/internal/model"
	"autoclock/shared/access"
)

const helpText = `Commands:
/status - schedule, history and portal state
/check - run a check now
/test - run a check ignoring today's history
/in - clock in now
/out - clock out now
/enable - turn automation on
/disable - turn automation off
/help - this message`

// Bot is a Telegram front end for the clock engine.
type Bot struct {
	ctrl         Controller
	gate         Gatekeeper
	tg           telegramClient
	notifyChatID int64
	logger       zerolog.Logger
}

type Config struct {
	Token        string
	Debug        bool
	NotifyChatID int64
}

func New(cfg Config, ctrl Controller, gate Gatekeeper, logger zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	api.Debug = cfg.Debug
	return newBot(&realTelegramClient{api: api}, cfg, ctrl, gate, logger)
}

// NewWithTelegramClient allows injecting a mocked Telegram client for tests.
func NewWithTelegramClient(tg telegramClient, cfg Config, ctrl Controller, gate Gatekeeper, logger zerolog.Logger) (*Bot, error) {
	return newBot(tg, cfg, ctrl, gate, logger)
}

func newBot(tg telegramClient, cfg Config, ctrl Controller, gate Gatekeeper, logger zerolog.Logger) (*Bot, error) {
	if tg == nil {
		return nil, errors.New("telegram client is nil")
	}
	if ctrl == nil || gate == nil {
		return nil, errors.New("controller and gatekeeper are required")
	}
	return &Bot{
		ctrl:         ctrl,
		gate:         gate,
		tg:           tg,
		notifyChatID: cfg.NotifyChatID,
		logger:       logger.With().Str("component", "bot").Logger(),
	}, nil
}

// Start polls updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)
	defer b.tg.StopReceivingUpdates()
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Msg("Bot authorized")

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			l := b.logger.With().Str("request_id", uuid.New().String()).Logger()
			b.handleUpdate(l.WithContext(ctx), &update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	l := zerolog.Ctx(ctx)
	l.Debug().Int64("user_id", msg.From.ID).Str("text", msg.Text).Msg("Handling message")

	if err := b.gate.Middleware(msg.From.ID); err != nil {
		if access.IsAccessDenied(err) {
			b.reply(ctx, msg.Chat.ID, err.Error())
			return
		}
		l.Error().Err(err).Msg("Access check failed")
		return
	}
	b.handleMessage(ctx, msg)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		b.reply(ctx, msg.Chat.ID, helpText)
		return
	}

	switch strings.ToLower(msg.Command()) {
	case "start", "help":
		b.reply(ctx, msg.Chat.ID, helpText)
	case "status":
		b.handleStatus(ctx, msg.Chat.ID)
	case "check":
		b.replyCycle(ctx, msg.Chat.ID)(b.ctrl.CheckNow(ctx, false))
	case "test":
		b.replyCycle(ctx, msg.Chat.ID)(b.ctrl.CheckNow(ctx, true))
	case "in":
		b.replyCycle(ctx, msg.Chat.ID)(b.ctrl.Clock(ctx, model.ActionIn))
	case "out":
		b.replyCycle(ctx, msg.Chat.ID)(b.ctrl.Clock(ctx, model.ActionOut))
	case "enable":
		b.handleToggle(ctx, msg.Chat.ID, true)
	case "disable":
		b.handleToggle(ctx, msg.Chat.ID, false)
	default:
		b.reply(ctx, msg.Chat.ID, "Unknown command.\n\n"+helpText)
	}
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) {
	st, err := b.ctrl.Status(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Status failed")
		b.reply(ctx, chatID, "Could not read settings.")
		return
	}

	state, err := b.ctrl.CurrentState(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Probe failed")
	}
	b.reply(ctx, chatID, formatStatus(st, state))
}

func (b *Bot) handleToggle(ctx context.Context, chatID int64, enabled bool) {
	if err := b.ctrl.SetEnabled(ctx, enabled); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Bool("enabled", enabled).Msg("Toggle failed")
		b.reply(ctx, chatID, "Could not save settings.")
		return
	}
	if enabled {
		b.reply(ctx, chatID, "Auto clock in/out enabled.")
		return
	}
	b.reply(ctx, chatID, "Auto clock in/out disabled.")
}

func (b *Bot) replyCycle(ctx context.Context, chatID int64) func(engine.Report, error) {
	return func(rep engine.Report, err error) {
		if err != nil && !errors.Is(err, engine.ErrBusy) {
			zerolog.Ctx(ctx).Warn().Err(err).Str("cycle_id", rep.CycleID).Msg("Cycle failed")
		}
		b.reply(ctx, chatID, formatReport(rep))
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if _, err := b.tg.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("Send failed")
	}
}

func formatStatus(st engine.Status, state model.ClockState) string {
	var sb strings.Builder
	sb.WriteString(st.Summary)
	sb.WriteString("\n")
	if !st.ActiveToday {
		fmt.Fprintf(&sb, "Today (%s) is not an active day.\n", st.Today)
	}
	for _, bs := range st.Boundaries {
		fmt.Fprintf(&sb, "%s at %s: %s\n", bs.Action.Verb(), bs.Time, bs.Phase)
	}
	if st.History.LastClockInDate != "" {
		fmt.Fprintf(&sb, "Last clock in: %s\n", st.History.LastClockInDate)
	}
	if st.History.LastClockOutDate != "" {
		fmt.Fprintf(&sb, "Last clock out: %s\n", st.History.LastClockOutDate)
	}
	if state != "" {
		fmt.Fprintf(&sb, "Portal shows: %s", state)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatReport(rep engine.Report) string {
	text := rep.StatusText()
	if rep.Error != "" && rep.Outcome == engine.OutcomeFailed {
		text += "\n" + rep.Error
	}
	return text
}
