package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"autoclock/internal/engine"
	"autoclock/internal/model"
)

// Controller is the part of the engine runner the bot drives.
type Controller interface {
	Status(ctx context.Context) (engine.Status, error)
	CheckNow(ctx context.Context, test bool) (engine.Report, error)
	Clock(ctx context.Context, action model.Action) (engine.Report, error)
	SetEnabled(ctx context.Context, enabled bool) error
	CurrentState(ctx context.Context) (model.ClockState, error)
}

type Gatekeeper interface {
	Middleware(userID int64) error
}

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	SelfUser() tgbotapi.User
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (c *realTelegramClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(msg)
}

func (c *realTelegramClient) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.api.GetUpdatesChan(cfg)
}

func (c *realTelegramClient) StopReceivingUpdates() {
	c.api.StopReceivingUpdates()
}

func (c *realTelegramClient) SelfUser() tgbotapi.User {
	return c.api.Self
}
