package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/harunnryd/navi/internal/config"
	"github.com/harunnryd/navi/internal/errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// telegramAPI is the part of *tgbotapi.BotAPI the adapter uses.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetMe() (tgbotapi.User, error)
}

type TelegramAdapter struct {
	token         string
	parseMode     string
	updateTimeout int
	eventHandler  EventHandler

	mu      sync.Mutex
	bot     *tgbotapi.BotAPI
	api     telegramAPI
	polling bool
}

func NewTelegramAdapter(token, parseMode string, updateTimeout int, eventHandler EventHandler) *TelegramAdapter {
	if updateTimeout <= 0 {
		updateTimeout = config.DefaultTelegramUpdateTimeout
	}
	return &TelegramAdapter{
		token:         token,
		parseMode:     parseMode,
		updateTimeout: updateTimeout,
		eventHandler:  eventHandler,
	}
}

func (t *TelegramAdapter) Name() string {
	return "telegram"
}

// connect creates the bot client once. Sending works without Start, so
// one-shot commands can deliver without polling for updates.
func (t *TelegramAdapter) connect() (telegramAPI, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.api != nil {
		return t.api, nil
	}
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return nil, errors.WrapWithCategory(err, "init telegram bot", errors.ErrTransient)
	}
	t.bot = bot
	t.api = bot
	return bot, nil
}

func (t *TelegramAdapter) Start(ctx context.Context) error {
	if _, err := t.connect(); err != nil {
		return err
	}

	t.mu.Lock()
	bot := t.bot
	t.polling = true
	t.mu.Unlock()

	slog.Info("Telegram Adapter started", "user", bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.updateTimeout
	updates := bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				t.handleUpdate(ctx, update)
			}
		}
	}()

	return nil
}

func (t *TelegramAdapter) Stop(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil && t.polling {
		t.bot.StopReceivingUpdates()
		t.polling = false
	}
	return nil
}

func (t *TelegramAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || t.eventHandler == nil {
		return
	}

	evt := Event{
		Channel:    t.Name(),
		ExternalID: strconv.FormatInt(msg.From.ID, 10),
		Address:    strconv.FormatInt(msg.Chat.ID, 10),
		UserName:   msg.From.UserName,
		Text:       msg.Text,
		Metadata: map[string]string{
			"update_id": strconv.Itoa(update.UpdateID),
			"msg_id":    strconv.Itoa(msg.MessageID),
		},
	}

	reply, err := t.eventHandler(ctx, evt)
	if err != nil {
		slog.Error("Failed to handle Telegram event", "external_id", evt.ExternalID, "error", err)
	}
	if strings.TrimSpace(reply) == "" {
		return
	}
	if err := t.sendText(evt.Address, reply, ""); err != nil {
		slog.Warn("Failed to send Telegram reply", "chat_id", evt.Address, "error", err)
	}
}

// Send delivers text to a chat id using the configured parse mode.
func (t *TelegramAdapter) Send(ctx context.Context, address string, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.sendText(address, text, t.parseMode); err != nil {
		return err
	}
	slog.Debug("Telegram message sent", "chat_id", address)
	return nil
}

func (t *TelegramAdapter) sendText(address, text, parseMode string) error {
	chatID, err := strconv.ParseInt(strings.TrimSpace(address), 10, 64)
	if err != nil {
		return errors.InvalidInput(fmt.Sprintf("invalid telegram chat id %q", address))
	}
	api, err := t.connect()
	if err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = parseMode
	if _, err := api.Send(msg); err != nil {
		return errors.WrapWithCategory(err, "send telegram message", errors.ErrTransient)
	}
	return nil
}

func (t *TelegramAdapter) Health(ctx context.Context) error {
	t.mu.Lock()
	api := t.api
	t.mu.Unlock()
	if api == nil {
		return errors.Transient("Telegram bot not initialized")
	}

	if _, err := api.GetMe(); err != nil {
		return errors.Transient("Telegram connection failed: " + err.Error())
	}

	return nil
}
