// Package telegram connects the ledger to the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Bot implements ports.MessageSender over the Bot API.
type Bot struct {
	api *tgbotapi.BotAPI
	log zerolog.Logger
}

type updateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update) error
}

// NewBot authorizes token against api.telegram.org.
func NewBot(token string, log zerolog.Logger) (*Bot, error) {
	return NewBotWithEndpoint(token, tgbotapi.APIEndpoint, &http.Client{Timeout: 90 * time.Second}, log)
}

// NewBotWithEndpoint authorizes token against a custom Bot API endpoint.
// endpoint is a format string taking the token and the method name.
func NewBotWithEndpoint(token, endpoint string, client tgbotapi.HTTPClient, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("authorizing telegram bot: %w", err)
	}

	log.Info().Str("bot", api.Self.UserName).Msg("Telegram bot authorized")
	return &Bot{api: api, log: log}, nil
}

// Username returns the bot's own username.
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// Reply sends text to chatID as a reply to message replyTo (0 = no reply).
func (b *Bot) Reply(ctx context.Context, chatID int64, replyTo int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// SetWebhook registers webhookURL as the update destination. Telegram sends
// secret back in the X-Telegram-Bot-Api-Secret-Token header of every update.
func (b *Bot) SetWebhook(webhookURL, secret string) error {
	if _, err := url.ParseRequestURI(webhookURL); err != nil {
		return fmt.Errorf("parsing webhook url: %w", err)
	}

	params := tgbotapi.Params{"url": webhookURL}
	params.AddNonEmpty("secret_token", secret)
	if _, err := b.api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("telegram setWebhook: %w", err)
	}
	b.log.Info().Str("url", webhookURL).Msg("Telegram webhook registered")
	return nil
}

// Poll long-polls getUpdates and feeds every update to h until ctx is done.
// Any registered webhook is removed first since Telegram refuses both.
func (b *Bot) Poll(ctx context.Context, h updateHandler) error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("telegram deleteWebhook: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)
	b.log.Info().Msg("Telegram long polling started")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if err := h.HandleUpdate(ctx, update); err != nil {
				b.log.Error().Err(err).Int("update_id", update.UpdateID).Msg("failed to process telegram update")
			}
		}
	}
}
