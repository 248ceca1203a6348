package handler

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"io"
	"net/http"

	"sendit-ledger/pkg/apperror"
	"sendit-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// UpdateHandler processes one Telegram update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update) error
}

// HeaderTelegramSecret carries the secret_token registered with setWebhook.
const HeaderTelegramSecret = "X-Telegram-Bot-Api-Secret-Token"

// TelegramWebhook receives updates pushed by Telegram. Requests without the
// registered secret are refused; everything else answers 200 so that
// Telegram does not redeliver updates that failed on our side.
func TelegramWebhook(h UpdateHandler, secret string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !hmac.Equal([]byte(c.GetHeader(HeaderTelegramSecret)), []byte(secret)) {
			log.Warn().Str("ip", c.ClientIP()).Msg("rejected telegram update with bad secret")
			response.Error(c, apperror.ErrInvalidWebhookSecret())
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			log.Error().Err(err).Msg("failed to read webhook body")
			c.String(http.StatusOK, "!")
			return
		}

		var update tgbotapi.Update
		if err := json.Unmarshal(body, &update); err != nil {
			log.Error().Err(err).Msg("failed to decode telegram update")
			c.String(http.StatusOK, "!")
			return
		}

		log.Debug().Int("update_id", update.UpdateID).Msg("received telegram update")

		if err := h.HandleUpdate(c.Request.Context(), update); err != nil {
			log.Error().Err(err).Int("update_id", update.UpdateID).Msg("failed to process telegram update")
		}
		c.String(http.StatusOK, "!")
	}
}
