package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"sendit-ledger/internal/core/domain"
	"sendit-ledger/internal/core/ports"
	"sendit-ledger/pkg/apperror"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	updateScope = "tg_update"
	updateTTL   = 10 * time.Minute
)

const (
	welcomeText = "Welcome to SendIt! You can send money to other Telegram users using their username! " +
		"Please verify your identity by using the /verify command."
	helpText = "Commands:\n" +
		"/verify - get a one-time passcode\n" +
		"/confirm <OTP> - confirm your passcode\n" +
		"/balance - show your balance"
	verifiedText      = "Verification successful! You can now use SendIt services."
	rejectedText      = "Invalid OTP. Please try again."
	confirmUsageText  = "Invalid format. Please use: /confirm <OTP>"
	unknownCommandMsg = "Unknown command. Use /help to see what I can do."
)

// CommandHandler answers bot commands.
type CommandHandler struct {
	ledger ports.LedgerService
	verify ports.VerificationService
	sender ports.MessageSender
	dedup  ports.NonceStore   // optional
	audit  ports.AuditService // optional
	log    zerolog.Logger
}

// NewCommandHandler creates a new CommandHandler. dedup and audit may be nil.
func NewCommandHandler(
	ledger ports.LedgerService,
	verify ports.VerificationService,
	sender ports.MessageSender,
	dedup ports.NonceStore,
	audit ports.AuditService,
	log zerolog.Logger,
) *CommandHandler {
	return &CommandHandler{
		ledger: ledger,
		verify: verify,
		sender: sender,
		dedup:  dedup,
		audit:  audit,
		log:    log,
	}
}

// HandleUpdate replies to a command message. Non-command updates and
// redelivered update IDs are ignored.
func (h *CommandHandler) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil || msg.Chat == nil || !msg.IsCommand() {
		return nil
	}

	if h.seen(ctx, update.UpdateID) {
		h.log.Debug().Int("update_id", update.UpdateID).Msg("duplicate telegram update ignored")
		return nil
	}

	var username string
	if msg.From != nil {
		username = msg.From.UserName
	}

	var reply string
	switch msg.Command() {
	case "start":
		reply = welcomeText
	case "help":
		reply = welcomeText + "\n\n" + helpText
	case "verify":
		reply = h.handleVerify(ctx, username)
	case "confirm":
		reply = h.handleConfirm(ctx, username, msg.CommandArguments())
	case "balance":
		reply = h.handleBalance(ctx, username)
	default:
		reply = unknownCommandMsg
	}

	return h.sender.Reply(ctx, msg.Chat.ID, msg.MessageID, reply)
}

func (h *CommandHandler) seen(ctx context.Context, updateID int) bool {
	if h.dedup == nil {
		return false
	}
	isNew, err := h.dedup.CheckAndSet(ctx, updateScope, strconv.Itoa(updateID), updateTTL)
	if err != nil {
		h.log.Warn().Err(err).Int("update_id", updateID).Msg("update dedup failed, processing anyway")
		return false
	}
	return !isNew
}

func (h *CommandHandler) handleVerify(ctx context.Context, username string) string {
	otp, err := h.verify.IssueOTP(ctx, username)
	if err != nil {
		return h.errorText(err)
	}
	h.record(ctx, username, domain.AuditActionOTPIssue, "otp", nil)
	return fmt.Sprintf("Your verification OTP is: %d. Please use /confirm <OTP> to verify.", otp)
}

func (h *CommandHandler) handleConfirm(ctx context.Context, username, args string) string {
	fields := strings.Fields(args)
	if len(fields) != 1 {
		return confirmUsageText
	}

	outcome, err := h.verify.ConfirmOTP(ctx, username, fields[0])
	if err != nil {
		return h.errorText(err)
	}
	h.record(ctx, username, domain.AuditActionOTPConfirm, "otp", map[string]string{"outcome": string(outcome)})

	if outcome == domain.VerificationVerified {
		return verifiedText
	}
	return rejectedText
}

func (h *CommandHandler) handleBalance(ctx context.Context, username string) string {
	if username == "" {
		return apperror.ErrNoUsername().Message
	}
	balance, err := h.ledger.ResolveBalance(ctx, username)
	if err != nil {
		return h.errorText(err)
	}
	h.record(ctx, username, domain.AuditActionBalanceQuery, "account", nil)
	return fmt.Sprintf("User @%s's current balance is %s", username, domain.FormatAmount(balance))
}

// errorText returns the user-facing text for err and logs internal causes.
func (h *CommandHandler) errorText(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		if appErr.Err != nil {
			h.log.Error().Err(err).Msg("telegram command failed")
		}
		return appErr.Message
	}
	h.log.Error().Err(err).Msg("telegram command failed")
	return apperror.ErrStorageFailure(err).Message
}

func (h *CommandHandler) record(ctx context.Context, username string, action domain.AuditAction, resource string, details map[string]string) {
	if h.audit == nil {
		return
	}
	entry := &domain.AuditLog{
		ID:           uuid.New(),
		Username:     &username,
		Action:       action,
		ResourceType: resource,
		ResourceID:   username,
		IPAddress:    "telegram",
		CreatedAt:    time.Now(),
	}
	if details != nil {
		b, _ := json.Marshal(details)
		entry.Details = string(b)
	}
	h.audit.Log(ctx, entry)
}
