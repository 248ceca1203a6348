package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"sendit-ledger/internal/adapter/http/dto"
	"sendit-ledger/internal/adapter/http/middleware"
	"sendit-ledger/internal/core/domain"
	"sendit-ledger/internal/core/ports"
	"sendit-ledger/pkg/apperror"
	"sendit-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// HeaderIdempotencyKey lets a client retry a transfer without repeating it.
const HeaderIdempotencyKey = "Idempotency-Key"

// LedgerHandler handles balance, transfer and history endpoints.
type LedgerHandler struct {
	ledger ports.LedgerService
	log    zerolog.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledger ports.LedgerService, log zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, log: log}
}

// Balance handles POST /balance and POST /api/v1/balance.
func (h *LedgerHandler) Balance(c *gin.Context) {
	var req dto.BalanceRequest
	if err := bindRequest(c, &req); err != nil {
		h.fail(c, err)
		return
	}

	balance, err := h.ledger.ResolveBalance(c.Request.Context(), req.Username)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Set(middleware.CtxUsername, req.Username)
	formatted := domain.FormatAmount(balance)
	h.ok(c, dto.BalanceResponse{
		Username: req.Username,
		Balance:  formatted,
		Message:  fmt.Sprintf("User @%s's current balance is %s", req.Username, formatted),
	}, false)
}

// Transfer handles POST /send_money and POST /api/v1/transfers.
func (h *LedgerHandler) Transfer(c *gin.Context) {
	var req dto.TransferRequest
	if err := bindRequest(c, &req); err != nil {
		h.fail(c, err)
		return
	}

	t, err := h.ledger.Transfer(c.Request.Context(), ports.TransferRequest{
		Sender:         req.Sender,
		Receiver:       req.Receiver,
		Amount:         req.Amount,
		IdempotencyKey: c.GetHeader(HeaderIdempotencyKey),
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Set(middleware.CtxUsername, t.Sender)
	c.Set(middleware.CtxResourceID, t.ID.String())
	resp := toTransferResponse(t)
	resp.Message = t.Message()
	h.ok(c, resp, true)
}

// History handles GET /api/v1/accounts/:username/transfers.
func (h *LedgerHandler) History(c *gin.Context) {
	username := c.Param("username")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.fail(c, apperror.Validation("limit must be an integer."))
			return
		}
		limit = n
	}

	transfers, err := h.ledger.History(c.Request.Context(), username, limit)
	if err != nil {
		h.fail(c, err)
		return
	}

	out := make([]dto.TransferResponse, 0, len(transfers))
	for i := range transfers {
		out = append(out, toTransferResponse(&transfers[i]))
	}
	response.OK(c, dto.TransferListResponse{Username: username, Transfers: out})
}

func toTransferResponse(t *domain.Transfer) dto.TransferResponse {
	return dto.TransferResponse{
		ID:        t.ID.String(),
		Sender:    t.Sender,
		Receiver:  t.Receiver,
		Amount:    domain.FormatAmount(t.Amount),
		CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// bindRequest binds a form or JSON body, treats an empty body as empty
// fields and trims every string field.
func bindRequest(c *gin.Context, req interface{}) error {
	if err := c.ShouldBind(req); err != nil && !errors.Is(err, io.EOF) {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return apperror.Validation("Invalid request fields.")
		}
		return apperror.Validation("Invalid request body.")
	}
	dto.SanitizeStruct(req)
	return nil
}

func (h *LedgerHandler) ok(c *gin.Context, data interface{}, created bool) {
	if wantsHTML(c) {
		renderIndex(c, http.StatusOK, flashFor(data), "success")
		return
	}
	if created {
		response.Created(c, data)
		return
	}
	response.OK(c, data)
}

func (h *LedgerHandler) fail(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Err != nil {
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("ledger request failed")
	}
	if wantsHTML(c) {
		msg := "Internal server error"
		if appErr != nil {
			msg = appErr.Message
		}
		renderIndex(c, statusOf(appErr), msg, "error")
		return
	}
	response.Error(c, err)
}
