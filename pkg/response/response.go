// Package response writes the JSON envelopes returned by the ledger API.
package response

import (
	"errors"
	"net/http"
	"time"

	"sendit-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDKey is the gin context key the request id middleware fills.
const RequestIDKey = "request_id"

// Meta is attached to every envelope.
type Meta struct {
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// SuccessResponse wraps the payload of a successful ledger call.
type SuccessResponse struct {
	Data interface{} `json:"data"`
	Meta
}

// ErrorResponse carries the reason code of a failed ledger call. Wrapped
// causes are never serialized.
type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Meta
}

// OK writes a 200 envelope, used for balance lookups and history.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{Data: data, Meta: meta(c)})
}

// Created writes a 201 envelope for a completed transfer.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, SuccessResponse{Data: data, Meta: meta(c)})
}

// Error writes err as an error envelope. An *apperror.AppError anywhere in
// the chain picks the status and code; anything else is SYS_000.
func Error(c *gin.Context, err error) {
	appErr := apperror.ErrInternal(err)
	var target *apperror.AppError
	if errors.As(err, &target) {
		appErr = target
	}
	c.JSON(appErr.HTTPStatus, ErrorResponse{
		ErrorCode: appErr.Code,
		Message:   appErr.Message,
		Meta:      meta(c),
	})
}

func meta(c *gin.Context) Meta {
	id := c.GetString(RequestIDKey)
	if id == "" {
		id = uuid.NewString()
	}
	return Meta{RequestID: id, Timestamp: time.Now().UTC().Format(time.RFC3339)}
}
