package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("LED_004", "Insufficient funds", http.StatusPaymentRequired),
			expected: "[LED_004] Insufficient funds",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
	assert.Nil(t, New("LED_001", "test", http.StatusBadRequest).Unwrap())
}

func TestHasCode(t *testing.T) {
	wrapped := fmt.Errorf("transfer: %w", ErrSelfTransfer())

	assert.True(t, HasCode(wrapped, CodeSelfTransfer))
	assert.False(t, HasCode(wrapped, CodeInsufficientFunds))
	assert.False(t, HasCode(errors.New("plain"), CodeSelfTransfer))
	assert.False(t, HasCode(nil, CodeSelfTransfer))
}

func TestLedgerErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"MissingFields", ErrMissingFields(), "LED_001", 400},
		{"UsernameRequired", ErrUsernameRequired(), "LED_001", 400},
		{"InvalidAmount", ErrInvalidAmount(), "LED_002", 400},
		{"NonPositiveAmount", ErrNonPositiveAmount(), "LED_002", 400},
		{"SelfTransfer", ErrSelfTransfer(), "LED_003", 400},
		{"InsufficientFunds", ErrInsufficientFunds(), "LED_004", 402},
		{"Validation", Validation("limit must be an integer."), "VAL_001", 400},
		{"InvalidWebhookSecret", ErrInvalidWebhookSecret(), "AUTH_001", 401},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestVerificationErrors(t *testing.T) {
	assert.Equal(t, "OTP_001", ErrNoUsername().Code)
	assert.Equal(t, "OTP_002", ErrInvalidFormat().Code)
	assert.Equal(t, "Invalid OTP format. Please enter a numeric OTP.", ErrInvalidFormat().Message)
}

func TestRateLimitErrors(t *testing.T) {
	assert.Equal(t, "RATE_001", ErrRateLimitExceeded().Code)
	assert.Equal(t, 429, ErrRateLimitExceeded().HTTPStatus)
	assert.Equal(t, "RATE_002", ErrTooManyAttempts().Code)
	assert.Equal(t, 429, ErrTooManyAttempts().HTTPStatus)
}

func TestSystemErrors(t *testing.T) {
	inner := fmt.Errorf("pg: connection closed")

	storageErr := ErrStorageFailure(inner)
	assert.Equal(t, "SYS_001", storageErr.Code)
	assert.Equal(t, 500, storageErr.HTTPStatus)
	assert.True(t, errors.Is(storageErr, inner))
	assert.NotContains(t, storageErr.Message, "pg:", "storage detail must not leak into the message")

	internalErr := ErrInternal(inner)
	assert.Equal(t, "SYS_000", internalErr.Code)
	assert.Equal(t, 500, internalErr.HTTPStatus)

	lockErr := ErrLockTimeout(inner)
	assert.Equal(t, "SYS_002", lockErr.Code)
	assert.Equal(t, 503, lockErr.HTTPStatus)
}
