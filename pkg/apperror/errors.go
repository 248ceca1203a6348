package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses and to the
// user-facing reply of the messaging adapter.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err is an *AppError carrying code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// Reason codes.
const (
	CodeMissingFields     = "LED_001"
	CodeInvalidAmount     = "LED_002"
	CodeSelfTransfer      = "LED_003"
	CodeInsufficientFunds = "LED_004"
	CodeNoUsername        = "OTP_001"
	CodeInvalidFormat     = "OTP_002"
	CodeRateLimited       = "RATE_001"
	CodeTooManyAttempts   = "RATE_002"
	CodeStorageFailure    = "SYS_001"
	CodeLockTimeout       = "SYS_002"
	CodeInternal          = "SYS_000"
	CodeValidation        = "VAL_001"
	CodeUnauthorized      = "AUTH_001"
)

// ---- Ledger (LED) ----

func ErrMissingFields() *AppError {
	return New(CodeMissingFields, "All fields are required.", http.StatusBadRequest)
}

func ErrUsernameRequired() *AppError {
	return New(CodeMissingFields, "Username is required to check balance.", http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Invalid amount format.", http.StatusBadRequest)
}

func ErrNonPositiveAmount() *AppError {
	return New(CodeInvalidAmount, "Amount must be greater than zero.", http.StatusBadRequest)
}

func ErrSelfTransfer() *AppError {
	return New(CodeSelfTransfer, "You cannot send money to yourself.", http.StatusBadRequest)
}

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient funds to complete this transaction.", http.StatusPaymentRequired)
}

// ---- Verification (OTP) ----

func ErrNoUsername() *AppError {
	return New(CodeNoUsername, "You must have a Telegram username to use this service.", http.StatusBadRequest)
}

func ErrInvalidFormat() *AppError {
	return New(CodeInvalidFormat, "Invalid OTP format. Please enter a numeric OTP.", http.StatusBadRequest)
}

// ---- Authentication (AUTH) ----

func ErrInvalidWebhookSecret() *AppError {
	return New(CodeUnauthorized, "Invalid webhook secret", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
}

func ErrTooManyAttempts() *AppError {
	return New(CodeTooManyAttempts, "Too many verification attempts. Please try again later.", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// ErrInternal is the catch-all for failures outside storage.
func ErrInternal(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// ErrStorageFailure hides the storage error behind a generic message.
func ErrStorageFailure(err error) *AppError {
	return Wrap(CodeStorageFailure, "An error occurred. Please try again later.", http.StatusInternalServerError, err)
}

func ErrLockTimeout(err error) *AppError {
	return Wrap(CodeLockTimeout, "The account is busy. Please try again.", http.StatusServiceUnavailable, err)
}

// Validation reports a malformed request that never reached the ledger.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}
