package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"sendit-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// OTPGenerator produces 6-digit passcodes in [domain.OTPMin, domain.OTPMax].
type OTPGenerator interface {
	Generate() (int, error)
}

// AccountLocker serializes work on a set of accounts.
type AccountLocker interface {
	// Lock blocks until every key is held. Keys are locked in sorted order
	// and duplicates are ignored. The returned func releases them all.
	Lock(ctx context.Context, keys []string) (unlock func(), err error)
}

// IdempotencyCache is the Redis-layer cache of completed transfers.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// NonceStore remembers tokens that may be processed only once.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// RateLimiter counts events per key in fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// --- Service Ports (Business Logic) ---

// LedgerService defines balance lookup and transfer logic.
type LedgerService interface {
	// ResolveBalance returns the balance of username, creating the account
	// with the starting balance on first access.
	ResolveBalance(ctx context.Context, username string) (decimal.Decimal, error)
	Transfer(ctx context.Context, req TransferRequest) (*domain.Transfer, error)
	History(ctx context.Context, username string, limit int) ([]domain.Transfer, error)
}

// TransferRequest holds raw transfer input as submitted by a client.
type TransferRequest struct {
	Sender         string
	Receiver       string
	Amount         string
	IdempotencyKey string // optional
}

// VerificationService defines the OTP challenge-response.
type VerificationService interface {
	IssueOTP(ctx context.Context, username string) (int, error)
	ConfirmOTP(ctx context.Context, username, submitted string) (domain.VerificationOutcome, error)
}

// AuditService records audit entries.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// MessageSender delivers a chat reply.
type MessageSender interface {
	Reply(ctx context.Context, chatID int64, replyTo int, text string) error
}
