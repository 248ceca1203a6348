package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"

	"sendit-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// AccountRepository defines persistence operations for balances.
// Get and GetForUpdate return nil, nil when the username has no account.
type AccountRepository interface {
	Get(ctx context.Context, username string) (*domain.Account, error)
	// GetForUpdate locks the row until the enclosing transaction ends.
	// Outside WithinTx it behaves like Get.
	GetForUpdate(ctx context.Context, username string) (*domain.Account, error)
	SetBalance(ctx context.Context, username string, balance decimal.Decimal) error
	// CreateIfAbsent inserts the account only if the username is unknown.
	// It reports whether this call created it.
	CreateIfAbsent(ctx context.Context, username string, balance decimal.Decimal) (bool, error)
}

// OTPRepository defines persistence operations for pending passcodes.
type OTPRepository interface {
	// Set upserts the record, replacing any previous code.
	Set(ctx context.Context, record *domain.OTPRecord) error
	Get(ctx context.Context, username string) (*domain.OTPRecord, error)
	// DeleteIfMatch removes the record only if it still holds code.
	DeleteIfMatch(ctx context.Context, username string, code int) (bool, error)
}

// TransferRepository defines persistence for the transfer journal.
type TransferRepository interface {
	Create(ctx context.Context, transfer *domain.Transfer) error
	// ListByUsername returns transfers sent or received by username, newest first.
	ListByUsername(ctx context.Context, username string, limit int) ([]domain.Transfer, error)
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// LedgerStore groups the repositories of one storage backend.
type LedgerStore interface {
	Accounts() AccountRepository
	OTPs() OTPRepository
	Transfers() TransferRepository
	Audit() AuditRepository
	// WithinTx runs fn against a store bound to a single transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx LedgerStore) error) error
}
