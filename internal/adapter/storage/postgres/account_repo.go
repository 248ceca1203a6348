package postgres

import (
	"context"
	"errors"
	"fmt"

	"sendit-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Balances travel as text so NUMERIC values keep every digit.
const accountColumns = `username, balance::text, created_at, updated_at`

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	db DBTX
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(db DBTX) *AccountRepo {
	return &AccountRepo{db: db}
}

// Get fetches an account by username (without locking).
func (r *AccountRepo) Get(ctx context.Context, username string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM user_balances WHERE username = $1`

	a, err := scanAccount(r.db.QueryRow(ctx, query, username))
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// GetForUpdate fetches an account with pessimistic locking.
// This MUST be called within a transaction.
func (r *AccountRepo) GetForUpdate(ctx context.Context, username string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM user_balances WHERE username = $1 FOR UPDATE`

	a, err := scanAccount(r.db.QueryRow(ctx, query, username))
	if err != nil {
		return nil, fmt.Errorf("get account for update: %w", err)
	}
	return a, nil
}

// SetBalance upserts the balance of username.
func (r *AccountRepo) SetBalance(ctx context.Context, username string, balance decimal.Decimal) error {
	query := `INSERT INTO user_balances (username, balance, created_at, updated_at)
		VALUES ($1, $2::numeric, NOW(), NOW())
		ON CONFLICT (username) DO UPDATE SET balance = EXCLUDED.balance, updated_at = NOW()`

	if _, err := r.db.Exec(ctx, query, username, balance.String()); err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return nil
}

// CreateIfAbsent inserts the account unless the username already exists.
func (r *AccountRepo) CreateIfAbsent(ctx context.Context, username string, balance decimal.Decimal) (bool, error) {
	query := `INSERT INTO user_balances (username, balance, created_at, updated_at)
		VALUES ($1, $2::numeric, NOW(), NOW())
		ON CONFLICT (username) DO NOTHING`

	tag, err := r.db.Exec(ctx, query, username, balance.String())
	if err != nil {
		return false, fmt.Errorf("create account: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	a := &domain.Account{}
	var balance string
	if err := row.Scan(&a.Username, &balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	var err error
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("parse balance %q: %w", balance, err)
	}
	return a, nil
}
