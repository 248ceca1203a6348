package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sendit-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	db DBTX
}

// Get returns nil, nil for an unknown username.
func (r *AccountRepo) Get(ctx context.Context, username string) (*domain.Account, error) {
	query := `SELECT username, balance, created_at, updated_at FROM user_balances WHERE username = ?`

	var (
		a                domain.Account
		balance          string
		created, updated int64
	)
	err := r.db.QueryRowContext(ctx, query, username).Scan(&a.Username, &balance, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to select account: %w", err)
	}

	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("failed to parse balance %q: %w", balance, err)
	}
	a.CreatedAt, a.UpdatedAt = fromMillis(created), fromMillis(updated)
	return &a, nil
}

// GetForUpdate is a plain read: the single connection already serializes
// transactions.
func (r *AccountRepo) GetForUpdate(ctx context.Context, username string) (*domain.Account, error) {
	return r.Get(ctx, username)
}

func (r *AccountRepo) SetBalance(ctx context.Context, username string, balance decimal.Decimal) error {
	now := toMillis(time.Now())
	query := `INSERT INTO user_balances (username, balance, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET balance = excluded.balance, updated_at = excluded.updated_at`

	if _, err := r.db.ExecContext(ctx, query, username, balance.String(), now, now); err != nil {
		return fmt.Errorf("failed to upsert balance: %w", err)
	}
	return nil
}

func (r *AccountRepo) CreateIfAbsent(ctx context.Context, username string, balance decimal.Decimal) (bool, error) {
	now := toMillis(time.Now())
	query := `INSERT INTO user_balances (username, balance, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(username) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, username, balance.String(), now, now)
	if err != nil {
		return false, fmt.Errorf("failed to insert account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// OTPRepo implements ports.OTPRepository.
type OTPRepo struct {
	db DBTX
}

func (r *OTPRepo) Set(ctx context.Context, rec *domain.OTPRecord) error {
	query := `INSERT INTO user_otps (username, otp, issued_at) VALUES (?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET otp = excluded.otp, issued_at = excluded.issued_at`

	if _, err := r.db.ExecContext(ctx, query, rec.Username, rec.Code, toMillis(rec.IssuedAt)); err != nil {
		return fmt.Errorf("failed to upsert otp: %w", err)
	}
	return nil
}

func (r *OTPRepo) Get(ctx context.Context, username string) (*domain.OTPRecord, error) {
	var (
		rec    domain.OTPRecord
		issued int64
	)
	err := r.db.QueryRowContext(ctx, `SELECT username, otp, issued_at FROM user_otps WHERE username = ?`, username).
		Scan(&rec.Username, &rec.Code, &issued)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to select otp: %w", err)
	}
	rec.IssuedAt = fromMillis(issued)
	return &rec, nil
}

func (r *OTPRepo) DeleteIfMatch(ctx context.Context, username string, code int) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_otps WHERE username = ? AND otp = ?`, username, code)
	if err != nil {
		return false, fmt.Errorf("failed to delete otp: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// TransferRepo implements ports.TransferRepository.
type TransferRepo struct {
	db DBTX
}

func (r *TransferRepo) Create(ctx context.Context, t *domain.Transfer) error {
	query := `INSERT INTO transfers (id, sender, receiver, amount, created_at) VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, t.ID.String(), t.Sender, t.Receiver, t.Amount.String(), toMillis(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert transfer: %w", err)
	}
	return nil
}

func (r *TransferRepo) ListByUsername(ctx context.Context, username string, limit int) ([]domain.Transfer, error) {
	query := `SELECT id, sender, receiver, amount, created_at FROM transfers
		WHERE sender = ? OR receiver = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, username, username, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select transfers: %w", err)
	}
	defer rows.Close()

	result := []domain.Transfer{}
	for rows.Next() {
		var (
			t          domain.Transfer
			id, amount string
			created    int64
		)
		if err := rows.Scan(&id, &t.Sender, &t.Receiver, &amount, &created); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		if t.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("failed to parse transfer id %q: %w", id, err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("failed to parse amount %q: %w", amount, err)
		}
		t.CreatedAt = fromMillis(created)
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	db DBTX
}

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	query := `INSERT INTO audit_logs (id, username, action, resource_type, resource_id, details, ip_address, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		log.ID.String(), log.Username, string(log.Action), log.ResourceType,
		log.ResourceID, log.Details, log.IPAddress, toMillis(log.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}
