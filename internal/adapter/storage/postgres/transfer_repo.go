package postgres

import (
	"context"
	"fmt"

	"sendit-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// TransferRepo implements ports.TransferRepository.
type TransferRepo struct {
	db DBTX
}

// NewTransferRepo creates a new TransferRepo.
func NewTransferRepo(db DBTX) *TransferRepo {
	return &TransferRepo{db: db}
}

// Create appends a transfer to the journal.
func (r *TransferRepo) Create(ctx context.Context, t *domain.Transfer) error {
	query := `INSERT INTO transfers (id, sender, receiver, amount, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5)`

	_, err := r.db.Exec(ctx, query, t.ID, t.Sender, t.Receiver, t.Amount.String(), t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

// ListByUsername returns the newest transfers sent or received by username.
func (r *TransferRepo) ListByUsername(ctx context.Context, username string, limit int) ([]domain.Transfer, error) {
	query := `SELECT id, sender, receiver, amount::text, created_at
		FROM transfers WHERE sender = $1 OR receiver = $1
		ORDER BY created_at DESC, id DESC LIMIT $2`

	rows, err := r.db.Query(ctx, query, username, limit)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	transfers := []domain.Transfer{}
	for rows.Next() {
		var (
			t      domain.Transfer
			amount string
		)
		if err := rows.Scan(&t.ID, &t.Sender, &t.Receiver, &amount, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfers: %w", err)
	}
	return transfers, nil
}
