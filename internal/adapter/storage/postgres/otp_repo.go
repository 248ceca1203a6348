package postgres

import (
	"context"
	"errors"
	"fmt"

	"sendit-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// OTPRepo implements ports.OTPRepository.
type OTPRepo struct {
	db DBTX
}

// NewOTPRepo creates a new OTPRepo.
func NewOTPRepo(db DBTX) *OTPRepo {
	return &OTPRepo{db: db}
}

// Set upserts the pending passcode of a username.
func (r *OTPRepo) Set(ctx context.Context, rec *domain.OTPRecord) error {
	query := `INSERT INTO user_otps (username, otp, issued_at) VALUES ($1, $2, $3)
		ON CONFLICT (username) DO UPDATE SET otp = EXCLUDED.otp, issued_at = EXCLUDED.issued_at`

	if _, err := r.db.Exec(ctx, query, rec.Username, rec.Code, rec.IssuedAt); err != nil {
		return fmt.Errorf("set otp: %w", err)
	}
	return nil
}

// Get fetches the pending passcode of a username.
func (r *OTPRepo) Get(ctx context.Context, username string) (*domain.OTPRecord, error) {
	query := `SELECT username, otp, issued_at FROM user_otps WHERE username = $1`

	rec := &domain.OTPRecord{}
	err := r.db.QueryRow(ctx, query, username).Scan(&rec.Username, &rec.Code, &rec.IssuedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get otp: %w", err)
	}
	return rec, nil
}

// DeleteIfMatch removes the passcode only while it still equals code.
func (r *OTPRepo) DeleteIfMatch(ctx context.Context, username string, code int) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM user_otps WHERE username = $1 AND otp = $2`, username, code)
	if err != nil {
		return false, fmt.Errorf("delete otp: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
