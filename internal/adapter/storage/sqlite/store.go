// Package sqlite is a single-node ports.LedgerStore on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sendit-ledger/internal/core/ports"
)

// Store implements ports.LedgerStore on SQLite.
type Store struct {
	db   *sql.DB
	q    DBTX // db, or the open transaction
	inTx bool
}

// NewStore creates a Store on an opened database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

func (s *Store) Accounts() ports.AccountRepository   { return &AccountRepo{db: s.q} }
func (s *Store) OTPs() ports.OTPRepository           { return &OTPRepo{db: s.q} }
func (s *Store) Transfers() ports.TransferRepository { return &TransferRepo{db: s.q} }
func (s *Store) Audit() ports.AuditRepository        { return &AuditRepo{db: s.q} }

// WithinTx begins a transaction, runs fn with a transactional store, and then
// commits on success or rolls back on error or panic. Panics are rethrown.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.LedgerStore) error) (err error) {
	if s.inTx {
		return fn(ctx, s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("commit tx: %w", cerr)
		}
	}()

	return fn(ctx, &Store{db: s.db, q: tx, inTx: true})
}

// Ping implements ports.HealthChecker.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string {
	return "sqlite"
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
