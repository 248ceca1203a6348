package postgres

import (
	"context"
	"fmt"

	"sendit-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is the subset of *pgxpool.Pool used by the store.
// pgxmock.PgxPoolIface satisfies it in tests.
type Pool interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// Store implements ports.LedgerStore on PostgreSQL.
type Store struct {
	pool Pool
	db   DBTX // pool, or the open transaction
	inTx bool
}

// NewStore creates a Store on top of pool.
func NewStore(pool Pool) *Store {
	return &Store{pool: pool, db: pool}
}

func (s *Store) Accounts() ports.AccountRepository   { return NewAccountRepo(s.db) }
func (s *Store) OTPs() ports.OTPRepository           { return NewOTPRepo(s.db) }
func (s *Store) Transfers() ports.TransferRepository { return NewTransferRepo(s.db) }
func (s *Store) Audit() ports.AuditRepository        { return NewAuditRepo(s.db) }

// WithinTx runs fn in a database transaction. Nested calls join the outer one.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.LedgerStore) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(ctx, &Store{pool: s.pool, db: tx, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
