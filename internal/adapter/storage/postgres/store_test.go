package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"sendit-ledger/internal/core/domain"
	"sendit-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.LedgerStore = (*Store)(nil)

func TestStore_WithinTx_Commit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStore(mock)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO user_balances .+ DO NOTHING").
		WithArgs("bob", "0").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT .+ FOR UPDATE").
		WithArgs("bob").
		WillReturnRows(accountRow("bob", "0"))
	mock.ExpectCommit()

	err = store.WithinTx(context.Background(), func(ctx context.Context, tx ports.LedgerStore) error {
		if _, err := tx.Accounts().CreateIfAbsent(ctx, "bob", decimal.Zero); err != nil {
			return err
		}
		_, err := tx.Accounts().GetForUpdate(ctx, "bob")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithinTx_RollbackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStore(mock)
	boom := errors.New("insufficient funds")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err = store.WithinTx(context.Background(), func(ctx context.Context, tx ports.LedgerStore) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithinTx_BeginError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	called := false
	err = NewStore(mock).WithinTx(context.Background(), func(ctx context.Context, tx ports.LedgerStore) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
	assert.False(t, called)
}

func TestStore_WithinTx_CommitError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("could not serialize access"))
	mock.ExpectRollback()

	err = NewStore(mock).WithinTx(context.Background(), func(ctx context.Context, tx ports.LedgerStore) error {
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit tx")
}

func TestStore_WithinTx_NestedJoinsOuter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transfers").
		WithArgs(pgxmock.AnyArg(), "alice", "bob", "1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = NewStore(mock).WithinTx(context.Background(), func(ctx context.Context, tx ports.LedgerStore) error {
		return tx.WithinTx(ctx, func(ctx context.Context, inner ports.LedgerStore) error {
			return inner.Transfers().Create(ctx, &domain.Transfer{
				ID: uuid.New(), Sender: "alice", Receiver: "bob", Amount: decimal.NewFromInt(1), CreatedAt: time.Now(),
			})
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	username := "alice"
	entry := &domain.AuditLog{
		ID:           uuid.New(),
		Username:     &username,
		Action:       domain.AuditActionTransfer,
		ResourceType: "transfer",
		ResourceID:   uuid.NewString(),
		Details:      `{"amount":"10"}`,
		IPAddress:    "10.0.0.1",
		CreatedAt:    time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(entry.ID, entry.Username, "TRANSFER", entry.ResourceType,
			entry.ResourceID, entry.Details, entry.IPAddress, entry.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, NewStore(mock).Audit().Create(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthCheck(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("SELECT 1").WillReturnResult(pgxmock.NewResult("SELECT", 1))

	hc := NewHealthCheck(mock)
	assert.NoError(t, hc.Ping(context.Background()))
	assert.Equal(t, "postgresql", hc.Name())
}
