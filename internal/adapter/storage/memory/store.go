// Package memory is a process-local ports.LedgerStore for tests and demos.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"sendit-ledger/internal/core/domain"
	"sendit-ledger/internal/core/ports"

	"github.com/shopspring/decimal"
)

type state struct {
	accounts  map[string]domain.Account
	otps      map[string]domain.OTPRecord
	transfers []domain.Transfer
	audit     []domain.AuditLog
}

func (st *state) clone() *state {
	return &state{
		accounts:  maps.Clone(st.accounts),
		otps:      maps.Clone(st.otps),
		transfers: slices.Clone(st.transfers),
		audit:     slices.Clone(st.audit),
	}
}

// Store implements ports.LedgerStore in memory.
// WithinTx holds the store lock for the whole transaction and works on a
// copy of the state that replaces the live state only on commit.
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time

	// tx is non-nil for the store handed to a WithinTx callback.
	tx *state
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		state: &state{
			accounts: make(map[string]domain.Account),
			otps:     make(map[string]domain.OTPRecord),
		},
		now: time.Now,
	}
}

// do runs fn against the transaction state, or the live state under the lock.
func (s *Store) do(fn func(st *state)) {
	if s.tx != nil {
		fn(s.tx)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

func (s *Store) Accounts() ports.AccountRepository   { return accountRepo{s} }
func (s *Store) OTPs() ports.OTPRepository           { return otpRepo{s} }
func (s *Store) Transfers() ports.TransferRepository { return transferRepo{s} }
func (s *Store) Audit() ports.AuditRepository        { return auditRepo{s} }

// WithinTx serializes fn against every other store access.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.LedgerStore) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	txStore := &Store{state: s.state, now: s.now, tx: s.state.clone()}
	if err := fn(ctx, txStore); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = txStore.tx
	return nil
}

// Ping implements ports.HealthChecker.
func (s *Store) Ping(context.Context) error { return nil }

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "memory" }

type accountRepo struct{ s *Store }

func (r accountRepo) Get(_ context.Context, username string) (*domain.Account, error) {
	var out *domain.Account
	r.s.do(func(st *state) {
		if a, ok := st.accounts[username]; ok {
			out = &a
		}
	})
	return out, nil
}

// GetForUpdate needs no extra locking: transactions already hold the store lock.
func (r accountRepo) GetForUpdate(ctx context.Context, username string) (*domain.Account, error) {
	return r.Get(ctx, username)
}

func (r accountRepo) SetBalance(_ context.Context, username string, balance decimal.Decimal) error {
	now := r.s.now().UTC()
	r.s.do(func(st *state) {
		a, ok := st.accounts[username]
		if !ok {
			a = domain.Account{Username: username, CreatedAt: now}
		}
		a.Balance = balance
		a.UpdatedAt = now
		st.accounts[username] = a
	})
	return nil
}

func (r accountRepo) CreateIfAbsent(_ context.Context, username string, balance decimal.Decimal) (bool, error) {
	now := r.s.now().UTC()
	created := false
	r.s.do(func(st *state) {
		if _, ok := st.accounts[username]; ok {
			return
		}
		st.accounts[username] = domain.Account{Username: username, Balance: balance, CreatedAt: now, UpdatedAt: now}
		created = true
	})
	return created, nil
}

type otpRepo struct{ s *Store }

func (r otpRepo) Set(_ context.Context, record *domain.OTPRecord) error {
	r.s.do(func(st *state) { st.otps[record.Username] = *record })
	return nil
}

func (r otpRepo) Get(_ context.Context, username string) (*domain.OTPRecord, error) {
	var out *domain.OTPRecord
	r.s.do(func(st *state) {
		if rec, ok := st.otps[username]; ok {
			out = &rec
		}
	})
	return out, nil
}

func (r otpRepo) DeleteIfMatch(_ context.Context, username string, code int) (bool, error) {
	deleted := false
	r.s.do(func(st *state) {
		if rec, ok := st.otps[username]; ok && rec.Code == code {
			delete(st.otps, username)
			deleted = true
		}
	})
	return deleted, nil
}

type transferRepo struct{ s *Store }

func (r transferRepo) Create(_ context.Context, transfer *domain.Transfer) error {
	r.s.do(func(st *state) { st.transfers = append(st.transfers, *transfer) })
	return nil
}

func (r transferRepo) ListByUsername(_ context.Context, username string, limit int) ([]domain.Transfer, error) {
	out := []domain.Transfer{}
	r.s.do(func(st *state) {
		for i := len(st.transfers) - 1; i >= 0 && len(out) < limit; i-- {
			if st.transfers[i].Involves(username) {
				out = append(out, st.transfers[i])
			}
		}
	})
	return out, nil
}

type auditRepo struct{ s *Store }

func (r auditRepo) Create(_ context.Context, log *domain.AuditLog) error {
	r.s.do(func(st *state) { st.audit = append(st.audit, *log) })
	return nil
}

// AuditEntries returns a snapshot of the audit log.
func (s *Store) AuditEntries() []domain.AuditLog {
	var out []domain.AuditLog
	s.do(func(st *state) { out = slices.Clone(st.audit) })
	return out
}
