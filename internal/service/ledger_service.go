package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"sendit-ledger/internal/core/domain"
	"sendit-ledger/internal/core/ports"
	"sendit-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	idempotencyTTL  = 24 * time.Hour
	maxHistoryLimit = 100

	// Amounts carry at most two fractional digits and fifteen integer digits.
	maxAmountLength    = 64
	maxAmountScale     = 2
	maxAmountIntDigits = 15
)

// LedgerOptions tunes balance initialization and transfer validation.
type LedgerOptions struct {
	StartingBalance       decimal.Decimal // granted on first access as viewer or sender
	RecipientBalance      decimal.Decimal // granted on first access as receiver
	RequirePositiveAmount bool
	HistoryLimit          int
}

// DefaultLedgerOptions returns the stock faucet settings.
func DefaultLedgerOptions() LedgerOptions {
	return LedgerOptions{
		StartingBalance:       decimal.NewFromInt(1000),
		RecipientBalance:      decimal.Zero,
		RequirePositiveAmount: true,
		HistoryLimit:          20,
	}
}

// LedgerServiceImpl implements ports.LedgerService.
type LedgerServiceImpl struct {
	store      ports.LedgerStore
	locker     ports.AccountLocker
	idempCache ports.IdempotencyCache // optional
	opts       LedgerOptions
	now        func() time.Time
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl. idempCache may be nil.
func NewLedgerService(
	store ports.LedgerStore,
	locker ports.AccountLocker,
	idempCache ports.IdempotencyCache,
	opts LedgerOptions,
	log zerolog.Logger,
) *LedgerServiceImpl {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultLedgerOptions().HistoryLimit
	}
	return &LedgerServiceImpl{
		store:      store,
		locker:     locker,
		idempCache: idempCache,
		opts:       opts,
		now:        time.Now,
		log:        log,
	}
}

// ResolveBalance returns the balance of username, creating the account with
// the starting balance if it does not exist yet.
func (s *LedgerServiceImpl) ResolveBalance(ctx context.Context, username string) (decimal.Decimal, error) {
	if username == "" {
		return decimal.Zero, apperror.ErrUsernameRequired()
	}

	acct, err := s.getOrCreateAccount(ctx, username, s.opts.StartingBalance)
	if err != nil {
		return decimal.Zero, apperror.ErrStorageFailure(fmt.Errorf("resolve balance: %w", err))
	}
	return acct.Balance, nil
}

// getOrCreateAccount reads the account, inserting it with initial if absent.
// When another caller creates it first, the persisted row wins.
func (s *LedgerServiceImpl) getOrCreateAccount(ctx context.Context, username string, initial decimal.Decimal) (*domain.Account, error) {
	accounts := s.store.Accounts()

	acct, err := accounts.Get(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if acct != nil {
		return acct, nil
	}

	created, err := accounts.CreateIfAbsent(ctx, username, initial)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	if created {
		s.log.Debug().Str("username", username).Str("balance", domain.FormatAmount(initial)).Msg("account created")
	}

	acct, err = accounts.Get(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("reload account: %w", err)
	}
	if acct == nil {
		return nil, fmt.Errorf("account %q missing after create", username)
	}
	return acct, nil
}

// Transfer moves amount from sender to receiver. Validation failures are
// reported in a fixed order: missing fields, amount, self transfer, funds.
func (s *LedgerServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*domain.Transfer, error) {
	if req.Sender == "" || req.Receiver == "" || req.Amount == "" {
		return nil, apperror.ErrMissingFields()
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, apperror.ErrInvalidAmount()
	}
	if s.opts.RequirePositiveAmount && !amount.IsPositive() {
		return nil, apperror.ErrNonPositiveAmount()
	}

	if req.Sender == req.Receiver {
		return nil, apperror.ErrSelfTransfer()
	}

	// The sender's faucet is granted even if the transfer fails below.
	if _, err := s.getOrCreateAccount(ctx, req.Sender, s.opts.StartingBalance); err != nil {
		return nil, apperror.ErrStorageFailure(fmt.Errorf("transfer: %w", err))
	}

	unlock, err := s.locker.Lock(ctx, []string{req.Sender, req.Receiver})
	if err != nil {
		return nil, apperror.ErrLockTimeout(fmt.Errorf("lock accounts: %w", err))
	}
	defer unlock()

	// The sender lock serializes retries sharing a key.
	idempKey := ""
	if req.IdempotencyKey != "" && s.idempCache != nil {
		idempKey = buildTransferIdempotencyKey(req.Sender, req.IdempotencyKey)
		cached, err := s.idempCache.Get(ctx, idempKey)
		if err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("redis idempotency check failed, processing transfer")
		}
		if cached != nil {
			return s.unmarshalCachedTransfer(cached)
		}
	}

	var transfer *domain.Transfer
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx ports.LedgerStore) error {
		if _, err := tx.Accounts().CreateIfAbsent(ctx, req.Receiver, s.opts.RecipientBalance); err != nil {
			return fmt.Errorf("create receiver: %w", err)
		}

		locked, err := lockAccounts(ctx, tx.Accounts(), req.Sender, req.Receiver)
		if err != nil {
			return err
		}
		from, to := locked[req.Sender], locked[req.Receiver]

		if !from.CanAfford(amount) {
			return apperror.ErrInsufficientFunds()
		}

		if err := tx.Accounts().SetBalance(ctx, from.Username, from.Balance.Sub(amount)); err != nil {
			return fmt.Errorf("debit sender: %w", err)
		}
		if err := tx.Accounts().SetBalance(ctx, to.Username, to.Balance.Add(amount)); err != nil {
			return fmt.Errorf("credit receiver: %w", err)
		}

		transfer = &domain.Transfer{
			ID:        uuid.New(),
			Sender:    req.Sender,
			Receiver:  req.Receiver,
			Amount:    amount,
			CreatedAt: s.now().UTC(),
		}
		if err := tx.Transfers().Create(ctx, transfer); err != nil {
			return fmt.Errorf("record transfer: %w", err)
		}
		return nil
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperror.ErrStorageFailure(fmt.Errorf("transfer: %w", err))
	}

	if idempKey != "" {
		s.cacheTransfer(ctx, idempKey, transfer)
	}

	s.log.Info().
		Str("transfer_id", transfer.ID.String()).
		Str("sender", transfer.Sender).
		Str("receiver", transfer.Receiver).
		Str("amount", domain.FormatAmount(transfer.Amount)).
		Msg("transfer completed")

	return transfer, nil
}

// parseAmount parses a transfer amount, rejecting values outside the
// supported scale before any arithmetic is done on them.
func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) > maxAmountLength {
		return decimal.Zero, fmt.Errorf("amount longer than %d characters", maxAmountLength)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, err
	}

	// The coefficient has at most maxAmountLength digits, so anything scaled
	// further down cannot be a whole number of cents.
	if exp := amount.Exponent(); exp < -maxAmountScale {
		if exp < -(maxAmountScale+maxAmountLength) || !amount.Truncate(maxAmountScale).Equal(amount) {
			return decimal.Zero, fmt.Errorf("amount has more than %d fractional digits", maxAmountScale)
		}
	}
	if int64(amount.NumDigits())+int64(amount.Exponent()) > maxAmountIntDigits {
		return decimal.Zero, fmt.Errorf("amount has more than %d integer digits", maxAmountIntDigits)
	}
	return amount, nil
}

// lockAccounts row-locks both accounts in username order.
func lockAccounts(ctx context.Context, accounts ports.AccountRepository, usernames ...string) (map[string]*domain.Account, error) {
	ordered := append([]string(nil), usernames...)
	sort.Strings(ordered)

	locked := make(map[string]*domain.Account, len(ordered))
	for _, username := range ordered {
		acct, err := accounts.GetForUpdate(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("lock account %q: %w", username, err)
		}
		if acct == nil {
			return nil, fmt.Errorf("account %q not found", username)
		}
		locked[username] = acct
	}
	return locked, nil
}

// History returns the newest transfers involving username.
func (s *LedgerServiceImpl) History(ctx context.Context, username string, limit int) ([]domain.Transfer, error) {
	if username == "" {
		return nil, apperror.ErrUsernameRequired()
	}

	transfers, err := s.store.Transfers().ListByUsername(ctx, username, s.clampLimit(limit))
	if err != nil {
		return nil, apperror.ErrStorageFailure(fmt.Errorf("list transfers: %w", err))
	}
	return transfers, nil
}

func (s *LedgerServiceImpl) clampLimit(limit int) int {
	if limit <= 0 {
		limit = s.opts.HistoryLimit
	}
	return min(limit, maxHistoryLimit)
}

func (s *LedgerServiceImpl) cacheTransfer(ctx context.Context, key string, transfer *domain.Transfer) {
	raw, err := json.Marshal(transfer)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to marshal transfer for idempotency cache")
		return
	}
	if err := s.idempCache.Set(ctx, key, raw, idempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache idempotency in redis")
	}
}

func (s *LedgerServiceImpl) unmarshalCachedTransfer(data []byte) (*domain.Transfer, error) {
	var transfer domain.Transfer
	if err := json.Unmarshal(data, &transfer); err != nil {
		return nil, apperror.ErrInternal(fmt.Errorf("unmarshal cached transfer: %w", err))
	}
	return &transfer, nil
}

// buildTransferIdempotencyKey scopes a client key to its sender.
func buildTransferIdempotencyKey(sender, key string) string {
	return "transfer:" + sender + ":" + key
}
