package service

import (
	"context"
	"fmt"
	"time"

	"sendit-ledger/internal/core/domain"
	"sendit-ledger/internal/core/ports"
	"sendit-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

// VerificationOptions tunes OTP lifetime and attempt limits.
type VerificationOptions struct {
	TTL              time.Duration // 0 = never expires
	ConsumeOnSuccess bool
	MaxAttempts      int64 // 0 disables attempt limiting
	AttemptWindow    time.Duration
}

// VerificationServiceImpl implements ports.VerificationService.
type VerificationServiceImpl struct {
	otps    ports.OTPRepository
	gen     ports.OTPGenerator
	limiter ports.RateLimiter // optional
	opts    VerificationOptions
	now     func() time.Time
	log     zerolog.Logger
}

// NewVerificationService creates a new VerificationServiceImpl. limiter may be nil.
func NewVerificationService(
	otps ports.OTPRepository,
	gen ports.OTPGenerator,
	limiter ports.RateLimiter,
	opts VerificationOptions,
	log zerolog.Logger,
) *VerificationServiceImpl {
	return &VerificationServiceImpl{
		otps:    otps,
		gen:     gen,
		limiter: limiter,
		opts:    opts,
		now:     time.Now,
		log:     log,
	}
}

// IssueOTP generates a fresh passcode for username, replacing any pending one.
func (s *VerificationServiceImpl) IssueOTP(ctx context.Context, username string) (int, error) {
	if username == "" {
		return 0, apperror.ErrNoUsername()
	}

	code, err := s.gen.Generate()
	if err != nil {
		return 0, apperror.ErrInternal(fmt.Errorf("generate otp: %w", err))
	}

	record := &domain.OTPRecord{
		Username: username,
		Code:     code,
		IssuedAt: s.now().UTC(),
	}
	if err := s.otps.Set(ctx, record); err != nil {
		return 0, apperror.ErrStorageFailure(fmt.Errorf("store otp: %w", err))
	}

	s.log.Info().Str("username", username).Msg("otp issued")
	return code, nil
}

// ConfirmOTP checks submitted against the pending passcode of username.
// A wrong, missing or expired code is a Rejected outcome, not an error.
func (s *VerificationServiceImpl) ConfirmOTP(ctx context.Context, username, submitted string) (domain.VerificationOutcome, error) {
	if username == "" {
		return "", apperror.ErrNoUsername()
	}

	code, ok := domain.ParseOTP(submitted)
	if !ok {
		return "", apperror.ErrInvalidFormat()
	}

	if err := s.checkAttempts(ctx, username); err != nil {
		return "", err
	}

	record, err := s.otps.Get(ctx, username)
	if err != nil {
		return "", apperror.ErrStorageFailure(fmt.Errorf("get otp: %w", err))
	}
	if record == nil || record.Expired(s.now(), s.opts.TTL) || !record.Matches(code) {
		s.log.Info().Str("username", username).Msg("otp rejected")
		return domain.VerificationRejected, nil
	}

	if s.opts.ConsumeOnSuccess {
		deleted, err := s.otps.DeleteIfMatch(ctx, username, code)
		if err != nil {
			return "", apperror.ErrStorageFailure(fmt.Errorf("consume otp: %w", err))
		}
		if !deleted {
			// Re-issued or consumed concurrently.
			return domain.VerificationRejected, nil
		}
	}

	s.log.Info().Str("username", username).Msg("otp verified")
	return domain.VerificationVerified, nil
}

// checkAttempts fails open when the limiter is unavailable.
func (s *VerificationServiceImpl) checkAttempts(ctx context.Context, username string) error {
	if s.limiter == nil || s.opts.MaxAttempts <= 0 || s.opts.AttemptWindow <= 0 {
		return nil
	}

	result, err := s.limiter.Allow(ctx, "otp_confirm:"+username, s.opts.MaxAttempts, s.opts.AttemptWindow)
	if err != nil {
		s.log.Warn().Err(err).Str("username", username).Msg("otp attempt limiter unavailable")
		return nil
	}
	if !result.Allowed {
		return apperror.ErrTooManyAttempts()
	}
	return nil
}
