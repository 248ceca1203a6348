package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"sendit-ledger/internal/adapter/storage/memory"
	"sendit-ledger/internal/core/domain"
	"sendit-ledger/internal/core/ports"
	"sendit-ledger/internal/core/ports/mocks"
	"sendit-ledger/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// sequenceGenerator returns codes in order.
type sequenceGenerator struct {
	codes []int
}

func (g *sequenceGenerator) Generate() (int, error) {
	code := g.codes[0]
	g.codes = g.codes[1:]
	return code, nil
}

func defaultVerificationOptions() VerificationOptions {
	return VerificationOptions{
		TTL:              10 * time.Minute,
		ConsumeOnSuccess: true,
	}
}

func newMemoryVerification(t *testing.T, opts VerificationOptions, codes ...int) (*VerificationServiceImpl, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := NewVerificationService(store.OTPs(), &sequenceGenerator{codes: codes}, nil, opts, newTestLogger())
	return svc, store
}

// ==================== IssueOTP ====================

func TestVerificationService_IssueOTP_StoresCode(t *testing.T) {
	svc, store := newMemoryVerification(t, defaultVerificationOptions(), 123456)
	ctx := context.Background()

	code, err := svc.IssueOTP(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 123456, code)

	rec, err := store.OTPs().Get(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 123456, rec.Code)
	assert.False(t, rec.IssuedAt.IsZero())
}

func TestVerificationService_IssueOTP_Overwrites(t *testing.T) {
	svc, _ := newMemoryVerification(t, defaultVerificationOptions(), 111111, 222222)
	ctx := context.Background()

	_, err := svc.IssueOTP(ctx, "alice")
	require.NoError(t, err)
	_, err = svc.IssueOTP(ctx, "alice")
	require.NoError(t, err)

	outcome, err := svc.ConfirmOTP(ctx, "alice", "111111")
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationRejected, outcome, "the first code was replaced")

	outcome, err = svc.ConfirmOTP(ctx, "alice", "222222")
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationVerified, outcome)
}

func TestVerificationService_IssueOTP_NoUsername(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := NewVerificationService(mocks.NewMockOTPRepository(ctrl), mocks.NewMockOTPGenerator(ctrl), nil, defaultVerificationOptions(), newTestLogger())

	_, err := svc.IssueOTP(context.Background(), "")
	assertAppError(t, err, apperror.CodeNoUsername)
}

func TestVerificationService_IssueOTP_GeneratorFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockOTPGenerator(ctrl)
	gen.EXPECT().Generate().Return(0, errors.New("entropy exhausted"))

	svc := NewVerificationService(mocks.NewMockOTPRepository(ctrl), gen, nil, defaultVerificationOptions(), newTestLogger())

	_, err := svc.IssueOTP(context.Background(), "alice")
	assertAppError(t, err, apperror.CodeInternal)
}

func TestVerificationService_IssueOTP_StorageFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockOTPGenerator(ctrl)
	otps := mocks.NewMockOTPRepository(ctrl)
	gen.EXPECT().Generate().Return(654321, nil)
	otps.EXPECT().Set(gomock.Any(), gomock.Any()).Return(errors.New("database is locked"))

	svc := NewVerificationService(otps, gen, nil, defaultVerificationOptions(), newTestLogger())

	_, err := svc.IssueOTP(context.Background(), "alice")
	assertAppError(t, err, apperror.CodeStorageFailure)
}

// ==================== ConfirmOTP ====================

func TestVerificationService_ConfirmOTP(t *testing.T) {
	tests := []struct {
		name      string
		issue     bool
		submitted string
		want      domain.VerificationOutcome
	}{
		{"correct code", true, "123456", domain.VerificationVerified},
		{"correct code with whitespace", true, " 123456 ", domain.VerificationVerified},
		{"wrong code", true, "654321", domain.VerificationRejected},
		{"nothing issued", false, "123456", domain.VerificationRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newMemoryVerification(t, defaultVerificationOptions(), 123456)
			ctx := context.Background()

			if tt.issue {
				_, err := svc.IssueOTP(ctx, "alice")
				require.NoError(t, err)
			}

			outcome, err := svc.ConfirmOTP(ctx, "alice", tt.submitted)
			require.NoError(t, err)
			assert.Equal(t, tt.want, outcome)
		})
	}
}

func TestVerificationService_ConfirmOTP_ValidationBeforeStorage(t *testing.T) {
	tests := []struct {
		name      string
		username  string
		submitted string
		wantCode  string
	}{
		{"no username", "", "123456", apperror.CodeNoUsername},
		{"no username beats bad format", "", "abc", apperror.CodeNoUsername},
		{"non numeric", "alice", "12ab56", apperror.CodeInvalidFormat},
		{"empty code", "alice", "", apperror.CodeInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			// No expectations: any repository call fails the test.
			otps := mocks.NewMockOTPRepository(ctrl)
			svc := NewVerificationService(otps, mocks.NewMockOTPGenerator(ctrl), nil, defaultVerificationOptions(), newTestLogger())

			outcome, err := svc.ConfirmOTP(context.Background(), tt.username, tt.submitted)
			assert.Empty(t, outcome)
			assertAppError(t, err, tt.wantCode)
		})
	}
}

func TestVerificationService_ConfirmOTP_ConsumedOnSuccess(t *testing.T) {
	svc, store := newMemoryVerification(t, defaultVerificationOptions(), 123456)
	ctx := context.Background()

	_, err := svc.IssueOTP(ctx, "alice")
	require.NoError(t, err)

	outcome, err := svc.ConfirmOTP(ctx, "alice", "123456")
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationVerified, outcome)

	rec, err := store.OTPs().Get(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, rec)

	outcome, err = svc.ConfirmOTP(ctx, "alice", "123456")
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationRejected, outcome, "a code verifies once")
}

func TestVerificationService_ConfirmOTP_ReusableWhenNotConsumed(t *testing.T) {
	opts := defaultVerificationOptions()
	opts.ConsumeOnSuccess = false
	svc, _ := newMemoryVerification(t, opts, 123456)
	ctx := context.Background()

	_, err := svc.IssueOTP(ctx, "alice")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		outcome, err := svc.ConfirmOTP(ctx, "alice", "123456")
		require.NoError(t, err)
		assert.Equal(t, domain.VerificationVerified, outcome)
	}
}

func TestVerificationService_ConfirmOTP_WrongCodeKeepsRecord(t *testing.T) {
	svc, _ := newMemoryVerification(t, defaultVerificationOptions(), 123456)
	ctx := context.Background()

	_, err := svc.IssueOTP(ctx, "alice")
	require.NoError(t, err)

	outcome, err := svc.ConfirmOTP(ctx, "alice", "000000")
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationRejected, outcome)

	outcome, err = svc.ConfirmOTP(ctx, "alice", "123456")
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationVerified, outcome)
}

func TestVerificationService_ConfirmOTP_Expired(t *testing.T) {
	svc, _ := newMemoryVerification(t, defaultVerificationOptions(), 123456)
	ctx := context.Background()

	issuedAt := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issuedAt }
	_, err := svc.IssueOTP(ctx, "alice")
	require.NoError(t, err)

	svc.now = func() time.Time { return issuedAt.Add(11 * time.Minute) }
	outcome, err := svc.ConfirmOTP(ctx, "alice", "123456")
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationRejected, outcome)
}

func TestVerificationService_ConfirmOTP_NoTTL(t *testing.T) {
	opts := defaultVerificationOptions()
	opts.TTL = 0
	svc, _ := newMemoryVerification(t, opts, 123456)
	ctx := context.Background()

	issuedAt := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issuedAt }
	_, err := svc.IssueOTP(ctx, "alice")
	require.NoError(t, err)

	svc.now = func() time.Time { return issuedAt.Add(30 * 24 * time.Hour) }
	outcome, err := svc.ConfirmOTP(ctx, "alice", "123456")
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationVerified, outcome)
}

func TestVerificationService_ConfirmOTP_LostConsumeRace(t *testing.T) {
	ctrl := gomock.NewController(t)
	otps := mocks.NewMockOTPRepository(ctrl)
	otps.EXPECT().Get(gomock.Any(), "alice").Return(&domain.OTPRecord{Username: "alice", Code: 123456, IssuedAt: time.Now()}, nil)
	otps.EXPECT().DeleteIfMatch(gomock.Any(), "alice", 123456).Return(false, nil)

	svc := NewVerificationService(otps, mocks.NewMockOTPGenerator(ctrl), nil, defaultVerificationOptions(), newTestLogger())

	outcome, err := svc.ConfirmOTP(context.Background(), "alice", "123456")
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationRejected, outcome)
}

func TestVerificationService_ConfirmOTP_StorageFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	otps := mocks.NewMockOTPRepository(ctrl)
	otps.EXPECT().Get(gomock.Any(), "alice").Return(nil, errors.New("timeout"))

	svc := NewVerificationService(otps, mocks.NewMockOTPGenerator(ctrl), nil, defaultVerificationOptions(), newTestLogger())

	_, err := svc.ConfirmOTP(context.Background(), "alice", "123456")
	assertAppError(t, err, apperror.CodeStorageFailure)
}

func TestVerificationService_ConfirmOTP_TooManyAttempts(t *testing.T) {
	ctrl := gomock.NewController(t)
	otps := mocks.NewMockOTPRepository(ctrl)
	limiter := mocks.NewMockRateLimiter(ctrl)

	opts := defaultVerificationOptions()
	opts.MaxAttempts = 5
	opts.AttemptWindow = 10 * time.Minute

	limiter.EXPECT().Allow(gomock.Any(), "otp_confirm:alice", int64(5), 10*time.Minute).
		Return(&ports.RateLimitResult{Allowed: false, Limit: 5}, nil)

	svc := NewVerificationService(otps, mocks.NewMockOTPGenerator(ctrl), limiter, opts, newTestLogger())

	_, err := svc.ConfirmOTP(context.Background(), "alice", "123456")
	assertAppError(t, err, apperror.CodeTooManyAttempts)
}

func TestVerificationService_ConfirmOTP_LimiterFailsOpen(t *testing.T) {
	ctrl := gomock.NewController(t)
	limiter := mocks.NewMockRateLimiter(ctrl)
	store := memory.NewStore()

	opts := defaultVerificationOptions()
	opts.MaxAttempts = 5
	opts.AttemptWindow = time.Minute

	limiter.EXPECT().Allow(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("redis down"))

	svc := NewVerificationService(store.OTPs(), &sequenceGenerator{codes: []int{123456}}, limiter, opts, newTestLogger())
	ctx := context.Background()

	_, err := svc.IssueOTP(ctx, "alice")
	require.NoError(t, err)

	outcome, err := svc.ConfirmOTP(ctx, "alice", "123456")
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationVerified, outcome)
}

func TestVerificationService_ConfirmOTP_FormatCheckedBeforeLimiter(t *testing.T) {
	ctrl := gomock.NewController(t)
	limiter := mocks.NewMockRateLimiter(ctrl)

	opts := defaultVerificationOptions()
	opts.MaxAttempts = 1
	opts.AttemptWindow = time.Minute

	svc := NewVerificationService(mocks.NewMockOTPRepository(ctrl), mocks.NewMockOTPGenerator(ctrl), limiter, opts, newTestLogger())

	_, err := svc.ConfirmOTP(context.Background(), "alice", "nope")
	assertAppError(t, err, apperror.CodeInvalidFormat)
}
