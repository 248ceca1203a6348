package domain

import (
	"strconv"
	"strings"
	"time"
)

// OTP code bounds (inclusive).
const (
	OTPMin = 100000
	OTPMax = 999999
)

// VerificationOutcome is the result of an OTP confirmation.
type VerificationOutcome string

const (
	VerificationVerified VerificationOutcome = "VERIFIED"
	VerificationRejected VerificationOutcome = "REJECTED"
)

// OTPRecord is the pending one-time passcode of a username.
// Issuing a new code overwrites the previous record.
type OTPRecord struct {
	Username string    `json:"username"`
	Code     int       `json:"-"`
	IssuedAt time.Time `json:"issued_at"`
}

// Expired reports whether the record is older than ttl. A zero ttl never expires.
func (r *OTPRecord) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(r.IssuedAt) > ttl
}

// Matches reports whether code equals the stored passcode.
func (r *OTPRecord) Matches(code int) bool {
	return r.Code == code
}

// ParseOTP parses a submitted passcode. Surrounding whitespace is ignored.
func ParseOTP(submitted string) (int, bool) {
	code, err := strconv.Atoi(strings.TrimSpace(submitted))
	if err != nil {
		return 0, false
	}
	return code, true
}
