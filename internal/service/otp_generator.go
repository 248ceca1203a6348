package service

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"sendit-ledger/internal/core/domain"
)

// CryptoOTPGenerator implements ports.OTPGenerator with crypto/rand.
type CryptoOTPGenerator struct{}

// NewCryptoOTPGenerator creates a new CryptoOTPGenerator.
func NewCryptoOTPGenerator() *CryptoOTPGenerator {
	return &CryptoOTPGenerator{}
}

// Generate returns a uniformly distributed 6-digit code.
func (g *CryptoOTPGenerator) Generate() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(domain.OTPMax-domain.OTPMin+1))
	if err != nil {
		return 0, fmt.Errorf("reading random: %w", err)
	}
	return int(n.Int64()) + domain.OTPMin, nil
}
