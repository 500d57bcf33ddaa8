package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Generator produces one-time verification codes.
type Generator interface {
	Code() (string, error)
}

// CryptoGenerator draws 6-digit codes from crypto/rand.
type CryptoGenerator struct{}

// Code returns a zero-padded 6-digit numeric code.
func (CryptoGenerator) Code() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("draw otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// FixedGenerator always returns the same code. Tests only.
type FixedGenerator struct {
	Fixed string
}

// Code returns the configured code.
func (g FixedGenerator) Code() (string, error) {
	return g.Fixed, nil
}
