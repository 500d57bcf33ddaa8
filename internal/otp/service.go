package otp

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

var (
	// ErrExpired indicates the code's validity window has passed.
	ErrExpired = errors.New("verification code expired")

	// ErrTooManyAttempts indicates the record is locked after repeated failures.
	ErrTooManyAttempts = errors.New("too many verification attempts")

	// ErrNotFound indicates no verification code is pending for the identity.
	ErrNotFound = errors.New("no verification code pending")
)

const (
	saltLength = 16
	iterations = 10_000
	keyLength  = 64
)

// Record is the hashed, expiring form of a one-time code. The plaintext code
// is never stored; callers persist the record on the owning identity.
type Record struct {
	Hash        []byte
	Salt        []byte
	ExpiresAt   time.Time
	Attempts    int
	MaxAttempts int
}

// Outcome reports the result of a verification attempt. A wrong code is an
// outcome, not an error.
type Outcome struct {
	OK                bool
	RemainingAttempts int
}

// Service hashes and verifies one-time codes. It holds no state of its own;
// the clock is injected so expiry behaviour is testable.
type Service struct {
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
}

// NewService builds an OTP service with the given validity window and attempt cap.
func NewService(ttl time.Duration, maxAttempts int, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{ttl: ttl, maxAttempts: maxAttempts, now: now}
}

// New derives a fresh record from the plaintext code: random salt,
// PBKDF2-HMAC-SHA512 hash, expiry relative to the injected clock.
func (s *Service) New(code string) (Record, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return Record{}, fmt.Errorf("generate salt: %w", err)
	}
	return Record{
		Hash:        derive(code, salt),
		Salt:        salt,
		ExpiresAt:   s.now().Add(s.ttl).UTC(),
		Attempts:    0,
		MaxAttempts: s.maxAttempts,
	}, nil
}

// Validate classifies a stored record without mutating it. Expiry is checked
// before the attempt cap so a stale record always reads as expired.
func (s *Service) Validate(rec Record) error {
	if len(rec.Hash) == 0 || len(rec.Salt) == 0 {
		return ErrNotFound
	}
	if s.now().After(rec.ExpiresAt) {
		return ErrExpired
	}
	if rec.Attempts >= rec.MaxAttempts {
		return ErrTooManyAttempts
	}
	return nil
}

// Verify recomputes the hash with the stored salt and compares in constant
// time. On mismatch the returned record carries the incremented attempt
// counter for the caller to persist. On match the caller must clear the
// record so the code cannot be replayed.
func (s *Service) Verify(code string, rec Record) (Outcome, Record, error) {
	if err := s.Validate(rec); err != nil {
		return Outcome{}, rec, err
	}

	if subtle.ConstantTimeCompare(derive(code, rec.Salt), rec.Hash) == 1 {
		return Outcome{OK: true}, rec, nil
	}

	rec.Attempts++
	return Outcome{OK: false, RemainingAttempts: rec.MaxAttempts - rec.Attempts}, rec, nil
}

func derive(code string, salt []byte) []byte {
	return pbkdf2.Key([]byte(code), salt, iterations, keyLength, sha512.New)
}
