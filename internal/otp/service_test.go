package otp

import (
	"bytes"
	"crypto/sha512"
	"testing"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewRecordHashesWithPBKDF2(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(5*time.Minute, 3, fixedClock(start))

	rec, err := svc.New("123456")
	if err != nil {
		t.Fatalf("new record: %v", err)
	}

	if len(rec.Salt) != 16 {
		t.Fatalf("expected 16-byte salt, got %d", len(rec.Salt))
	}
	expected := pbkdf2.Key([]byte("123456"), rec.Salt, 10_000, 64, sha512.New)
	if !bytes.Equal(rec.Hash, expected) {
		t.Fatal("hash does not match PBKDF2-HMAC-SHA512 derivation")
	}
	if !rec.ExpiresAt.Equal(start.Add(5 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", rec.ExpiresAt)
	}
	if rec.Attempts != 0 || rec.MaxAttempts != 3 {
		t.Fatalf("unexpected counters: %+v", rec)
	}
}

func TestVerifyWithinWindowSucceeds(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	now := start
	svc := NewService(5*time.Minute, 3, func() time.Time { return now })

	rec, err := svc.New("482917")
	if err != nil {
		t.Fatalf("new record: %v", err)
	}

	// Four minutes later the code is still valid.
	now = start.Add(4 * time.Minute)
	outcome, _, err := svc.Verify("482917", rec)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !outcome.OK {
		t.Fatal("expected verification to succeed")
	}
}

func TestVerifyWrongCodeIncrementsAttempts(t *testing.T) {
	svc := NewService(5*time.Minute, 3, fixedClock(time.Now()))

	rec, err := svc.New("482917")
	if err != nil {
		t.Fatalf("new record: %v", err)
	}

	outcome, rec, err := svc.Verify("000000", rec)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if outcome.OK {
		t.Fatal("expected mismatch")
	}
	if rec.Attempts != 1 || outcome.RemainingAttempts != 2 {
		t.Fatalf("unexpected counters: attempts=%d remaining=%d", rec.Attempts, outcome.RemainingAttempts)
	}
}

func TestThreeFailuresLockEvenForCorrectCode(t *testing.T) {
	svc := NewService(5*time.Minute, 3, fixedClock(time.Now()))

	rec, err := svc.New("482917")
	if err != nil {
		t.Fatalf("new record: %v", err)
	}

	for i := 0; i < 3; i++ {
		var outcome Outcome
		outcome, rec, err = svc.Verify("111111", rec)
		if err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
		if outcome.OK {
			t.Fatalf("attempt %d unexpectedly succeeded", i+1)
		}
	}

	// Fourth attempt with the correct code still fails.
	if _, _, err := svc.Verify("482917", rec); err != ErrTooManyAttempts {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}
}

func TestValidateExpiredRecord(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	now := start
	svc := NewService(5*time.Minute, 3, func() time.Time { return now })

	rec, err := svc.New("482917")
	if err != nil {
		t.Fatalf("new record: %v", err)
	}

	// Expiry wins even when all attempts are used up.
	rec.Attempts = rec.MaxAttempts
	now = start.Add(6 * time.Minute)
	if err := svc.Validate(rec); err != ErrExpired {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if _, _, err := svc.Verify("482917", rec); err != ErrExpired {
		t.Fatalf("expected ErrExpired from verify, got %v", err)
	}
}

func TestValidateEmptyRecord(t *testing.T) {
	svc := NewService(5*time.Minute, 3, nil)
	if err := svc.Validate(Record{}); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCryptoGeneratorShape(t *testing.T) {
	code, err := CryptoGenerator{}.Code()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6 digits, got %q", code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("non-numeric code %q", code)
		}
	}
}

func TestFixedGenerator(t *testing.T) {
	code, err := FixedGenerator{Fixed: "123456"}.Code()
	if err != nil || code != "123456" {
		t.Fatalf("expected fixed code, got %q err=%v", code, err)
	}
}
