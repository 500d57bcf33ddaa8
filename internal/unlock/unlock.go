package unlock

import (
	"context"
	"errors"
	"time"

	"github.com/karobar-pk/karobar/internal/payment"
)

var (
	// ErrAlreadyUnlocked indicates an unlock row already exists for the pair.
	// The coordinator turns it into an idempotent success-like outcome.
	ErrAlreadyUnlocked = errors.New("already unlocked")

	// ErrNotFound indicates no unlock row exists for the pair.
	ErrNotFound = errors.New("unlock not found")

	// ErrResourceNotFound indicates the supplier being unlocked does not exist.
	ErrResourceNotFound = errors.New("supplier not found")
)

// Record grants a buyer permanent visibility into one supplier's contacts.
// At most one row ever exists per (buyer, resource); rows are never deleted
// or overwritten.
type Record struct {
	BuyerID    string
	ResourceID string
	PaymentID  string
	UnlockedAt time.Time
}

// Repository persists unlock rows. The storage-level uniqueness constraint on
// (buyer_id, resource_id) is authoritative; the coordinator's pre-check is
// advisory only.
type Repository interface {
	Find(ctx context.Context, buyerID, resourceID string) (Record, error)

	// Create atomically appends a completed payment and the unlock row.
	// Returns ErrAlreadyUnlocked without writing either when the pair is taken.
	Create(ctx context.Context, pay payment.Record, rec Record) error

	// Finalize atomically completes a pending payment and appends the unlock
	// row, for the redirect-wallet callback path.
	Finalize(ctx context.Context, paymentID string, rec Record) error
}
