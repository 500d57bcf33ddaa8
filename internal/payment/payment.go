package payment

import (
	"context"
	"errors"
	"time"

	"github.com/karobar-pk/karobar/internal/gateway"
)

// Status is a payment attempt's lifecycle state. Records are immutable once
// completed or failed; only the gateway callback moves pending forward.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// PurposeContactUnlock tags payments charged to reveal supplier contacts.
const PurposeContactUnlock = "contact_unlock"

var (
	// ErrNotFound indicates no payment matched the lookup.
	ErrNotFound = errors.New("payment not found")

	// ErrImmutable indicates an attempt to change a completed or failed record.
	ErrImmutable = errors.New("payment record is final")
)

// Record captures one payment attempt. Every charge attempt yields exactly one.
type Record struct {
	ID            string
	BuyerID       string
	ResourceID    string
	Amount        int64
	Currency      string
	Method        gateway.Method
	TransactionID string
	Status        Status
	Purpose       string
	CreatedAt     time.Time
}

// Store persists payment records.
type Store interface {
	Create(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	FindPendingByOrderRef(ctx context.Context, orderRef string) (Record, error)
	UpdateStatus(ctx context.Context, id string, status Status, transactionID string) error
}
