package unlock

import (
	"context"
	"sync"

	"github.com/karobar-pk/karobar/internal/payment"
)

type inMemoryRepository struct {
	mu       sync.Mutex
	unlocks  map[string]Record
	payments payment.Store
}

// NewInMemory creates an in-memory unlock repository for testing. It enforces
// the same (buyer, resource) uniqueness the Postgres index provides, and
// writes the paired payment record through the supplied store.
func NewInMemory(payments payment.Store) Repository {
	return &inMemoryRepository{unlocks: make(map[string]Record), payments: payments}
}

func pairKey(buyerID, resourceID string) string {
	return buyerID + "/" + resourceID
}

func (r *inMemoryRepository) Find(_ context.Context, buyerID, resourceID string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.unlocks[pairKey(buyerID, resourceID)]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (r *inMemoryRepository) Create(ctx context.Context, pay payment.Record, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pairKey(rec.BuyerID, rec.ResourceID)
	if _, exists := r.unlocks[key]; exists {
		return ErrAlreadyUnlocked
	}
	if err := r.payments.Create(ctx, pay); err != nil {
		return err
	}
	r.unlocks[key] = rec
	return nil
}

func (r *inMemoryRepository) Finalize(ctx context.Context, paymentID string, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pairKey(rec.BuyerID, rec.ResourceID)
	if _, exists := r.unlocks[key]; exists {
		return ErrAlreadyUnlocked
	}
	if err := r.payments.UpdateStatus(ctx, paymentID, payment.StatusCompleted, ""); err != nil {
		return err
	}
	r.unlocks[key] = rec
	return nil
}
