package payment

import (
	"context"
	"sync"
)

type inMemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewInMemory creates a concurrency-safe in-memory payment store useful for unit tests.
func NewInMemory() Store {
	return &inMemoryStore{records: make(map[string]Record)}
}

func (s *inMemoryStore) Create(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	return nil
}

func (s *inMemoryStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *inMemoryStore) FindPendingByOrderRef(_ context.Context, orderRef string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.TransactionID == orderRef && rec.Status == StatusPending {
			return rec, nil
		}
	}
	return Record{}, ErrNotFound
}

func (s *inMemoryStore) UpdateStatus(_ context.Context, id string, status Status, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Status != StatusPending {
		return ErrImmutable
	}
	rec.Status = status
	if transactionID != "" {
		rec.TransactionID = transactionID
	}
	s.records[id] = rec
	return nil
}
