package memory

import (
	"context"
	"sync"
	"time"

	"btc-treasury-tracker/internal/domain"
	"btc-treasury-tracker/internal/storage"
)

// PriceStore is an in-memory implementation of storage.PriceStore.
type PriceStore struct {
	mu     sync.RWMutex
	latest *domain.PriceSnapshot
}

// NewPriceStore creates a new in-memory price store.
func NewPriceStore() *PriceStore {
	return &PriceStore{}
}

// Insert appends a price observation. Only the newest is retained.
func (s *PriceStore) Insert(_ context.Context, p *domain.PriceSnapshot) error {
	if p == nil || !p.Rate.IsPositive() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	priceCopy := *p
	if priceCopy.CreatedAt.IsZero() {
		priceCopy.CreatedAt = time.Now()
		p.CreatedAt = priceCopy.CreatedAt
	}
	if s.latest == nil || !priceCopy.CreatedAt.Before(s.latest.CreatedAt) {
		s.latest = &priceCopy
	}
	return nil
}

// Latest retrieves the most recent observation. Returns ErrNotFound if empty.
func (s *PriceStore) Latest(_ context.Context) (*domain.PriceSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == nil {
		return nil, storage.ErrNotFound
	}
	priceCopy := *s.latest
	return &priceCopy, nil
}

// Verify interface compliance at compile time.
var _ storage.PriceStore = (*PriceStore)(nil)
