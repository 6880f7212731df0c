package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"btc-treasury-tracker/internal/domain"
	"btc-treasury-tracker/internal/storage"
)

// EntityStore is an in-memory implementation of storage.EntityStore.
type EntityStore struct {
	mu       sync.RWMutex
	data     map[string]*domain.Entity // keyed by id
	byTicker map[string]string         // ticker -> id
	now      func() time.Time
}

// NewEntityStore creates a new in-memory entity store.
func NewEntityStore() *EntityStore {
	return &EntityStore{
		data:     make(map[string]*domain.Entity),
		byTicker: make(map[string]string),
		now:      time.Now,
	}
}

// Insert adds a new entity. Returns ErrDuplicateKey if the ticker or id exists.
func (s *EntityStore) Insert(_ context.Context, e *domain.Entity) error {
	if e == nil || e.ID == "" || e.Ticker == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.ID]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.byTicker[e.Ticker]; exists {
		return storage.ErrDuplicateKey
	}

	entityCopy := *e
	entityCopy.Region = domain.NormalizeRegion(entityCopy.Region)
	if entityCopy.CreatedAt.IsZero() {
		entityCopy.CreatedAt = s.now()
	}
	if entityCopy.UpdatedAt.IsZero() {
		entityCopy.UpdatedAt = entityCopy.CreatedAt
	}
	s.data[e.ID] = &entityCopy
	s.byTicker[e.Ticker] = e.ID
	return nil
}

// GetByID retrieves an entity by its ID. Returns ErrNotFound if not exists.
func (s *EntityStore) GetByID(_ context.Context, id string) (*domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	entityCopy := *e
	return &entityCopy, nil
}

// GetByTicker retrieves an entity by normalized ticker. Returns ErrNotFound if not exists.
func (s *EntityStore) GetByTicker(_ context.Context, ticker string) (*domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byTicker[ticker]
	if !exists {
		return nil, storage.ErrNotFound
	}
	entityCopy := *s.data[id]
	return &entityCopy, nil
}

// ListByRegion retrieves entities in a region, or all when region is empty.
// Results are ordered by ticker.
func (s *EntityStore) ListByRegion(_ context.Context, region string) ([]*domain.Entity, error) {
	region = domain.NormalizeRegion(region)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Entity
	for _, e := range s.data {
		if region != "" && domain.NormalizeRegion(e.Region) != region {
			continue
		}
		entityCopy := *e
		result = append(result, &entityCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Ticker < result[j].Ticker
	})
	return result, nil
}

// UpdateMarketData sets market cap and shares outstanding and bumps updated_at.
func (s *EntityStore) UpdateMarketData(_ context.Context, id string, marketCap *decimal.Decimal, shares *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}
	e.MarketCap = marketCap
	e.SharesOutstanding = shares
	e.UpdatedAt = s.now()
	return nil
}

// Verify interface compliance at compile time.
var _ storage.EntityStore = (*EntityStore)(nil)
