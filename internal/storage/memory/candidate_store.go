package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"btc-treasury-tracker/internal/domain"
	"btc-treasury-tracker/internal/storage"
)

// CandidateStore is an in-memory implementation of storage.CandidateStore.
type CandidateStore struct {
	mu    sync.RWMutex
	data  map[string]*domain.FilingCandidate // keyed by candidate id
	byKey map[candidateKey]string            // (entity_id, url) -> id
}

type candidateKey struct {
	entityID string
	url      string
}

// NewCandidateStore creates a new in-memory candidate store.
func NewCandidateStore() *CandidateStore {
	return &CandidateStore{
		data:  make(map[string]*domain.FilingCandidate),
		byKey: make(map[candidateKey]string),
	}
}

// Insert adds a new candidate. Returns ErrDuplicateKey if (entity_id, url) exists.
func (s *CandidateStore) Insert(_ context.Context, c *domain.FilingCandidate) error {
	if c == nil || c.ID == "" || c.EntityID == "" || c.URL == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := candidateKey{entityID: c.EntityID, url: c.URL}
	if _, exists := s.byKey[key]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.data[c.ID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	candidateCopy := *c
	if candidateCopy.CreatedAt.IsZero() {
		candidateCopy.CreatedAt = time.Now()
	}
	s.data[c.ID] = &candidateCopy
	s.byKey[key] = c.ID
	return nil
}

// ExistsByEntityURL reports whether a candidate exists for (entity_id, url).
func (s *CandidateStore) ExistsByEntityURL(_ context.Context, entityID, url string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.byKey[candidateKey{entityID: entityID, url: url}]
	return exists, nil
}

// GetByEntity retrieves all candidates for an entity, ordered by disclosed_at DESC.
func (s *CandidateStore) GetByEntity(_ context.Context, entityID string) ([]*domain.FilingCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FilingCandidate
	for _, c := range s.data {
		if c.EntityID == entityID {
			candidateCopy := *c
			result = append(result, &candidateCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].DisclosedAt.Equal(result[j].DisclosedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].DisclosedAt.After(result[j].DisclosedAt)
	})
	return result, nil
}

// hasVerified reports whether any candidate of the entity is verified.
func (s *CandidateStore) hasVerified(entityID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.data {
		if c.EntityID == entityID && c.Verified {
			return true
		}
	}
	return false
}

// Verify interface compliance at compile time.
var _ storage.CandidateStore = (*CandidateStore)(nil)
