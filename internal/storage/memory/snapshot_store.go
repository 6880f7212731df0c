package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"btc-treasury-tracker/internal/domain"
	"btc-treasury-tracker/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu       sync.RWMutex
	data     []*domain.HoldingsSnapshot
	ids      map[string]struct{}
	fetches  int // ListByEntities calls, observed by tests
	now      func() time.Time
	lastTime time.Time
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		ids: make(map[string]struct{}),
		now: time.Now,
	}
}

// Append inserts a new observation. A zero CreatedAt is assigned a strictly
// increasing timestamp so that history stays totally ordered.
func (s *SnapshotStore) Append(_ context.Context, snap *domain.HoldingsSnapshot) error {
	if snap == nil || snap.ID == "" || snap.EntityID == "" || snap.BTC.IsNegative() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[snap.ID]; exists {
		return storage.ErrDuplicateKey
	}

	snapCopy := *snap
	if snapCopy.CreatedAt.IsZero() {
		ts := s.now()
		if !ts.After(s.lastTime) {
			ts = s.lastTime.Add(time.Microsecond)
		}
		snapCopy.CreatedAt = ts
	}
	if snapCopy.CreatedAt.After(s.lastTime) {
		s.lastTime = snapCopy.CreatedAt
	}
	snap.CreatedAt = snapCopy.CreatedAt

	s.data = append(s.data, &snapCopy)
	s.ids[snap.ID] = struct{}{}
	return nil
}

// ListByEntities retrieves every snapshot for the given entities, ordered by created_at DESC.
func (s *SnapshotStore) ListByEntities(_ context.Context, entityIDs []string) ([]*domain.HoldingsSnapshot, error) {
	wanted := make(map[string]struct{}, len(entityIDs))
	for _, id := range entityIDs {
		wanted[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++

	var result []*domain.HoldingsSnapshot
	for _, snap := range s.data {
		if _, ok := wanted[snap.EntityID]; ok {
			snapCopy := *snap
			result = append(result, &snapCopy)
		}
	}

	sortNewestFirst(result)
	return result, nil
}

// Fetches returns how many ListByEntities calls were served.
func (s *SnapshotStore) Fetches() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetches
}

// latestByEntity returns the most recent snapshot per entity.
func (s *SnapshotStore) latestByEntity() map[string]*domain.HoldingsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[string]*domain.HoldingsSnapshot)
	for _, snap := range s.data {
		cur, ok := latest[snap.EntityID]
		if !ok || newerThan(snap, cur) {
			latest[snap.EntityID] = snap
		}
	}

	out := make(map[string]*domain.HoldingsSnapshot, len(latest))
	for id, snap := range latest {
		snapCopy := *snap
		out[id] = &snapCopy
	}
	return out
}

// newerThan orders by created_at, then id, both descending, matching the
// postgres queries.
func newerThan(a, b *domain.HoldingsSnapshot) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func sortNewestFirst(snaps []*domain.HoldingsSnapshot) {
	sort.SliceStable(snaps, func(i, j int) bool {
		return newerThan(snaps[i], snaps[j])
	})
}

// Verify interface compliance at compile time.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)
