package memory

import (
	"context"
	"sort"

	"btc-treasury-tracker/internal/domain"
	"btc-treasury-tracker/internal/storage"
)

// HoldingsView computes the latest-state projection from the in-memory stores
// on every read, so appends and market-data updates are visible immediately.
type HoldingsView struct {
	entities   *EntityStore
	snapshots  *SnapshotStore
	candidates *CandidateStore
}

// NewHoldingsView creates a projection over the given stores.
func NewHoldingsView(entities *EntityStore, snapshots *SnapshotStore, candidates *CandidateStore) *HoldingsView {
	return &HoldingsView{entities: entities, snapshots: snapshots, candidates: candidates}
}

// LatestHoldings returns one row per entity carrying its most recent snapshot.
func (v *HoldingsView) LatestHoldings(ctx context.Context, region string) ([]*domain.EntityHoldings, error) {
	entities, err := v.entities.ListByRegion(ctx, region)
	if err != nil {
		return nil, err
	}
	latest := v.snapshots.latestByEntity()

	var result []*domain.EntityHoldings
	for _, e := range entities {
		snap, ok := latest[e.ID]
		if !ok {
			continue
		}
		row := &domain.EntityHoldings{Entity: *e, Snapshot: *snap}
		if v.candidates != nil {
			row.Verified = v.candidates.hasVerified(e.ID)
		}
		result = append(result, row)
	}

	// Largest holders first, ticker as tie-breaker
	sort.SliceStable(result, func(i, j int) bool {
		cmp := result[i].Snapshot.BTC.Cmp(result[j].Snapshot.BTC)
		if cmp == 0 {
			return result[i].Entity.Ticker < result[j].Entity.Ticker
		}
		return cmp > 0
	})
	return result, nil
}

// Ping always succeeds for the in-memory backend.
func (v *HoldingsView) Ping(context.Context) error {
	return nil
}

// Verify interface compliance at compile time.
var (
	_ storage.HoldingsView = (*HoldingsView)(nil)
	_ storage.Pinger       = (*HoldingsView)(nil)
)
