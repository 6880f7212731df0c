package holdings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"btc-treasury-tracker/internal/domain"
	"btc-treasury-tracker/internal/logger"
	"btc-treasury-tracker/internal/observability"
	"btc-treasury-tracker/internal/storage"
)

// Service appends holdings observations and serves the latest-state projection.
type Service struct {
	snapshots storage.SnapshotStore
	view      storage.HoldingsView
	log       *logger.Entry
}

// NewService creates a holdings service.
func NewService(snapshots storage.SnapshotStore, view storage.HoldingsView, log *logger.Log) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		snapshots: snapshots,
		view:      view,
		log:       log.WithComponent("holdings"),
	}
}

// Append records a new observation. ID is assigned when empty, origin
// defaults to manual. Earlier snapshots are never modified.
func (s *Service) Append(ctx context.Context, snap *domain.HoldingsSnapshot) error {
	if snap == nil || snap.EntityID == "" {
		return fmt.Errorf("entity id is required: %w", storage.ErrInvalidInput)
	}
	if snap.BTC.IsNegative() {
		return fmt.Errorf("negative btc %s: %w", snap.BTC, storage.ErrInvalidInput)
	}
	if snap.CostBasisUSD != nil && snap.CostBasisUSD.IsNegative() {
		return fmt.Errorf("negative cost basis %s: %w", snap.CostBasisUSD, storage.ErrInvalidInput)
	}
	if snap.Origin == "" {
		snap.Origin = domain.OriginManual
	}
	if !snap.Origin.IsValid() {
		return fmt.Errorf("origin %q: %w", snap.Origin, storage.ErrInvalidInput)
	}
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}

	start := time.Now()
	err := s.snapshots.Append(ctx, snap)
	observability.RecordDBQuery("snapshots", "append", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("append snapshot for %s: %w", snap.EntityID, err)
	}

	s.log.WithFields(logger.Fields{
		"entity_id": snap.EntityID,
		"btc":       snap.BTC.String(),
		"origin":    string(snap.Origin),
	}).Debug("snapshot appended")
	return nil
}

// Latest returns each entity's most recent snapshot joined with its entity
// row, restricted to region when non-empty. Computed on every read.
func (s *Service) Latest(ctx context.Context, region string) ([]*domain.EntityHoldings, error) {
	start := time.Now()
	rows, err := s.view.LatestHoldings(ctx, domain.NormalizeRegion(region))
	observability.RecordDBQuery("snapshots", "latest", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("latest holdings: %w", err)
	}
	return rows, nil
}

// ComputeDeltas returns, per entity, the btc change between its two most
// recent snapshots. Entities with a single snapshot map to nil; entities with
// none are absent. History for all ids is fetched in one store call.
func (s *Service) ComputeDeltas(ctx context.Context, entityIDs []string) (map[string]*decimal.Decimal, error) {
	deltas := make(map[string]*decimal.Decimal, len(entityIDs))
	if len(entityIDs) == 0 {
		return deltas, nil
	}

	start := time.Now()
	history, err := s.snapshots.ListByEntities(ctx, entityIDs)
	observability.RecordDBQuery("snapshots", "list_by_entities", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	return Deltas(history), nil
}

// Deltas groups snapshots ordered by created_at DESC by entity and returns
// latest minus previous btc for each.
func Deltas(history []*domain.HoldingsSnapshot) map[string]*decimal.Decimal {
	latest := make(map[string]decimal.Decimal)
	deltas := make(map[string]*decimal.Decimal)
	seen := make(map[string]int)

	for _, snap := range history {
		n := seen[snap.EntityID]
		seen[snap.EntityID] = n + 1
		switch n {
		case 0:
			latest[snap.EntityID] = snap.BTC
			deltas[snap.EntityID] = nil
		case 1:
			d := latest[snap.EntityID].Sub(snap.BTC)
			deltas[snap.EntityID] = &d
		}
	}
	return deltas
}
