package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"btc-treasury-tracker/internal/domain"
)

// EntityStore provides access to entities storage.
type EntityStore interface {
	// Insert adds a new entity. Returns ErrDuplicateKey if the ticker exists.
	Insert(ctx context.Context, e *domain.Entity) error

	// GetByID retrieves an entity by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Entity, error)

	// GetByTicker retrieves an entity by normalized ticker. Returns ErrNotFound if not exists.
	GetByTicker(ctx context.Context, ticker string) (*domain.Entity, error)

	// ListByRegion retrieves entities in a normalized region, or all when region is empty.
	ListByRegion(ctx context.Context, region string) ([]*domain.Entity, error)

	// UpdateMarketData sets market cap and shares outstanding and bumps updated_at.
	UpdateMarketData(ctx context.Context, id string, marketCap *decimal.Decimal, shares *int64) error
}

// CandidateStore provides access to filing_candidates storage.
type CandidateStore interface {
	// Insert adds a new candidate. Returns ErrDuplicateKey if (entity_id, url) exists.
	Insert(ctx context.Context, c *domain.FilingCandidate) error

	// ExistsByEntityURL reports whether a candidate exists for (entity_id, url).
	ExistsByEntityURL(ctx context.Context, entityID, url string) (bool, error)

	// GetByEntity retrieves all candidates for an entity, ordered by disclosed_at DESC.
	GetByEntity(ctx context.Context, entityID string) ([]*domain.FilingCandidate, error)
}

// SnapshotStore provides access to holdings_snapshots storage. Append-only.
type SnapshotStore interface {
	// Append inserts a new observation.
	Append(ctx context.Context, s *domain.HoldingsSnapshot) error

	// ListByEntities retrieves every snapshot for the given entities in a single
	// fetch, ordered by created_at DESC.
	ListByEntities(ctx context.Context, entityIDs []string) ([]*domain.HoldingsSnapshot, error)
}

// HoldingsView provides the latest-state projection.
type HoldingsView interface {
	// LatestHoldings returns one row per entity carrying its most recent snapshot,
	// restricted to a normalized region when region is non-empty.
	// Entities with no snapshots are excluded.
	LatestHoldings(ctx context.Context, region string) ([]*domain.EntityHoldings, error)
}

// PriceStore provides access to price_snapshots storage.
type PriceStore interface {
	// Insert appends a price observation.
	Insert(ctx context.Context, p *domain.PriceSnapshot) error

	// Latest retrieves the most recent observation. Returns ErrNotFound if empty.
	Latest(ctx context.Context) (*domain.PriceSnapshot, error)
}

// Pinger is implemented by backends that can answer a trivial liveness read.
type Pinger interface {
	Ping(ctx context.Context) error
}
