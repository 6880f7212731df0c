// Package registry resolves companies to canonical entity rows keyed by
// normalized ticker.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"btc-treasury-tracker/internal/domain"
	"btc-treasury-tracker/internal/logger"
	"btc-treasury-tracker/internal/storage"
)

// Registry is the entity lookup-or-create front over an EntityStore.
type Registry struct {
	store storage.EntityStore
	log   *logger.Entry
}

// New creates a Registry.
func New(store storage.EntityStore, log *logger.Log) *Registry {
	return &Registry{store: store, log: log.WithComponent("registry")}
}

// LookupOrCreate returns the entity for e's normalized ticker, inserting e if
// none exists. A concurrent insert of the same ticker resolves to the row that
// won the race.
func (r *Registry) LookupOrCreate(ctx context.Context, e domain.Entity) (*domain.Entity, bool, error) {
	if e.Ticker == "" {
		return nil, false, fmt.Errorf("ticker is required: %w", storage.ErrInvalidInput)
	}
	if e.Venue == "" {
		e.Venue = VenueFromTicker(e.Ticker)
	}
	e.Ticker = NormalizeTicker(e.Ticker, e.Venue)
	e.Region = domain.NormalizeRegion(e.Region)

	existing, err := r.store.GetByTicker(ctx, e.Ticker)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, fmt.Errorf("lookup entity %s: %w", e.Ticker, err)
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.LegalName == "" {
		e.LegalName = e.Ticker
	}

	if err := r.store.Insert(ctx, &e); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			// Lost the race to another writer
			existing, getErr := r.store.GetByTicker(ctx, e.Ticker)
			if getErr != nil {
				return nil, false, fmt.Errorf("resolve duplicate entity %s: %w", e.Ticker, getErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("insert entity %s: %w", e.Ticker, err)
	}

	r.log.WithFields(logger.Fields{"entity_id": e.ID, "ticker": e.Ticker, "venue": e.Venue}).Info("entity created")
	return &e, true, nil
}

// Get returns an entity by id.
func (r *Registry) Get(ctx context.Context, id string) (*domain.Entity, error) {
	return r.store.GetByID(ctx, id)
}

// GetByTicker normalizes raw for venue and looks the entity up.
func (r *Registry) GetByTicker(ctx context.Context, raw string, venue domain.Venue) (*domain.Entity, error) {
	return r.store.GetByTicker(ctx, NormalizeTicker(raw, venue))
}

// ListByRegion lists entities whose normalized region matches; empty means all.
func (r *Registry) ListByRegion(ctx context.Context, region string) ([]*domain.Entity, error) {
	return r.store.ListByRegion(ctx, domain.NormalizeRegion(region))
}

// UpdateMarketData records market cap and shares outstanding for an entity.
func (r *Registry) UpdateMarketData(ctx context.Context, id string, marketCap *decimal.Decimal, shares *int64) error {
	if marketCap != nil && marketCap.IsNegative() {
		return fmt.Errorf("negative market cap: %w", storage.ErrInvalidInput)
	}
	if shares != nil && *shares < 0 {
		return fmt.Errorf("negative shares outstanding: %w", storage.ErrInvalidInput)
	}
	return r.store.UpdateMarketData(ctx, id, marketCap, shares)
}
