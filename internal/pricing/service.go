// Package pricing is the BTC/USD reference: the latest recorded snapshot is
// authoritative and there is no fallback value.
package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"btc-treasury-tracker/internal/domain"
	"btc-treasury-tracker/internal/logger"
	"btc-treasury-tracker/internal/observability"
	"btc-treasury-tracker/internal/storage"
)

// ErrNoPriceData is returned when no snapshot has ever been recorded.
var ErrNoPriceData = errors.New("no price data available")

// Service reads and records BTC/USD snapshots.
type Service struct {
	store storage.PriceStore
	log   *logger.Entry
}

// NewService creates a pricing Service over a PriceStore.
func NewService(store storage.PriceStore, log *logger.Log) *Service {
	return &Service{store: store, log: log.WithComponent("pricing")}
}

// Latest returns the most recent snapshot, or ErrNoPriceData.
func (s *Service) Latest(ctx context.Context) (*domain.PriceSnapshot, error) {
	p, err := s.store.Latest(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoPriceData
		}
		return nil, fmt.Errorf("load latest price: %w", err)
	}
	return p, nil
}

// Record appends a snapshot. The rate must be positive.
func (s *Service) Record(ctx context.Context, rate decimal.Decimal, source string) (*domain.PriceSnapshot, error) {
	if !rate.IsPositive() {
		return nil, fmt.Errorf("rate %s: %w", rate, storage.ErrInvalidInput)
	}

	p := &domain.PriceSnapshot{Rate: rate, Source: source}
	if err := s.store.Insert(ctx, p); err != nil {
		return nil, fmt.Errorf("record price: %w", err)
	}

	observability.RecordPriceUpdate(rate.InexactFloat64())
	s.log.WithFields(logger.Fields{"rate": rate.String(), "source": source}).Debug("price recorded")
	return p, nil
}
