package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"btc-treasury-tracker/internal/domain"
	"btc-treasury-tracker/internal/logger"
	"btc-treasury-tracker/internal/observability"
)

// Refresh statuses reported to metrics.
const (
	StatusUpdated = "updated"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// EntityDirectory lists entities and accepts market-data updates.
// *registry.Registry satisfies it.
type EntityDirectory interface {
	ListByRegion(ctx context.Context, region string) ([]*domain.Entity, error)
	UpdateMarketData(ctx context.Context, id string, marketCap *decimal.Decimal, shares *int64) error
}

// Result summarises a refresh sweep.
type Result struct {
	Total   int              `json:"total"`
	Updated int              `json:"updated"`
	Skipped int              `json:"skipped"`
	Failed  int              `json:"failed"`
	Errors  map[string]error `json:"-"`
}

// Refresher pulls market data for every entity and stores it.
type Refresher struct {
	provider    Provider
	entities    EntityDirectory
	recorder    observability.Recorder
	concurrency int
	log         *logger.Entry
}

// NewRefresher creates a refresher running at most concurrency quotes at once.
// recorder may be nil.
func NewRefresher(provider Provider, entities EntityDirectory, recorder observability.Recorder, concurrency int, log *logger.Log) *Refresher {
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Refresher{
		provider:    provider,
		entities:    entities,
		recorder:    recorder,
		concurrency: concurrency,
		log:         log.WithComponent("marketdata"),
	}
}

// Refresh updates every entity in region (all when empty). A failure for one
// entity is logged and counted; the sweep returns after every entity settled.
// The error is non-nil only when the entity list cannot be read.
func (r *Refresher) Refresh(ctx context.Context, region string) (Result, error) {
	entities, err := r.entities.ListByRegion(ctx, region)
	if err != nil {
		return Result{}, fmt.Errorf("list entities: %w", err)
	}

	res := Result{Total: len(entities), Errors: make(map[string]error)}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for _, e := range entities {
		g.Go(func() error {
			status, err := r.refreshOne(ctx, e)
			observability.RecordMarketDataRefresh(status)

			mu.Lock()
			defer mu.Unlock()
			switch status {
			case StatusUpdated:
				res.Updated++
			case StatusSkipped:
				res.Skipped++
			default:
				res.Failed++
				res.Errors[e.Ticker] = err
			}
			// Never fail the group; siblings must run to completion.
			return nil
		})
	}
	_ = g.Wait()

	r.log.WithFields(logger.Fields{
		"region":  region,
		"total":   res.Total,
		"updated": res.Updated,
		"skipped": res.Skipped,
		"failed":  res.Failed,
	}).Info("market data refresh complete")
	return res, nil
}

func (r *Refresher) refreshOne(ctx context.Context, e *domain.Entity) (string, error) {
	start := time.Now()
	err := r.update(ctx, e)
	if r.recorder != nil {
		r.recorder.TrackPerformance("marketdata.refresh", time.Since(start), map[string]string{"ticker": e.Ticker})
	}

	switch {
	case errors.Is(err, errNoData):
		return StatusSkipped, nil
	case err != nil:
		r.log.WithError(err).WithField("ticker", e.Ticker).Warn("market data refresh failed")
		if r.recorder != nil {
			r.recorder.LogError(err, map[string]string{"component": "marketdata", "ticker": e.Ticker})
		}
		return StatusFailed, err
	}
	return StatusUpdated, nil
}

var errNoData = errors.New("quote carried no data")

func (r *Refresher) update(ctx context.Context, e *domain.Entity) error {
	quote, err := r.provider.Quote(ctx, e)
	if err != nil {
		return err
	}
	if quote.MarketCap == nil && quote.SharesOutstanding == nil {
		return errNoData
	}

	marketCap, shares := quote.MarketCap, quote.SharesOutstanding
	if marketCap == nil {
		marketCap = e.MarketCap
	}
	if shares == nil {
		shares = e.SharesOutstanding
	}
	if err := r.entities.UpdateMarketData(ctx, e.ID, marketCap, shares); err != nil {
		return fmt.Errorf("store market data for %s: %w", e.Ticker, err)
	}
	return nil
}
