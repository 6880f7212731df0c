package postgres

import (
	"context"
	"fmt"

	"btc-treasury-tracker/internal/domain"
	"btc-treasury-tracker/internal/storage"
)

// HoldingsView implements storage.HoldingsView with a DISTINCT ON query, so the
// projection is always computed from current rows.
type HoldingsView struct {
	pool *Pool
}

// NewHoldingsView creates a new HoldingsView.
func NewHoldingsView(pool *Pool) *HoldingsView {
	return &HoldingsView{pool: pool}
}

// Compile-time interface checks.
var (
	_ storage.HoldingsView = (*HoldingsView)(nil)
	_ storage.Pinger       = (*HoldingsView)(nil)
)

// LatestHoldings returns one row per entity carrying its most recent snapshot.
func (v *HoldingsView) LatestHoldings(ctx context.Context, region string) ([]*domain.EntityHoldings, error) {
	query := `
		WITH latest AS (
			SELECT DISTINCT ON (entity_id) ` + snapshotColumns + `
			FROM holdings_snapshots
			ORDER BY entity_id, created_at DESC, id DESC
		)
		SELECT
			e.id, e.legal_name, e.ticker, e.venue, e.headquarters, e.region,
			e.market_cap::text, e.shares_outstanding, e.created_at, e.updated_at,
			l.id, l.entity_id, l.btc, l.cost_basis_usd, l.last_disclosed,
			l.source_url, l.origin, l.created_at,
			EXISTS (
				SELECT 1 FROM filing_candidates c
				WHERE c.entity_id = e.id AND c.verified
			) AS verified
		FROM entities e
		JOIN latest l ON l.entity_id = e.id
		WHERE ($1 = '' OR e.region = $1)
		ORDER BY l.btc::numeric DESC, e.ticker ASC
	`

	rows, err := v.pool.Query(ctx, query, domain.NormalizeRegion(region))
	if err != nil {
		return nil, fmt.Errorf("query latest holdings: %w", err)
	}
	defer rows.Close()

	var result []*domain.EntityHoldings
	for rows.Next() {
		var row domain.EntityHoldings
		var venue, btc, origin string
		var marketCap, costBasis *string

		err := rows.Scan(
			&row.Entity.ID,
			&row.Entity.LegalName,
			&row.Entity.Ticker,
			&venue,
			&row.Entity.Headquarters,
			&row.Entity.Region,
			&marketCap,
			&row.Entity.SharesOutstanding,
			&row.Entity.CreatedAt,
			&row.Entity.UpdatedAt,
			&row.Snapshot.ID,
			&row.Snapshot.EntityID,
			&btc,
			&costBasis,
			&row.Snapshot.LastDisclosed,
			&row.Snapshot.SourceURL,
			&origin,
			&row.Snapshot.CreatedAt,
			&row.Verified,
		)
		if err != nil {
			return nil, fmt.Errorf("scan holdings row: %w", err)
		}

		row.Entity.Venue = domain.Venue(venue)
		row.Snapshot.Origin = domain.SnapshotOrigin(origin)
		if row.Entity.MarketCap, err = parseNullableNumeric(marketCap); err != nil {
			return nil, err
		}
		if row.Snapshot.BTC, err = parseNumeric(btc); err != nil {
			return nil, err
		}
		if row.Snapshot.CostBasisUSD, err = parseNullableNumeric(costBasis); err != nil {
			return nil, err
		}
		result = append(result, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holdings rows: %w", err)
	}
	return result, nil
}

// Ping performs a trivial read against the backing database.
func (v *HoldingsView) Ping(ctx context.Context) error {
	return v.pool.Ping(ctx)
}
