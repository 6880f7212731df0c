package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"btc-treasury-tracker/internal/domain"
	"btc-treasury-tracker/internal/storage"
)

// EntityStore implements storage.EntityStore using PostgreSQL.
type EntityStore struct {
	pool *Pool
}

// NewEntityStore creates a new EntityStore.
func NewEntityStore(pool *Pool) *EntityStore {
	return &EntityStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EntityStore = (*EntityStore)(nil)

const entityColumns = `id, legal_name, ticker, venue, headquarters, region,
	market_cap::text, shares_outstanding, created_at, updated_at`

// Insert adds a new entity. Returns ErrDuplicateKey if the ticker exists.
func (s *EntityStore) Insert(ctx context.Context, e *domain.Entity) error {
	if e == nil || e.ID == "" || e.Ticker == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO entities (
			id, legal_name, ticker, venue, headquarters, region, market_cap, shares_outstanding
		) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8)
		RETURNING created_at, updated_at
	`

	err := s.pool.QueryRow(ctx, query,
		e.ID,
		e.LegalName,
		e.Ticker,
		string(e.Venue),
		e.Headquarters,
		domain.NormalizeRegion(e.Region),
		nullableNumericArg(e.MarketCap),
		e.SharesOutstanding,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert entity: %w", err)
	}
	return nil
}

// GetByID retrieves an entity by its ID. Returns ErrNotFound if not exists.
func (s *EntityStore) GetByID(ctx context.Context, id string) (*domain.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE id = $1`

	e, err := scanEntity(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get entity by id: %w", err)
	}
	return e, nil
}

// GetByTicker retrieves an entity by normalized ticker. Returns ErrNotFound if not exists.
func (s *EntityStore) GetByTicker(ctx context.Context, ticker string) (*domain.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE ticker = $1`

	e, err := scanEntity(s.pool.QueryRow(ctx, query, ticker))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get entity by ticker: %w", err)
	}
	return e, nil
}

// ListByRegion retrieves entities in a region, or all when region is empty.
func (s *EntityStore) ListByRegion(ctx context.Context, region string) ([]*domain.Entity, error) {
	query := `
		SELECT ` + entityColumns + `
		FROM entities
		WHERE ($1 = '' OR region = $1)
		ORDER BY ticker ASC
	`

	rows, err := s.pool.Query(ctx, query, domain.NormalizeRegion(region))
	if err != nil {
		return nil, fmt.Errorf("list entities by region: %w", err)
	}
	defer rows.Close()

	var entities []*domain.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity row: %w", err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entity rows: %w", err)
	}
	return entities, nil
}

// UpdateMarketData sets market cap and shares outstanding and bumps updated_at.
func (s *EntityStore) UpdateMarketData(ctx context.Context, id string, marketCap *decimal.Decimal, shares *int64) error {
	query := `
		UPDATE entities
		SET market_cap = $2::numeric, shares_outstanding = $3, updated_at = now()
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query, id, nullableNumericArg(marketCap), shares)
	if err != nil {
		return fmt.Errorf("update market data: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanEntity scans a single row into an Entity.
func scanEntity(row pgx.Row) (*domain.Entity, error) {
	var e domain.Entity
	var venue string
	var marketCap *string

	err := row.Scan(
		&e.ID,
		&e.LegalName,
		&e.Ticker,
		&venue,
		&e.Headquarters,
		&e.Region,
		&marketCap,
		&e.SharesOutstanding,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Venue = domain.Venue(venue)
	if e.MarketCap, err = parseNullableNumeric(marketCap); err != nil {
		return nil, err
	}
	return &e, nil
}
