package postgres

import (
	"context"
	"fmt"

	"btc-treasury-tracker/internal/domain"
	"btc-treasury-tracker/internal/storage"
)

// PriceStore implements storage.PriceStore using PostgreSQL.
type PriceStore struct {
	pool *Pool
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(pool *Pool) *PriceStore {
	return &PriceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// Insert appends a price observation.
func (s *PriceStore) Insert(ctx context.Context, p *domain.PriceSnapshot) error {
	if p == nil || !p.Rate.IsPositive() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO price_snapshots (rate, source, created_at)
		VALUES ($1::numeric, $2, COALESCE($3, clock_timestamp()))
		RETURNING created_at
	`

	var createdAt any
	if !p.CreatedAt.IsZero() {
		createdAt = p.CreatedAt
	}

	if err := s.pool.QueryRow(ctx, query, numericArg(p.Rate), p.Source, createdAt).Scan(&p.CreatedAt); err != nil {
		return fmt.Errorf("insert price snapshot: %w", err)
	}
	return nil
}

// Latest retrieves the most recent observation. Returns ErrNotFound if empty.
func (s *PriceStore) Latest(ctx context.Context) (*domain.PriceSnapshot, error) {
	query := `
		SELECT rate::text, source, created_at
		FROM price_snapshots
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var p domain.PriceSnapshot
	var rate string
	if err := s.pool.QueryRow(ctx, query).Scan(&rate, &p.Source, &p.CreatedAt); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest price: %w", err)
	}

	var err error
	if p.Rate, err = parseNumeric(rate); err != nil {
		return nil, err
	}
	return &p, nil
}
