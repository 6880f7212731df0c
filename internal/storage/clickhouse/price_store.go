package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"btc-treasury-tracker/internal/domain"
	"btc-treasury-tracker/internal/storage"
)

// PriceStore implements storage.PriceStore using ClickHouse.
// The table is an append-only MergeTree ordered by created_at.
type PriceStore struct {
	conn *Conn
	now  func() time.Time
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(conn *Conn) *PriceStore {
	return &PriceStore{conn: conn, now: time.Now}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// Insert appends a price observation.
func (s *PriceStore) Insert(ctx context.Context, p *domain.PriceSnapshot) error {
	return s.InsertBulk(ctx, []*domain.PriceSnapshot{p})
}

// InsertBulk appends several observations in one batch.
func (s *PriceStore) InsertBulk(ctx context.Context, points []*domain.PriceSnapshot) error {
	if len(points) == 0 {
		return nil
	}
	for _, p := range points {
		if p == nil || !p.Rate.IsPositive() {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_snapshots (rate, source, created_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if p.CreatedAt.IsZero() {
			p.CreatedAt = s.now().UTC()
		}
		if err := batch.Append(p.Rate, p.Source, p.CreatedAt); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// Latest retrieves the most recent observation. Returns ErrNotFound if empty.
func (s *PriceStore) Latest(ctx context.Context) (*domain.PriceSnapshot, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT rate, source, created_at
		FROM price_snapshots
		ORDER BY created_at DESC
		LIMIT 1
	`)
	if err != nil {
		return nil, fmt.Errorf("query latest price: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate price rows: %w", err)
		}
		return nil, storage.ErrNotFound
	}

	var p domain.PriceSnapshot
	var rate decimal.Decimal
	if err := rows.Scan(&rate, &p.Source, &p.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan price row: %w", err)
	}
	p.Rate = rate
	return &p, nil
}
