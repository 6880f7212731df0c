package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btc-treasury-tracker/internal/domain"
	"btc-treasury-tracker/internal/storage"
)

func TestPriceStore_LatestEmpty(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewPriceStore(conn).Latest(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPriceStore_InsertBulkAndLatest(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPriceStore(conn)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	err := store.InsertBulk(ctx, []*domain.PriceSnapshot{
		{Rate: decimal.NewFromInt(97000), Source: "ws", CreatedAt: base},
		{Rate: decimal.RequireFromString("98123.45"), Source: "ws", CreatedAt: base.Add(time.Minute)},
		{Rate: decimal.NewFromInt(96000), Source: "ws", CreatedAt: base.Add(-time.Minute)},
	})
	require.NoError(t, err)

	got, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.True(t, got.Rate.Equal(decimal.RequireFromString("98123.45")))
	assert.Equal(t, "ws", got.Source)
	assert.True(t, got.CreatedAt.Equal(base.Add(time.Minute)))
}

func TestPriceStore_RejectsNonPositive(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	err := NewPriceStore(conn).Insert(context.Background(), &domain.PriceSnapshot{Rate: decimal.Zero})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
