package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btc-treasury-tracker/internal/domain"
	"btc-treasury-tracker/internal/logger"
	"btc-treasury-tracker/internal/storage"
	"btc-treasury-tracker/internal/storage/memory"
)

type brokenStore struct{}

func (brokenStore) Insert(context.Context, *domain.PriceSnapshot) error { return errors.New("down") }
func (brokenStore) Latest(context.Context) (*domain.PriceSnapshot, error) {
	return nil, errors.New("down")
}

func TestService_LatestEmpty(t *testing.T) {
	svc := NewService(memory.NewPriceStore(), logger.Discard())

	_, err := svc.Latest(context.Background())
	assert.ErrorIs(t, err, ErrNoPriceData)
}

func TestService_RecordAndLatest(t *testing.T) {
	svc := NewService(memory.NewPriceStore(), logger.Discard())
	ctx := context.Background()

	_, err := svc.Record(ctx, decimal.NewFromInt(97000), "test")
	require.NoError(t, err)
	_, err = svc.Record(ctx, decimal.RequireFromString("98500.25"), "test")
	require.NoError(t, err)

	p, err := svc.Latest(ctx)
	require.NoError(t, err)
	assert.True(t, p.Rate.Equal(decimal.RequireFromString("98500.25")))
	assert.Equal(t, "test", p.Source)
}

func TestService_RecordRejectsNonPositive(t *testing.T) {
	svc := NewService(memory.NewPriceStore(), logger.Discard())

	_, err := svc.Record(context.Background(), decimal.Zero, "test")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestService_StoreFailureIsNotNoData(t *testing.T) {
	svc := NewService(brokenStore{}, logger.Discard())

	_, err := svc.Latest(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoPriceData))
}
