package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btc-treasury-tracker/internal/domain"
	"btc-treasury-tracker/internal/idhash"
	"btc-treasury-tracker/internal/storage"
)

func newCandidate(entityID, url string, disclosedAt time.Time) *domain.FilingCandidate {
	return &domain.FilingCandidate{
		ID:              idhash.ComputeCandidateID(entityID, url),
		EntityID:        entityID,
		DisclosedAt:     disclosedAt,
		URL:             url,
		SourceTag:       "HKEX",
		Title:           "Voluntary Announcement - Purchase of Bitcoin",
		DetectionMethod: domain.DetectionTitleMatch,
	}
}

func TestCandidateStore_InsertAndGetByEntity(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	entity := seedEntity(t, NewEntityStore(pool), "ent-1", "01357", "APAC")
	store := NewCandidateStore(pool)

	older := newCandidate(entity.ID, "https://www1.hkexnews.hk/listedco/a.pdf", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	newer := newCandidate(entity.ID, "https://www1.hkexnews.hk/listedco/b.pdf", time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC))
	newer.Verified = true
	newer.BTCAmount = decimal.RequireFromString("12.5")

	require.NoError(t, store.Insert(ctx, older))
	require.NoError(t, store.Insert(ctx, newer))
	assert.False(t, newer.CreatedAt.IsZero())

	got, err := store.GetByEntity(ctx, entity.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, newer.URL, got[0].URL)
	assert.True(t, got[0].Verified)
	assert.True(t, got[0].BTCAmount.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, domain.DetectionTitleMatch, got[0].DetectionMethod)
	assert.Equal(t, older.URL, got[1].URL)
}

func TestCandidateStore_DuplicateEntityURL(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	entity := seedEntity(t, NewEntityStore(pool), "ent-1", "01357", "APAC")
	store := NewCandidateStore(pool)

	c := newCandidate(entity.ID, "https://www1.hkexnews.hk/listedco/a.pdf", time.Now().UTC())
	require.NoError(t, store.Insert(ctx, c))

	dup := newCandidate(entity.ID, c.URL, time.Now().UTC())
	dup.ID = "different-id"
	err := store.Insert(ctx, dup)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	exists, err := store.ExistsByEntityURL(ctx, entity.ID, c.URL)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.ExistsByEntityURL(ctx, entity.ID, "https://example.com/other.pdf")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCandidateStore_GetByEntity_Empty(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	got, err := NewCandidateStore(pool).GetByEntity(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}
