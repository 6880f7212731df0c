package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"btc-treasury-tracker/internal/logger"
)

type failingLimiter struct{ calls int }

func (f *failingLimiter) Allow(context.Context, string) (Result, error) {
	f.calls++
	return Result{}, errors.New("connection refused")
}

type stubLimiter struct{ res Result }

func (s stubLimiter) Allow(context.Context, string) (Result, error) { return s.res, nil }

func TestTiered_FallsBackOnDurableFailure(t *testing.T) {
	durable := &failingLimiter{}
	tiered := NewTiered(durable, NewMemoryLimiter(3, time.Minute, time.Minute), logger.Discard())
	ctx := context.Background()

	for want := 2; want >= 0; want-- {
		res := tiered.Allow(ctx, "client")
		assert.True(t, res.Allowed)
		assert.Equal(t, want, res.Remaining)
		assert.Equal(t, TierMemory, res.Tier)
	}

	res := tiered.Allow(ctx, "client")
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 4, durable.calls)
}

func TestTiered_UnreachableRedisFallsBack(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	durable := NewRedisLimiter(client, 60, time.Minute, logger.Discard())
	tiered := NewTiered(durable, NewMemoryLimiter(60, time.Minute, time.Minute), logger.Discard())

	res := tiered.Allow(context.Background(), "client")
	assert.True(t, res.Allowed)
	assert.Equal(t, 59, res.Remaining)
	assert.Equal(t, TierMemory, res.Tier)

	assert.Error(t, tiered.DurablePinger().Ping(context.Background()))
}

func TestTiered_UsesDurableWhenHealthy(t *testing.T) {
	durable := stubLimiter{res: Result{Allowed: true, Limit: 60, Remaining: 10, Tier: TierRedis}}
	tiered := NewTiered(durable, NewMemoryLimiter(60, time.Minute, time.Minute), logger.Discard())

	res := tiered.Allow(context.Background(), "client")
	assert.Equal(t, TierRedis, res.Tier)
	assert.Equal(t, 10, res.Remaining)

	// stubLimiter has no Ping
	assert.Nil(t, tiered.DurablePinger())
}

func TestTiered_MemoryOnly(t *testing.T) {
	tiered := NewTiered(nil, NewMemoryLimiter(1, time.Minute, time.Minute), logger.Discard())

	assert.True(t, tiered.Allow(context.Background(), "x").Allowed)
	assert.False(t, tiered.Allow(context.Background(), "x").Allowed)
	assert.Nil(t, tiered.DurablePinger())
}
