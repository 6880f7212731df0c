package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"btc-treasury-tracker/internal/logger"
)

// RedisLimiter is a sliding-window limiter over a sorted set per identifier.
// Scores are request times in milliseconds.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	period time.Duration
	now    func() time.Time
	log    *logger.Entry
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter creates a limiter admitting limit requests per sliding period.
func NewRedisLimiter(client *redis.Client, limit int, period time.Duration, log *logger.Log) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  limit,
		period: period,
		now:    time.Now,
		log:    log.WithComponent("ratelimit"),
	}
}

// NewRedisClient builds a client for the limiter.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

// Allow trims entries older than the window, records this attempt and counts
// the window in one MULTI. Rejected attempts are removed again so they do not
// extend the window. The decision stands even if that removal fails.
func (l *RedisLimiter) Allow(ctx context.Context, id string) (Result, error) {
	now := l.now()
	nowMs := now.UnixMilli()
	windowStart := nowMs - l.period.Milliseconds()
	key := Key(id)
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()

	var card *redis.IntCmd
	var oldest *redis.ZSliceCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(windowStart, 10))
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(nowMs), Member: member})
		card = pipe.ZCard(ctx, key)
		oldest = pipe.ZRangeWithScores(ctx, key, 0, 0)
		pipe.PExpire(ctx, key, l.period)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("redis sliding window: %w", err)
	}

	count := int(card.Val())
	reset := now.Add(l.period)
	if zs := oldest.Val(); len(zs) > 0 {
		reset = time.UnixMilli(int64(zs[0].Score)).Add(l.period)
	}

	res := Result{Limit: l.limit, Reset: reset, Tier: TierRedis}
	if count > l.limit {
		if err := l.client.ZRem(ctx, key, member).Err(); err != nil {
			l.log.WithError(err).WithField("key", key).Warn("failed to remove rejected attempt")
		}
		return res, nil
	}

	res.Allowed = true
	res.Remaining = l.limit - count
	return res, nil
}

// Ping checks the Redis connection.
func (l *RedisLimiter) Ping(ctx context.Context) error {
	if err := l.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
