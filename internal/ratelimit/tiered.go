package ratelimit

import (
	"context"

	"btc-treasury-tracker/internal/logger"
	"btc-treasury-tracker/internal/observability"
	"btc-treasury-tracker/internal/storage"
)

// Tiered consults the durable limiter first and falls back to the in-process
// limiter on any error. Backend errors are logged, never returned.
type Tiered struct {
	durable Limiter // nil when not configured
	memory  *MemoryLimiter
	log     *logger.Entry
}

// NewTiered creates a Tiered limiter. durable may be nil.
func NewTiered(durable Limiter, memory *MemoryLimiter, log *logger.Log) *Tiered {
	return &Tiered{durable: durable, memory: memory, log: log.WithComponent("ratelimit")}
}

// Allow returns the admission decision for id.
func (t *Tiered) Allow(ctx context.Context, id string) Result {
	if t.durable != nil {
		res, err := t.durable.Allow(ctx, id)
		if err == nil {
			observability.RecordRateLimitDecision(res.Tier, res.Allowed)
			return res
		}
		t.log.WithError(err).WithField("client", id).Warn("durable rate limiter failed, using memory fallback")
	}

	res, _ := t.memory.Allow(ctx, id)
	observability.RecordRateLimitDecision(res.Tier, res.Allowed)
	return res
}

// DurablePinger returns the durable tier for health checks, or nil when it is
// not configured or cannot be pinged.
func (t *Tiered) DurablePinger() storage.Pinger {
	if p, ok := t.durable.(storage.Pinger); ok {
		return p
	}
	return nil
}
