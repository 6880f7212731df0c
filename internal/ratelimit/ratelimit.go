// Package ratelimit implements two-tier admission control for the public API:
// a Redis sliding window with an in-process fixed-window fallback.
package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"
)

// Namespace is the Redis key prefix for limiter state.
const Namespace = "btctracker"

// Tier labels.
const (
	TierRedis  = "redis"
	TierMemory = "memory"
)

// AnonymousID is used when a request carries no client address headers.
const AnonymousID = "anonymous"

// Result is the outcome of one admission check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
	Tier      string
}

// RetryAfter returns whole seconds until Reset, rounded up, at least 1.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(math.Ceil(r.Reset.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Limiter admits or rejects one request for an identifier.
type Limiter interface {
	Allow(ctx context.Context, id string) (Result, error)
}

// ClientIdentifier derives the limiter key from proxy headers: the first
// X-Forwarded-For entry, else X-Real-IP, else AnonymousID.
func ClientIdentifier(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return AnonymousID
}

// Key returns the namespaced Redis key for an identifier.
func Key(id string) string {
	return Namespace + ":ratelimit:" + id
}
