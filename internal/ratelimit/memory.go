package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// window is the per-identifier fixed-window state.
type window struct {
	count int
	reset time.Time
}

// MemoryLimiter is a per-process fixed-window limiter. Expired windows are
// swept by the go-cache janitor on its own interval.
type MemoryLimiter struct {
	mu     sync.Mutex
	limit  int
	period time.Duration
	store  *cache.Cache
	now    func() time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter creates a limiter admitting limit requests per period.
func NewMemoryLimiter(limit int, period, cleanupInterval time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:  limit,
		period: period,
		store:  cache.New(period, cleanupInterval),
		now:    time.Now,
	}
}

// Allow never returns an error.
func (m *MemoryLimiter) Allow(_ context.Context, id string) (Result, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	var w *window
	if v, ok := m.store.Get(id); ok {
		w = v.(*window)
	}
	if w == nil || !now.Before(w.reset) {
		w = &window{reset: now.Add(m.period)}
		m.store.Set(id, w, m.period)
	}

	res := Result{Limit: m.limit, Reset: w.reset, Tier: TierMemory}
	if w.count >= m.limit {
		return res, nil
	}
	w.count++
	res.Allowed = true
	res.Remaining = m.limit - w.count
	return res, nil
}

// tracked returns the number of identifiers with a live window.
func (m *MemoryLimiter) tracked() int {
	return m.store.ItemCount()
}
