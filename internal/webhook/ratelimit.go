package webhook

import (
	"sync"
	"time"
)

// rateLimiter is a per-source sliding-window counter.
type rateLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	hits    map[string][]time.Time
	nowFunc func() time.Time
}

func newRateLimiter(limitPerMinute int) *rateLimiter {
	return &rateLimiter{
		limit:   limitPerMinute,
		window:  time.Minute,
		hits:    map[string][]time.Time{},
		nowFunc: time.Now,
	}
}

// Allow records one hit for source and reports whether it stays within
// the window limit.
func (rl *rateLimiter) Allow(source string) bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.nowFunc()
	cutoff := now.Add(-rl.window)
	kept := rl.hits[source][:0]
	for _, t := range rl.hits[source] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= rl.limit {
		rl.hits[source] = kept
		return false
	}
	rl.hits[source] = append(kept, now)
	return true
}
