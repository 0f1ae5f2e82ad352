package signal

import (
	"sync"
	"time"

	"github.com/vkondrav/pigeon/internal/domain"
)

const (
	defaultEventLimit  = 120
	defaultEventWindow = 10 * time.Second
)

// RateLimiter is a per-user sliding window over signaling events.
type RateLimiter struct {
	mu       sync.Mutex
	history  map[domain.UserID][]time.Time
	limit    int
	interval time.Duration
}

func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		history:  make(map[domain.UserID][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *RateLimiter) Allow(uid domain.UserID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[uid]
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[uid] = fresh
		return false
	}

	fresh = append(fresh, now)
	rl.history[uid] = fresh
	return true
}

// Forget drops a user's window, typically on disconnect.
func (rl *RateLimiter) Forget(uid domain.UserID) {
	rl.mu.Lock()
	delete(rl.history, uid)
	rl.mu.Unlock()
}
