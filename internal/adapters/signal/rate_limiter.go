package signal

import (
	"sync"
	"time"

	"github.com/dkeye/CineMatch/internal/domain"
)

// LikeRateLimiter is a sliding-window limit on like events per identity,
// shared by every connection of that identity.
type LikeRateLimiter struct {
	mu       sync.Mutex
	history  map[domain.UserID][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
	swept    time.Time
}

// NewLikeRateLimiter returns nil when limit is not positive, which disables
// limiting.
func NewLikeRateLimiter(limit int, interval time.Duration) *LikeRateLimiter {
	if limit <= 0 || interval <= 0 {
		return nil
	}
	return &LikeRateLimiter{
		history:  make(map[domain.UserID][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *LikeRateLimiter) Allow(uid domain.UserID) bool {
	if rl == nil {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)
	if now.Sub(rl.swept) >= rl.interval {
		rl.sweep(windowStart)
		rl.swept = now
	}

	attempts := rl.history[uid]
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= rl.limit {
		rl.history[uid] = fresh
		return false
	}
	rl.history[uid] = append(fresh, now)
	return true
}

// sweep forgets identities whose newest attempt left the window.
func (rl *LikeRateLimiter) sweep(windowStart time.Time) {
	for uid, attempts := range rl.history {
		if len(attempts) == 0 || !attempts[len(attempts)-1].After(windowStart) {
			delete(rl.history, uid)
		}
	}
}

func (rl *LikeRateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.history)
}
