package websocket

import (
	"sync"
	"time"
)

// RateLimiter caps control frames per identity with a per-minute window.
type RateLimiter struct {
	mu        sync.Mutex
	perMinute int
	clients   map[int64]*clientLimit
}

type clientLimit struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter creates a limiter allowing perMinute frames per identity.
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		perMinute: perMinute,
		clients:   make(map[int64]*clientLimit),
	}
}

// Allow reports whether the identity may send another frame now.
func (rl *RateLimiter) Allow(identity int64) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	limit, exists := rl.clients[identity]
	if !exists {
		rl.clients[identity] = &clientLimit{count: 1, windowStart: now}
		return true
	}

	if now.Sub(limit.windowStart) >= time.Minute {
		limit.count = 1
		limit.windowStart = now
		return true
	}

	if limit.count >= rl.perMinute {
		return false
	}

	limit.count++
	return true
}

// Cleanup drops identities idle for several windows. Call periodically.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for identity, limit := range rl.clients {
		if now.Sub(limit.windowStart) > 5*time.Minute {
			delete(rl.clients, identity)
		}
	}
}
