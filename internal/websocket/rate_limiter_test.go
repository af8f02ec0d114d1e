package websocket

import (
	"testing"
	"time"
)

func TestRateLimiter_AllowsUpToLimit(t *testing.T) {
	limiter := NewRateLimiter(3)

	for i := 0; i < 3; i++ {
		if !limiter.Allow(5) {
			t.Fatalf("Frame %d unexpectedly blocked", i)
		}
	}
	if limiter.Allow(5) {
		t.Error("Frame over the limit must be blocked")
	}
}

func TestRateLimiter_IdentitiesAreIndependent(t *testing.T) {
	limiter := NewRateLimiter(1)

	if !limiter.Allow(5) {
		t.Fatal("First frame blocked")
	}
	if limiter.Allow(5) {
		t.Error("Second frame for the same identity must be blocked")
	}
	if !limiter.Allow(9) {
		t.Error("Another identity must have its own budget")
	}
}

func TestRateLimiter_WindowResets(t *testing.T) {
	limiter := NewRateLimiter(1)

	if !limiter.Allow(5) {
		t.Fatal("First frame blocked")
	}

	// Age the window past a minute.
	limiter.mu.Lock()
	limiter.clients[5].windowStart = limiter.clients[5].windowStart.Add(-2 * time.Minute)
	limiter.mu.Unlock()

	if !limiter.Allow(5) {
		t.Error("Frame in a fresh window must be allowed")
	}
}

func TestRateLimiter_CleanupDropsIdleIdentities(t *testing.T) {
	limiter := NewRateLimiter(3)

	limiter.Allow(5)
	limiter.Allow(9)

	// Age one identity past the idle cutoff.
	limiter.mu.Lock()
	limiter.clients[5].windowStart = limiter.clients[5].windowStart.Add(-10 * time.Minute)
	limiter.mu.Unlock()

	limiter.Cleanup()

	limiter.mu.Lock()
	_, stale := limiter.clients[5]
	_, active := limiter.clients[9]
	limiter.mu.Unlock()

	if stale {
		t.Error("Idle identity must be dropped by cleanup")
	}
	if !active {
		t.Error("Recently active identity must survive cleanup")
	}
}
