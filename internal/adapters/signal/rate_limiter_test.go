package signal

import (
	"fmt"
	"testing"
	"time"

	"github.com/dkeye/CineMatch/internal/domain"
)

func TestLikeRateLimiterWindow(t *testing.T) {
	t.Parallel()

	rl := NewLikeRateLimiter(2, time.Minute)
	now := time.Date(2026, time.October, 15, 20, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("u1") || !rl.Allow("u1") {
		t.Fatalf("first two likes rejected")
	}
	if rl.Allow("u1") {
		t.Fatalf("third like inside the window allowed")
	}
	if !rl.Allow("u2") {
		t.Fatalf("limit leaked across identities")
	}

	now = now.Add(time.Minute + time.Second)
	if !rl.Allow("u1") {
		t.Fatalf("like after the window rejected")
	}
}

func TestLikeRateLimiterDisabled(t *testing.T) {
	t.Parallel()

	rl := NewLikeRateLimiter(0, time.Second)
	if rl != nil {
		t.Fatalf("limiter = %v, want nil", rl)
	}
	for range 100 {
		if !rl.Allow("u1") {
			t.Fatalf("disabled limiter rejected a like")
		}
	}
}

func TestLikeRateLimiterForgetsIdleIdentities(t *testing.T) {
	t.Parallel()

	rl := NewLikeRateLimiter(1, time.Minute)
	now := time.Date(2026, time.October, 15, 20, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := range 50 {
		rl.Allow(domain.UserID(fmt.Sprintf("u%d", i)))
	}
	if got := rl.size(); got != 50 {
		t.Fatalf("tracked identities = %d, want 50", got)
	}

	now = now.Add(2 * time.Minute)
	if !rl.Allow("fresh") {
		t.Fatalf("like from a new identity rejected")
	}
	if got := rl.size(); got != 1 {
		t.Fatalf("tracked identities = %d, want 1", got)
	}
}
