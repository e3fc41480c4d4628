package room

import (
	"testing"
	"time"
)

func TestRateLimiterZeroLimitAllowsAll(t *testing.T) {
	rl := newRateLimiter(0, time.Minute)
	now := time.Now()
	for i := 0; i < 1000; i++ {
		if !rl.allow(now) {
			t.Fatal("zero limit must never block")
		}
	}
}

func TestRateLimiterBlocksOverLimit(t *testing.T) {
	rl := newRateLimiter(3, time.Minute)
	now := time.Now()

	for i := 0; i < 3; i++ {
		if !rl.allow(now) {
			t.Fatalf("call %d should be allowed", i)
		}
	}
	if rl.allow(now) {
		t.Fatal("fourth call in the window must be blocked")
	}
}

func TestRateLimiterResetsAfterWindow(t *testing.T) {
	rl := newRateLimiter(1, 10*time.Millisecond)
	now := time.Now()

	if !rl.allow(now) {
		t.Fatal("first call should pass")
	}
	if rl.allow(now) {
		t.Fatal("second call in the same window must be blocked")
	}
	if !rl.allow(now.Add(20 * time.Millisecond)) {
		t.Fatal("a new window must reset the counter")
	}
}
