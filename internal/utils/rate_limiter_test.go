package utils

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterBurst(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	if !rl.Allow() || !rl.Allow() {
		t.Fatal("expected the burst to be allowed")
	}
	if rl.Allow() {
		t.Error("expected the third request to be limited")
	}
}

func TestRateLimiterUnlimited(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		if !rl.Allow() {
			t.Fatalf("request %d limited by an unlimited limiter", i)
		}
	}
}

func TestRateLimiterWaitHonoursContext(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	rl.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); err == nil {
		t.Error("expected Wait to fail once the context expires")
	}
}
