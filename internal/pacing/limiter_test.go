package pacing

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestNewRateLimiter(t *testing.T) {
	rl := NewRateLimiter(10)
	if rl.Rate() != 10 {
		t.Errorf("expected rate 10, got %v", rl.Rate())
	}
}

func TestRateLimiter_ZeroIsUnlimited(t *testing.T) {
	rl := NewRateLimiter(0)

	start := time.Now()
	for i := 0; i < 1000; i++ {
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("unlimited limiter should not block")
	}
}

func TestRateLimiter_ContextCancelled(t *testing.T) {
	rl := NewRateLimiter(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rl.Wait(ctx); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestRateLimiter_RateLimiting(t *testing.T) {
	rl := NewRateLimiter(20)
	ctx := context.Background()

	// drain the burst
	for i := 0; i < 20; i++ {
		_ = rl.Wait(ctx)
	}

	start := time.Now()
	for i := 0; i < 4; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("expected ~200ms for 4 sends at 20/s, got %v", elapsed)
	}
}

func TestRateLimiter_FractionalRate(t *testing.T) {
	rl := NewRateLimiter(0.5)
	if err := rl.Wait(context.Background()); err != nil {
		t.Errorf("expected the first send to be admitted immediately, got %v", err)
	}
}

func TestRateLimiter_SetRate(t *testing.T) {
	rl := NewRateLimiter(10)
	rl.SetRate(50)
	if rl.Rate() != 50 {
		t.Errorf("expected rate 50, got %v", rl.Rate())
	}
	rl.SetRate(0)
	if err := rl.Wait(context.Background()); err != nil {
		t.Errorf("unexpected error after disabling the cap: %v", err)
	}
}

func TestRateLimiter_ConcurrentWait(t *testing.T) {
	rl := NewRateLimiter(1000)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if err := rl.Wait(context.Background()); err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		}()
	}
	wg.Wait()
}
