package worker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewLimiter(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(-1, 0)
	if l2.defaultRate != 1 {
		t.Errorf("expected default rate 1 for negative input, got %v", l2.defaultRate)
	}
	if l2.defaultBurst != 2 {
		t.Errorf("expected default burst 2 for zero input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "http://parliament.go.ke/bills"); err != nil {
		t.Errorf("wait failed: %v", err)
	}

	// A different host has its own bucket
	if err := limiter.Wait(ctx, "http://kenyalaw.org"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_Wait_InvalidURL(t *testing.T) {
	limiter := NewLimiter(100, 1)
	if err := limiter.Wait(context.Background(), "://missing-scheme"); err == nil {
		t.Error("expected error for invalid URL")
	}
}

func TestLimiter_RateLimitDelays(t *testing.T) {
	// 50 rps with burst 1: the second wait on the same host needs a
	// fresh token, which takes 20ms to mint
	limiter := NewLimiter(50, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "http://example.com/first"); err != nil {
		t.Fatalf("first wait failed: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx, "http://example.com/second"); err != nil {
		t.Fatalf("second wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("expected second wait on the same host to be delayed, took %v", elapsed)
	}
}

func TestLimiter_PerHostIsolation(t *testing.T) {
	limiter := NewLimiter(1, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "http://slow.example.com/a"); err != nil {
		t.Fatalf("wait failed: %v", err)
	}

	// slow.example.com's bucket is now empty; an unrelated host is not
	if limiter.hostLimiter("slow.example.com").Allow() {
		t.Error("expected slow.example.com tokens to be exhausted")
	}
	if !limiter.hostLimiter("kenyalaw.org").Allow() {
		t.Error("expected a fresh host to have tokens")
	}
}

func TestLimiter_WaitWithDelay(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	start := time.Now()
	err := limiter.WaitWithDelay(ctx, "http://example.com", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitWithDelay failed: %v", err)
	}

	duration := time.Since(start)
	if duration < 50*time.Millisecond {
		t.Errorf("expected delay >= 50ms, got %v", duration)
	}
}

func TestLimiter_WaitWithDelay_Cancelled(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := limiter.WaitWithDelay(ctx, "http://example.com", 10*time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
