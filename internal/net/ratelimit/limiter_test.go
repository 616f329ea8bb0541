package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestWaitPacesRequests(t *testing.T) {
	// 10 rps, burst 1: the first call is free, the next four must each
	// wait ~100ms
	l := New(10, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := l.Wait(ctx, "aggregates"); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	elapsed := time.Since(start)

	if elapsed < 350*time.Millisecond {
		t.Errorf("5 requests at 10 rps took %v, want >= ~400ms", elapsed)
	}
}

func TestWaitHonorsCancellation(t *testing.T) {
	l := New(1, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// Drain the bucket, then the second wait must fail with the deadline.
	if err := l.Wait(ctx, "snapshot"); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	if err := l.Wait(ctx, "snapshot"); err == nil {
		t.Error("expected context deadline error on second wait")
	}
}

func TestAllowConsumesToken(t *testing.T) {
	l := New(1, 1)
	if !l.Allow("price") {
		t.Fatal("first request should be allowed")
	}
	if l.Allow("price") {
		t.Error("second immediate request should be throttled")
	}

	stats := l.Stats()
	s, ok := stats["price"]
	if !ok {
		t.Fatal("missing endpoint stats")
	}
	if s.Requests != 1 || s.Throttled != 1 {
		t.Errorf("stats = %+v, want 1 request 1 throttled", s)
	}
}

func TestSetRPS(t *testing.T) {
	l := New(1, 1)
	l.SetRPS(1000)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	for i := 0; i < 10; i++ {
		if err := l.Wait(ctx, "x"); err != nil {
			t.Fatalf("wait after SetRPS: %v", err)
		}
	}
}
