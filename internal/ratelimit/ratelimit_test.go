package ratelimit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"reelsmith/internal/ratelimit"
)

func TestCeilingWithinWindow(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter := ratelimit.New(3, ratelimit.WithClock(func() time.Time { return current }))

	for i := 0; i < 3; i++ {
		current = current.Add(200 * time.Millisecond)
		if !limiter.Admit() {
			t.Fatalf("admission %d within capacity should succeed", i+1)
		}
	}
	if limiter.Admit() {
		t.Fatal("4th admission inside the window should fail")
	}

	current = current.Add(61 * time.Second)
	if !limiter.Admit() {
		t.Fatal("admission after the window elapsed should succeed")
	}
}

func TestEvictionIsIncremental(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter := ratelimit.New(2, ratelimit.WithClock(func() time.Time { return current }))

	if !limiter.Admit() {
		t.Fatal("first admission")
	}
	current = current.Add(30 * time.Second)
	if !limiter.Admit() {
		t.Fatal("second admission")
	}
	if limiter.Admit() {
		t.Fatal("window full")
	}
	// Only the first stamp has aged out at +70s.
	current = current.Add(40 * time.Second)
	if !limiter.Admit() {
		t.Fatal("one slot should have freed")
	}
	if limiter.Admit() {
		t.Fatal("second stamp still inside window")
	}
}

func TestConcurrentAdmitNeverOverAdmits(t *testing.T) {
	limiter := ratelimit.New(5)
	var admitted int32
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Admit() {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if admitted != 5 {
		t.Fatalf("admitted %d, want exactly 5", admitted)
	}
}

func TestWaitHonorsCancellation(t *testing.T) {
	limiter := ratelimit.New(1, ratelimit.WithPollInterval(10*time.Millisecond))
	if !limiter.Admit() {
		t.Fatal("first admission")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := limiter.Wait(ctx); err == nil {
		t.Fatal("Wait should return the context error when capacity never frees")
	}
}

func TestWaitReturnsWhenCapacityFrees(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	limiter := ratelimit.New(1, ratelimit.WithClock(now), ratelimit.WithPollInterval(5*time.Millisecond))
	if !limiter.Admit() {
		t.Fatal("first admission")
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		current = current.Add(2 * time.Minute)
		mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}
