package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestNewSlidingWindowCounter(t *testing.T) {
	t.Parallel()
	if NewSlidingWindowCounter(0, time.Hour) != nil {
		t.Error("expected nil for maxRequests <= 0")
	}
	if NewSlidingWindowCounter(10, time.Hour) == nil {
		t.Error("expected non-nil counter")
	}
}

func TestSlidingWindowCounter_Nil(t *testing.T) {
	t.Parallel()
	var swc *SlidingWindowCounter
	if !swc.Allow() || !swc.Check() || !swc.IsIdle() {
		t.Error("nil counter should allow and be idle")
	}
	swc.Consume()
	if swc.Remaining() != -1 {
		t.Errorf("Remaining() = %d, want -1", swc.Remaining())
	}
}

func TestSlidingWindowCounter_Allow(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	swc := newSlidingWindowCounter(5, time.Hour, clock.Now)

	for i := range 5 {
		if !swc.Allow() {
			t.Errorf("Allow() failed at request %d", i+1)
		}
	}
	if swc.Allow() {
		t.Error("Allow() passed when limit exceeded")
	}
	if swc.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", swc.Remaining())
	}
}

func TestSlidingWindowCounter_WeightedRotation(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	swc := newSlidingWindowCounter(10, time.Hour, clock.Now)

	for range 10 {
		swc.Allow()
	}

	// Half way into the next window half of the previous count still weighs in.
	clock.Advance(90 * time.Minute)
	if got := swc.Remaining(); got != 5 {
		t.Errorf("Remaining() = %d, want 5", got)
	}
	for i := range 5 {
		if !swc.Allow() {
			t.Fatalf("Allow() failed at request %d", i+1)
		}
	}
	if swc.Allow() {
		t.Error("weighted count should block the sixth request")
	}

	// Two full windows later nothing counts.
	clock.Advance(3 * time.Hour)
	if !swc.IsIdle() {
		t.Error("counter should be idle after two empty windows")
	}
	if got := swc.Remaining(); got != 10 {
		t.Errorf("Remaining() = %d, want 10", got)
	}
}

func TestSlidingWindowCounter_CheckConsume(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	swc := newSlidingWindowCounter(1, time.Hour, clock.Now)

	if !swc.Check() {
		t.Fatal("Check() = false on empty counter")
	}
	swc.Consume()
	if swc.Check() {
		t.Error("Check() = true after consuming the only slot")
	}
	swc.Consume()
	if swc.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", swc.Remaining())
	}
}

func TestSlidingWindowCounter_Concurrent(t *testing.T) {
	t.Parallel()
	swc := NewSlidingWindowCounter(100, time.Hour)

	var mu sync.Mutex
	allowed := 0
	var wg sync.WaitGroup
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if swc.Allow() {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 100 {
		t.Errorf("allowed = %d, want 100", allowed)
	}
}
