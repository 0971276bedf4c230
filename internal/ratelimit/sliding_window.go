package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindowCounter approximates a rolling window with two fixed windows and
// a weighted average:
//
//	effective = current + previous × (time left in current window / window)
//
// It keeps O(1) state per key, which makes it suitable for long windows such as
// a daily AI quota where storing every timestamp would be wasteful.
// A nil counter is disabled and always allows.
type SlidingWindowCounter struct {
	mu              sync.Mutex
	currCount       int
	prevCount       int
	currWindowStart time.Time
	windowDuration  time.Duration
	maxRequests     int
	now             func() time.Time
}

// NewSlidingWindowCounter creates a counter allowing maxRequests per
// windowDuration. Returns nil if maxRequests <= 0 (disabled).
func NewSlidingWindowCounter(maxRequests int, windowDuration time.Duration) *SlidingWindowCounter {
	return newSlidingWindowCounter(maxRequests, windowDuration, time.Now)
}

func newSlidingWindowCounter(maxRequests int, windowDuration time.Duration, now func() time.Time) *SlidingWindowCounter {
	if maxRequests <= 0 {
		return nil
	}
	return &SlidingWindowCounter{
		currWindowStart: now(),
		windowDuration:  windowDuration,
		maxRequests:     maxRequests,
		now:             now,
	}
}

// Allow consumes one slot if the weighted count is under the limit.
func (swc *SlidingWindowCounter) Allow() bool {
	if swc == nil {
		return true
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()

	swc.rotate()
	if swc.weighted() >= float64(swc.maxRequests) {
		return false
	}
	swc.currCount++
	return true
}

// Check returns true if a request would be allowed (without consuming).
func (swc *SlidingWindowCounter) Check() bool {
	if swc == nil {
		return true
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()

	swc.rotate()
	return swc.weighted() < float64(swc.maxRequests)
}

// Consume increments the counter if still under the limit.
func (swc *SlidingWindowCounter) Consume() {
	if swc == nil {
		return
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()

	swc.rotate()
	if swc.weighted() < float64(swc.maxRequests) {
		swc.currCount++
	}
}

// rotate moves to the window containing now. Must be called with mu held.
func (swc *SlidingWindowCounter) rotate() {
	elapsed := swc.now().Sub(swc.currWindowStart)
	if elapsed < swc.windowDuration {
		return
	}

	windowsPassed := int(elapsed / swc.windowDuration)
	if windowsPassed == 1 {
		swc.prevCount = swc.currCount
	} else {
		// The previous window is older than one full window and no longer counts.
		swc.prevCount = 0
	}
	swc.currCount = 0
	swc.currWindowStart = swc.currWindowStart.Add(time.Duration(windowsPassed) * swc.windowDuration)
}

// weighted returns the effective count. Must be called with mu held.
func (swc *SlidingWindowCounter) weighted() float64 {
	elapsed := swc.now().Sub(swc.currWindowStart)

	overlap := float64(swc.windowDuration-elapsed) / float64(swc.windowDuration)
	overlap = min(max(overlap, 0), 1)

	return float64(swc.currCount) + float64(swc.prevCount)*overlap
}

// Remaining returns the approximate remaining quota, or -1 when disabled.
func (swc *SlidingWindowCounter) Remaining() int {
	if swc == nil {
		return -1
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()

	swc.rotate()
	remaining := float64(swc.maxRequests) - swc.weighted()
	if remaining < 0 {
		return 0
	}
	return int(remaining)
}

// IsIdle reports whether nothing is counted in either window.
func (swc *SlidingWindowCounter) IsIdle() bool {
	if swc == nil {
		return true
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()

	swc.rotate()
	return swc.weighted() == 0
}
