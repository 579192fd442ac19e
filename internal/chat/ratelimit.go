package chat

import (
	"sync"
	"time"
)

// SlidingWindow rate-limits one session's messages: at most limit admitted
// messages within any trailing interval of length window.
//
// The reference behavior keeps the actual timestamps of admitted messages
// rather than a token bucket, so the bound is exact: on each candidate
// message, entries older than the window are evicted and the message is
// admitted only if fewer than limit remain. Memory is bounded at limit
// timestamps per session.
//
// Safe for concurrent use, although each instance is normally touched only by
// its session's read loop.
type SlidingWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	times  []time.Time

	// now is swappable so tests can drive the clock.
	now func() time.Time
}

// NewSlidingWindow creates a limiter admitting limit messages per window.
func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		limit:  limit,
		window: window,
		times:  make([]time.Time, 0, limit),
		now:    time.Now,
	}
}

// Allow records an attempt at the current time and reports whether the
// message is admitted. Rejected attempts are not recorded, so a throttled
// client does not extend its own penalty.
func (sw *SlidingWindow) Allow() bool {
	return sw.allowAt(sw.now())
}

func (sw *SlidingWindow) allowAt(t time.Time) bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	cutoff := t.Add(-sw.window)
	kept := sw.times[:0]
	for _, ts := range sw.times {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	sw.times = kept

	if len(sw.times) >= sw.limit {
		return false
	}
	sw.times = append(sw.times, t)
	return true
}
