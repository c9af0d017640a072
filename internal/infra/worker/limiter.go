package worker

import (
	"sync"
	"time"
)

// WindowLimiter admits at most max events in any trailing window.
// It keeps the start time of each admitted event, so unlike a token bucket
// it never lets a burst exceed max inside one window.
type WindowLimiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	starts []time.Time
}

func NewWindowLimiter(max int, window time.Duration) *WindowLimiter {
	if max <= 0 {
		max = 1
	}
	return &WindowLimiter{max: max, window: window, starts: make([]time.Time, 0, max)}
}

func (l *WindowLimiter) evict(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.starts) && !l.starts[i].After(cutoff) {
		i++
	}
	l.starts = l.starts[i:]
}

// Ready reports whether an event could be admitted at now without recording it.
func (l *WindowLimiter) Ready(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(now)
	return len(l.starts) < l.max
}

// Allow records an event at now if the window has room.
func (l *WindowLimiter) Allow(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(now)
	if len(l.starts) >= l.max {
		return false
	}
	l.starts = append(l.starts, now)
	return true
}

// NextAt returns when the next event may be admitted.
func (l *WindowLimiter) NextAt(now time.Time) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(now)
	if len(l.starts) < l.max {
		return now
	}
	return l.starts[0].Add(l.window)
}
