// Package ratelimit gates per-connection message rates over a sliding
// window: at most limit admissions within any trailing window, not per
// calendar bucket.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter tracks recent admission times per connection. Entries outside
// the window are pruned lazily on the next Admit for that connection;
// Reset on disconnect bounds worst-case growth.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string][]time.Time
}

// NewLimiter creates a limiter allowing limit admissions per trailing
// window.
func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  window,
		windows: make(map[string][]time.Time),
	}
}

// Admit records an attempt at the given instant and reports whether it
// is within budget. Denied attempts are not recorded: a blocked sender
// does not lose future budget for being blocked.
func (l *Limiter) Admit(connID string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.prune(l.windows[connID], now)

	if len(recent) >= l.limit {
		l.windows[connID] = recent
		return false
	}

	l.windows[connID] = append(recent, now)
	return true
}

// Remaining reports how much budget is left at the given instant,
// without consuming any. Used for the retry hint on rate-limit errors.
func (l *Limiter) Remaining(connID string, now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.prune(l.windows[connID], now)
	l.windows[connID] = recent

	if left := l.limit - len(recent); left > 0 {
		return left
	}
	return 0
}

// Reset clears all state for a connection. Called on disconnect so the
// map cannot grow past the set of live connections.
func (l *Limiter) Reset(connID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, connID)
}

// prune drops timestamps older than the trailing window. The slice is
// append-ordered, so the first surviving entry bounds the copy.
func (l *Limiter) prune(window []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(window) && !window[i].After(cutoff) {
		i++
	}
	return window[i:]
}
