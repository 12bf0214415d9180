// Package ratelimit implements admission control for job submissions.
//
// The limiter counts requests per (bucket, identity) key in fixed windows.
// Fixed-window counting allows bursts across window boundaries; that is an
// accepted trade-off of this scheme and intentionally preserved.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Key identifies one rate-limited counter: a named bucket (the operation
// being limited, e.g. "submit") scoped per client identity.
type Key struct {
	Bucket   string
	Identity string
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long the caller should wait before retrying,
// rounded up to whole seconds and never less than one second.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait <= 0 {
		return time.Second
	}
	return wait.Round(time.Second) + time.Second
}

// Limiter gatekeeps submissions. Check never fails: backends that can error
// (e.g. Redis) fail open and log rather than block admission on an outage.
type Limiter interface {
	Check(ctx context.Context, key Key) Decision
}

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is the single-process Limiter. Counters live in memory and
// reset on restart, which is correct for rate-limit state (no durability
// requirement). Multi-instance deployments need the Redis limiter instead,
// otherwise each instance enforces its own budget.
type MemoryLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	entries   map[Key]*window
	lastSweep time.Time

	// now is swappable for tests.
	now func() time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

// sweepInterval bounds how often expired windows are garbage-collected.
const sweepInterval = 5 * time.Minute

// NewMemoryLimiter creates an in-memory fixed-window limiter allowing
// limit requests per key per windowDuration.
func NewMemoryLimiter(limit int, windowDuration time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  windowDuration,
		entries: make(map[Key]*window),
		now:     time.Now,
	}
}

// Check atomically counts a request against the key's current window.
// Concurrent calls for the same key observe a serialized count.
func (l *MemoryLimiter) Check(_ context.Context, key Key) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	w, ok := l.entries[key]
	if !ok || now.After(w.resetAt) {
		// New window: count restarts at 1.
		w = &window{count: 1, resetAt: now.Add(l.window)}
		l.entries[key] = w
		return Decision{Allowed: true, Remaining: l.limit - 1, ResetAt: w.resetAt}
	}

	if w.count >= l.limit {
		return Decision{Allowed: false, Remaining: 0, ResetAt: w.resetAt}
	}

	w.count++
	return Decision{Allowed: true, Remaining: l.limit - w.count, ResetAt: w.resetAt}
}

// sweep drops expired windows. Called with the lock held; runs at most once
// per sweepInterval so Check stays O(1) in the common case.
func (l *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < sweepInterval {
		return
	}
	l.lastSweep = now
	for key, w := range l.entries {
		if now.After(w.resetAt) {
			delete(l.entries, key)
		}
	}
}
