package ratelimit

import (
	"sync"
	"time"
)

// Result of an admission check. RetryAfter is only meaningful when
// Allowed is false: the remaining window time in seconds, rounded up,
// at least 1.
type Result struct {
	Allowed    bool
	RetryAfter int
}

type window struct {
	count   int
	resetAt time.Time
}

// Limiter is a fixed-window request throttle keyed by (action, client
// address). It is a best-effort admission gate, not a precise token
// bucket: bursts at window boundaries may pass up to ~2x the nominal
// rate in exchange for O(1) memory per key and no timer goroutines.
//
// Construct one Limiter at startup and share it; all state lives in
// the mutex-guarded map.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	period  time.Duration
	maxKeys int
	nowFunc func() time.Time
}

// New returns a Limiter allowing limit calls per period for each key,
// holding at most maxKeys live windows.
func New(limit int, period time.Duration, maxKeys int) *Limiter {
	return &Limiter{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
		maxKeys: maxKeys,
		nowFunc: time.Now,
	}
}

// Check records one call for (action, addr) and reports whether it is
// admitted. The first call for a key, or any call after the window
// elapsed, opens a fresh window with count 1.
func (l *Limiter) Check(action, addr string) Result {
	now := l.nowFunc()
	key := action + "|" + addr

	l.mu.Lock()
	defer l.mu.Unlock()

	l.purge(now)

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		if !ok && len(l.windows) >= l.maxKeys {
			l.evict(len(l.windows) - l.maxKeys + 1)
		}
		l.windows[key] = &window{count: 1, resetAt: now.Add(l.period)}
		return Result{Allowed: true}
	}

	w.count++
	if w.count > l.limit {
		secs := int((w.resetAt.Sub(now) + time.Second - 1) / time.Second)
		if secs < 1 {
			secs = 1
		}
		return Result{Allowed: false, RetryAfter: secs}
	}
	return Result{Allowed: true}
}

// purge drops expired windows. Called on every check so memory stays
// bounded without a background sweeper. Callers hold l.mu.
func (l *Limiter) purge(now time.Time) {
	for k, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, k)
		}
	}
}

// evict removes n arbitrary entries when the key space still exceeds
// the ceiling after purging. The worst case is an under-throttled
// client, never a wrongly throttled one. Callers hold l.mu.
func (l *Limiter) evict(n int) {
	for k := range l.windows {
		if n <= 0 {
			return
		}
		delete(l.windows, k)
		n--
	}
}
