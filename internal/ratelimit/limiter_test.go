package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func newTestLimiter(limit int, period time.Duration, maxKeys int) (*Limiter, *time.Time) {
	l := New(limit, period, maxKeys)
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	l.nowFunc = func() time.Time { return now }
	return l, &now
}

func TestCheck_WindowBoundary(t *testing.T) {
	l, now := newTestLimiter(3, time.Minute, 100)

	for i := 0; i < 3; i++ {
		if res := l.Check("create_order", "10.0.0.1"); !res.Allowed {
			t.Fatalf("call %d: expected allow", i+1)
		}
	}

	res := l.Check("create_order", "10.0.0.1")
	if res.Allowed {
		t.Fatalf("fourth call: expected deny")
	}
	if res.RetryAfter != 60 {
		t.Fatalf("expected retry after 60s, got %d", res.RetryAfter)
	}

	// a fresh window opens once the old one elapsed, counter reset to 1
	*now = now.Add(time.Minute)
	if res := l.Check("create_order", "10.0.0.1"); !res.Allowed {
		t.Fatalf("expected allow after window elapsed")
	}
	if res := l.Check("create_order", "10.0.0.1"); !res.Allowed {
		t.Fatalf("expected second call of new window to pass")
	}
}

func TestCheck_RetryAfterRoundsUp(t *testing.T) {
	l, now := newTestLimiter(1, time.Minute, 100)

	l.Check("otp", "10.0.0.2")
	*now = now.Add(59*time.Second + 500*time.Millisecond)

	res := l.Check("otp", "10.0.0.2")
	if res.Allowed {
		t.Fatalf("expected deny inside window")
	}
	if res.RetryAfter != 1 {
		t.Fatalf("expected retry after rounded up to 1, got %d", res.RetryAfter)
	}
}

func TestCheck_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute, 100)

	if res := l.Check("create_order", "10.0.0.1"); !res.Allowed {
		t.Fatalf("first key: expected allow")
	}
	if res := l.Check("create_order", "10.0.0.2"); !res.Allowed {
		t.Fatalf("different address must not share the window")
	}
	if res := l.Check("otp", "10.0.0.1"); !res.Allowed {
		t.Fatalf("different action must not share the window")
	}
	if res := l.Check("create_order", "10.0.0.1"); res.Allowed {
		t.Fatalf("same key second call: expected deny")
	}
}

func TestPurgeAndEviction(t *testing.T) {
	l, now := newTestLimiter(5, time.Minute, 3)

	l.Check("a", "1")
	l.Check("a", "2")
	l.Check("a", "3")
	if len(l.windows) != 3 {
		t.Fatalf("expected 3 windows, got %d", len(l.windows))
	}

	// at the ceiling a new key evicts an arbitrary old one
	l.Check("a", "4")
	if len(l.windows) != 3 {
		t.Fatalf("expected ceiling to hold, got %d windows", len(l.windows))
	}

	// expired windows are purged on the next check
	*now = now.Add(2 * time.Minute)
	l.Check("a", "5")
	if len(l.windows) != 1 {
		t.Fatalf("expected expired windows purged, got %d", len(l.windows))
	}
}

func TestCheck_Concurrent(t *testing.T) {
	l := New(50, time.Minute, 1000)

	var wg sync.WaitGroup
	allowed := make(chan bool, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- l.Check("create_order", "10.0.0.9").Allowed
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for ok := range allowed {
		if ok {
			count++
		}
	}
	if count != 50 {
		t.Fatalf("expected exactly 50 admitted under concurrency, got %d", count)
	}
}
