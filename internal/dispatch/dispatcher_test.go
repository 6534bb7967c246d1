package dispatch

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rizalap/digishop/internal/orders"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type fakeSink struct {
	mu      sync.Mutex
	name    string
	accepts func(string) bool
	err     error
	panics  bool
	seen    []string
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Accepts(kind string) bool {
	if f.accepts == nil {
		return true
	}
	return f.accepts(kind)
}

func (f *fakeSink) Handle(_ context.Context, evt orders.Event) error {
	if f.panics {
		panic("sink blew up")
	}
	f.mu.Lock()
	f.seen = append(f.seen, evt.Kind)
	f.mu.Unlock()
	return f.err
}

func (f *fakeSink) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.seen))
	copy(out, f.seen)
	return out
}

func testEvent(kind string) orders.Event {
	o := &orders.Order{
		ID:        "order-1",
		Buyer:     orders.Buyer{UserID: "u1", Name: "Budi", Email: "budi@mail.test", Phone: "0812"},
		Total:     25000,
		CreatedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	actor := orders.Identity{UserID: "u1", Name: "Budi", Email: "budi@mail.test"}
	evt := orders.NewEvent(kind, o, actor, "order placed")
	evt.OccurredAt = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return evt
}

func TestDispatch_AllSinksRun(t *testing.T) {
	a := &fakeSink{name: "a"}
	b := &fakeSink{name: "b"}
	d := New(testLogger(), a, b)

	d.Dispatch(context.Background(), testEvent(orders.EventOrderCreated))

	if len(a.kinds()) != 1 || len(b.kinds()) != 1 {
		t.Fatalf("expected both sinks invoked, got a=%v b=%v", a.kinds(), b.kinds())
	}
}

func TestDispatch_FailureAndPanicDoNotStopOthers(t *testing.T) {
	failing := &fakeSink{name: "failing", err: errors.New("downstream unavailable")}
	panicking := &fakeSink{name: "panicking", panics: true}
	healthy := &fakeSink{name: "healthy"}
	d := New(testLogger(), failing, panicking, healthy)

	// must neither panic nor surface any sink error
	d.Dispatch(context.Background(), testEvent(orders.EventOrderCreated))

	if len(healthy.kinds()) != 1 {
		t.Fatalf("healthy sink starved by a failing sibling: %v", healthy.kinds())
	}
}

func TestDispatch_RoutesByAccepts(t *testing.T) {
	createdOnly := &fakeSink{
		name:    "created-only",
		accepts: func(kind string) bool { return kind == orders.EventOrderCreated },
	}
	everything := &fakeSink{name: "everything"}
	d := New(testLogger(), createdOnly, everything)

	d.Dispatch(context.Background(), testEvent(orders.EventOrderCreated))
	d.Dispatch(context.Background(), testEvent(orders.EventStatusChanged))
	d.Dispatch(context.Background(), testEvent(orders.EventCancelRequested))

	if got := createdOnly.kinds(); len(got) != 1 || got[0] != orders.EventOrderCreated {
		t.Fatalf("expected only order_created, got %v", got)
	}
	if got := everything.kinds(); len(got) != 3 {
		t.Fatalf("expected all 3 events, got %v", got)
	}
}

func TestDispatch_WaitsForSettlement(t *testing.T) {
	done := make(chan struct{})
	slow := &slowSink{release: done}
	d := New(testLogger(), slow)

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(done)
	}()
	d.Dispatch(context.Background(), testEvent(orders.EventOrderCreated))

	select {
	case <-done:
	default:
		t.Fatalf("Dispatch returned before the sink settled")
	}
}

type slowSink struct {
	release chan struct{}
}

func (s *slowSink) Name() string        { return "slow" }
func (s *slowSink) Accepts(string) bool { return true }

func (s *slowSink) Handle(context.Context, orders.Event) error {
	<-s.release
	return nil
}
