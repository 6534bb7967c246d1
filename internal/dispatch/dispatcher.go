package dispatch

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rizalap/digishop/internal/orders"
)

// Sink is a downstream consumer of a lifecycle event. Sinks are
// independent and best-effort: a sink's failure is logged and
// swallowed, never propagated to the caller and never allowed to
// affect another sink.
type Sink interface {
	Name() string
	// Accepts filters event kinds before a goroutine is spent on the
	// sink. The ledger and metrics sinks only take order_created;
	// the chat sink takes every activity.
	Accepts(kind string) bool
	Handle(ctx context.Context, evt orders.Event) error
}

// Dispatcher fans one lifecycle event out to all applicable sinks
// concurrently and waits for every one of them to settle. By the time
// Dispatch is called the order mutation is already committed, so sink
// outcomes must not reach the caller's control flow; waiting for
// settlement (instead of true fire-and-forget) keeps test behavior
// deterministic and stops process shutdown from abandoning in-flight
// sink calls.
type Dispatcher struct {
	sinks []Sink
	log   *logrus.Logger
}

// New returns a Dispatcher over a fixed set of sinks.
func New(log *logrus.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks, log: log}
}

// Dispatch runs each accepting sink in its own goroutine and returns
// once all have completed or failed. It never returns an error and
// never panics, whatever the sinks do.
func (d *Dispatcher) Dispatch(ctx context.Context, evt orders.Event) {
	var wg sync.WaitGroup
	for _, s := range d.sinks {
		if !s.Accepts(evt.Kind) {
			continue
		}
		wg.Add(1)
		go func(s Sink) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					d.log.Errorf("sink %s panicked on %s event: %v", s.Name(), evt.Kind, r)
				}
			}()
			if err := s.Handle(ctx, evt); err != nil {
				d.log.Errorf("sink %s failed on %s event: %v", s.Name(), evt.Kind, err)
			}
		}(s)
	}
	wg.Wait()
}
