package dispatch

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rizalap/digishop/internal/orders"
)

var ledgerHeader = []string{
	"order_id", "created_at", "user_name", "user_email", "user_phone",
	"product_name", "quantity", "unit_price", "order_total",
}

// Ledger appends one CSV row per order line to a durable append-only
// file. The header is written once, when the file is created empty.
// Appends are serialized with a mutex; concurrent appends from other
// processes are out of scope (single-writer assumption).
type Ledger struct {
	mu   sync.Mutex
	path string
}

// NewLedger returns a ledger sink writing to path.
func NewLedger(path string) *Ledger {
	return &Ledger{path: path}
}

func (l *Ledger) Name() string { return "ledger" }

// Accepts routes only order creations to the ledger.
func (l *Ledger) Accepts(kind string) bool { return kind == orders.EventOrderCreated }

// Handle appends the event's order to the ledger file.
func (l *Ledger) Handle(_ context.Context, evt orders.Event) error {
	if evt.Order == nil {
		return fmt.Errorf("ledger: %s event without order", evt.Kind)
	}
	return l.Append(evt.Order)
}

// Append writes one row per order line, creating the file with its
// header on first use.
func (l *Ledger) Append(o *orders.Order) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat ledger: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(ledgerHeader); err != nil {
			return fmt.Errorf("write ledger header: %w", err)
		}
	}

	createdAt := o.CreatedAt.Format(time.RFC3339)
	for _, line := range o.Lines {
		row := []string{
			o.ID,
			createdAt,
			o.Buyer.Name,
			o.Buyer.Email,
			o.Buyer.Phone,
			line.Name,
			strconv.Itoa(line.Quantity),
			strconv.FormatInt(line.UnitPrice, 10),
			strconv.FormatInt(o.Total, 10),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write ledger row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}
	return nil
}
