package dynamo

import (
	"context"
	"errors"
	"fmt"
	"io"
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

func newTestStore(mock *mockDynamo) *Store {
	s := NewStore(mock, "orders", testLogger())
	var seq int
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	s.idFunc = func() string {
		seq++
		return fmt.Sprintf("order-%d", seq)
	}
	s.nowFunc = func() time.Time {
		return base.Add(time.Duration(seq) * time.Minute)
	}
	return s
}

func testBuyer(email string) orders.Buyer {
	return orders.Buyer{UserID: "u-" + email, Name: "Budi", Email: email, Phone: "0812"}
}

func testLines() []orders.Line {
	return []orders.Line{
		{ProductID: "p1", Name: "Premium A", Duration: "30 days", Quantity: 2, UnitPrice: 10000},
		{ProductID: "p2", Name: "Premium B", Duration: "7 days", Quantity: 1, UnitPrice: 5000},
	}
}

func TestCreateAndGet(t *testing.T) {
	mock := newMockDynamo()
	store := newTestStore(mock)

	created, err := store.Create(context.Background(), testBuyer("budi@mail.test"), testLines())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if created.Total != 25000 {
		t.Fatalf("expected total 25000, got %d", created.Total)
	}
	if created.Status != orders.StatusNew || created.Cancel.Status != orders.CancelNone {
		t.Fatalf("unexpected initial state: %s / %s", created.Status, created.Cancel.Status)
	}

	got, err := store.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Total != created.Total || len(got.Lines) != 2 {
		t.Fatalf("roundtrip mismatch: total=%d lines=%d", got.Total, len(got.Lines))
	}
	if got.Buyer.Email != "budi@mail.test" {
		t.Fatalf("buyer snapshot lost: %+v", got.Buyer)
	}
}

func TestCreate_EmptyLines_NothingPersisted(t *testing.T) {
	mock := newMockDynamo()
	store := newTestStore(mock)

	_, err := store.Create(context.Background(), testBuyer("budi@mail.test"), nil)
	if !errors.Is(err, orders.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if len(mock.tables["orders"]) != 0 {
		t.Fatalf("expected nothing persisted, found %d items", len(mock.tables["orders"]))
	}
}

func TestGet_NotFound(t *testing.T) {
	store := newTestStore(newMockDynamo())
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, orders.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestList_OrderAndFilter(t *testing.T) {
	mock := newMockDynamo()
	store := newTestStore(mock)
	ctx := context.Background()

	if _, err := store.Create(ctx, testBuyer("a@mail.test"), testLines()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Create(ctx, testBuyer("b@mail.test"), testLines()); err != nil {
		t.Fatalf("create: %v", err)
	}
	third, err := store.Create(ctx, testBuyer("a@mail.test"), testLines())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	all, err := store.List(ctx, 10, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(all))
	}
	if all[0].ID != third.ID {
		t.Fatalf("expected newest first, got %s", all[0].ID)
	}

	mine, err := store.List(ctx, 10, "a@mail.test")
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 orders for a@mail.test, got %d", len(mine))
	}
	for _, o := range mine {
		if o.Buyer.Email != "a@mail.test" {
			t.Fatalf("filter leaked order for %s", o.Buyer.Email)
		}
	}

	capped, err := store.List(ctx, 1, "")
	if err != nil {
		t.Fatalf("list capped: %v", err)
	}
	if len(capped) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(capped))
	}
}

func TestUpdateStatus(t *testing.T) {
	mock := newMockDynamo()
	store := newTestStore(mock)
	ctx := context.Background()

	created, err := store.Create(ctx, testBuyer("budi@mail.test"), testLines())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := store.UpdateStatus(ctx, created.ID, orders.StatusProcess)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != orders.StatusProcess {
		t.Fatalf("expected process, got %s", updated.Status)
	}
	if updated.Total != created.Total {
		t.Fatalf("total changed on status update: %d", updated.Total)
	}

	if _, err := store.UpdateStatus(ctx, created.ID, "shipped"); !errors.Is(err, orders.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown status, got %v", err)
	}
	if _, err := store.UpdateStatus(ctx, "missing", orders.StatusDone); !errors.Is(err, orders.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCancellationLifecycle(t *testing.T) {
	mock := newMockDynamo()
	store := newTestStore(mock)
	ctx := context.Background()

	created, err := store.Create(ctx, testBuyer("budi@mail.test"), testLines())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// confirm before any request is a policy violation, not a crash
	if _, err := store.ConfirmCancellation(ctx, created.ID); !errors.Is(err, orders.ErrCancelNotRequested) {
		t.Fatalf("expected ErrCancelNotRequested, got %v", err)
	}

	requested, err := store.RequestCancellation(ctx, created.ID, "barang tidak sesuai harapan saya")
	if err != nil {
		t.Fatalf("request cancellation: %v", err)
	}
	if requested.Cancel.Status != orders.CancelRequested {
		t.Fatalf("expected requested, got %s", requested.Cancel.Status)
	}
	if requested.Cancel.RequestedAt == nil {
		t.Fatalf("requested_at not set")
	}

	// a repeat while pending overwrites the reason
	again, err := store.RequestCancellation(ctx, created.ID, "salah pilih paket langganan")
	if err != nil {
		t.Fatalf("repeat request: %v", err)
	}
	if again.Cancel.Reason != "salah pilih paket langganan" {
		t.Fatalf("expected reason overwrite, got %q", again.Cancel.Reason)
	}

	confirmed, err := store.ConfirmCancellation(ctx, created.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Cancel.Status != orders.CancelConfirmed || confirmed.Cancel.ConfirmedAt == nil {
		t.Fatalf("confirm state wrong: %+v", confirmed.Cancel)
	}

	// confirmed is terminal on both transitions
	if _, err := store.ConfirmCancellation(ctx, created.ID); !errors.Is(err, orders.ErrCancelNotRequested) {
		t.Fatalf("expected ErrCancelNotRequested on double confirm, got %v", err)
	}
	if _, err := store.RequestCancellation(ctx, created.ID, "coba batalkan lagi saja"); !errors.Is(err, orders.ErrCancelConfirmed) {
		t.Fatalf("expected ErrCancelConfirmed, got %v", err)
	}

	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Cancel.Status != orders.CancelConfirmed {
		t.Fatalf("cancel status moved backwards: %s", got.Cancel.Status)
	}
}

func TestRequestCancellation_Validation(t *testing.T) {
	store := newTestStore(newMockDynamo())
	if _, err := store.RequestCancellation(context.Background(), "any", "no"); !errors.Is(err, orders.ErrValidation) {
		t.Fatalf("expected ErrValidation for short reason, got %v", err)
	}
	if _, err := store.RequestCancellation(context.Background(), "missing", "reason long enough"); !errors.Is(err, orders.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	mock := newMockDynamo()
	store := newTestStore(mock)
	ctx := context.Background()

	created, err := store.Create(ctx, testBuyer("budi@mail.test"), testLines())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, created.ID); !errors.Is(err, orders.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestStorageFailureIsNotNotFound(t *testing.T) {
	mock := newMockDynamo()
	store := newTestStore(mock)

	mock.failNext = errors.New("connection reset")
	_, err := store.Get(context.Background(), "order-1")
	if err == nil || errors.Is(err, orders.ErrNotFound) {
		t.Fatalf("expected a storage error distinct from ErrNotFound, got %v", err)
	}
}
