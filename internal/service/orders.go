package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rizalap/digishop/internal/orders"
)

// dispatcher is the slice of the fan-out dispatcher the service needs.
type dispatcher interface {
	Dispatch(ctx context.Context, evt orders.Event)
}

// RequestedLine is a cart entry as submitted by the buyer: a product
// reference and a quantity. Prices and names are never taken from the
// client; they are snapshotted from the live catalog.
type RequestedLine struct {
	ProductID string
	Quantity  int
}

// Orders is the only entry point the rest of the application uses to
// create or mutate orders. It applies authorization, validates carts
// against the live catalog, drives the store, and fans lifecycle
// events out after each successful mutation.
type Orders struct {
	store   orders.Store
	catalog orders.Catalog
	events  dispatcher
	log     *logrus.Logger
}

// NewOrders wires the order service.
func NewOrders(store orders.Store, catalog orders.Catalog, events dispatcher, log *logrus.Logger) *Orders {
	return &Orders{store: store, catalog: catalog, events: events, log: log}
}

// PlaceOrder validates every requested line against the catalog, fails
// the whole call on any missing or inactive product, snapshots the
// resolved products into order lines and creates the order. The
// order_created event is dispatched after the store write succeeds;
// sink outcomes never affect the returned order.
func (s *Orders) PlaceOrder(ctx context.Context, caller orders.Identity, requested []RequestedLine) (*orders.Order, error) {
	if len(requested) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one line", orders.ErrValidation)
	}

	lines := make([]orders.Line, 0, len(requested))
	for _, req := range requested {
		product, err := s.catalog.GetProduct(ctx, req.ProductID)
		if err != nil {
			if errors.Is(err, orders.ErrNotFound) {
				return nil, fmt.Errorf("%w: product %s is not available", orders.ErrValidation, req.ProductID)
			}
			return nil, err
		}
		if !product.IsActive {
			return nil, fmt.Errorf("%w: product %s is not available", orders.ErrValidation, req.ProductID)
		}
		lines = append(lines, orders.Line{
			ProductID: product.ID,
			Name:      product.Name,
			Duration:  product.Duration,
			Quantity:  req.Quantity,
			UnitPrice: product.UnitPrice,
		})
	}

	order, err := s.store.Create(ctx, caller.AsBuyer(), lines)
	if err != nil {
		return nil, err
	}

	s.events.Dispatch(ctx, orders.NewEvent(
		orders.EventOrderCreated, order, caller,
		fmt.Sprintf("new order %s", order.ID),
		fmt.Sprintf("total: %d", order.Total),
		fmt.Sprintf("lines: %d", len(order.Lines)),
	))
	return order, nil
}

// Get returns a single order, restricted to its buyer or an admin.
func (s *Orders) Get(ctx context.Context, caller orders.Identity, id string) (*orders.Order, error) {
	order, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && order.Buyer.Email != caller.Email {
		return nil, orders.ErrForbidden
	}
	return order, nil
}

// List returns orders newest first: all of them for admins, only the
// caller's own otherwise.
func (s *Orders) List(ctx context.Context, caller orders.Identity, limit int) ([]orders.Order, error) {
	ownerEmail := caller.Email
	if caller.IsAdmin() {
		ownerEmail = ""
	}
	return s.store.List(ctx, limit, ownerEmail)
}

// SetStatus updates the fulfillment status. Admins may set any status
// on any order; a buyer may only move their own order to process or
// error. Authorization runs before any store mutation.
func (s *Orders) SetStatus(ctx context.Context, caller orders.Identity, id, status string) (*orders.Order, error) {
	if !caller.IsAdmin() {
		if status != orders.StatusProcess && status != orders.StatusError {
			return nil, orders.ErrForbidden
		}
		if err := s.requireOwner(ctx, caller, id); err != nil {
			return nil, err
		}
	}

	order, err := s.store.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	s.events.Dispatch(ctx, orders.NewEvent(
		orders.EventStatusChanged, order, caller,
		fmt.Sprintf("order %s status set to %s", order.ID, order.Status),
	))
	return order, nil
}

// RequestCancellation opens (or re-opens) a cancellation request on
// behalf of the buyer or an admin.
func (s *Orders) RequestCancellation(ctx context.Context, caller orders.Identity, id, reason string) (*orders.Order, error) {
	if !caller.IsAdmin() {
		if err := s.requireOwner(ctx, caller, id); err != nil {
			return nil, err
		}
	}

	order, err := s.store.RequestCancellation(ctx, id, reason)
	if err != nil {
		return nil, err
	}

	s.events.Dispatch(ctx, orders.NewEvent(
		orders.EventCancelRequested, order, caller,
		fmt.Sprintf("cancellation requested for order %s", order.ID),
		fmt.Sprintf("reason: %s", order.Cancel.Reason),
	))
	return order, nil
}

// ConfirmCancellation approves a pending cancellation. Admin only.
func (s *Orders) ConfirmCancellation(ctx context.Context, caller orders.Identity, id string) (*orders.Order, error) {
	if !caller.IsAdmin() {
		return nil, orders.ErrForbidden
	}

	order, err := s.store.ConfirmCancellation(ctx, id)
	if err != nil {
		return nil, err
	}

	s.events.Dispatch(ctx, orders.NewEvent(
		orders.EventCancelConfirmed, order, caller,
		fmt.Sprintf("cancellation confirmed for order %s", order.ID),
	))
	return order, nil
}

// Delete removes an order unconditionally. Admin only. The order is
// read first so the activity event carries its snapshot.
func (s *Orders) Delete(ctx context.Context, caller orders.Identity, id string) error {
	if !caller.IsAdmin() {
		return orders.ErrForbidden
	}

	order, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.events.Dispatch(ctx, orders.NewEvent(
		orders.EventOrderDeleted, order, caller,
		fmt.Sprintf("order %s deleted", order.ID),
	))
	return nil
}

// requireOwner rejects callers acting on someone else's order before
// any store mutation happens.
func (s *Orders) requireOwner(ctx context.Context, caller orders.Identity, id string) error {
	order, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if order.Buyer.Email != caller.Email {
		return orders.ErrForbidden
	}
	return nil
}
