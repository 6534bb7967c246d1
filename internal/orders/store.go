package orders

import "context"

// Store owns order persistence and the status/cancellation state
// machine. It is the only component permitted to mutate order state.
// Two backends implement it (DynamoDB and Postgres); everything else
// in the system is written against this interface and never branches
// on backend identity.
type Store interface {
	// Create validates the lines, computes the total, assigns id and
	// creation time, and persists the order as a single logical unit.
	// The order header must never become visible without its lines.
	Create(ctx context.Context, buyer Buyer, lines []Line) (*Order, error)

	// Get returns the order or ErrNotFound.
	Get(ctx context.Context, id string) (*Order, error)

	// List returns orders newest first, at most limit entries. When
	// ownerEmail is non-empty only orders whose buyer email matches
	// are returned.
	List(ctx context.Context, limit int, ownerEmail string) ([]Order, error)

	// UpdateStatus sets the status in a single atomic update and
	// returns the updated order, or ErrNotFound.
	UpdateStatus(ctx context.Context, id, status string) (*Order, error)

	// RequestCancellation moves the cancellation track to requested,
	// overwriting reason and timestamp if a request is already
	// pending. Returns ErrCancelConfirmed once the cancellation is
	// confirmed, or ErrNotFound.
	RequestCancellation(ctx context.Context, id, reason string) (*Order, error)

	// ConfirmCancellation moves requested -> confirmed. Any other
	// current state yields ErrCancelNotRequested, a missing order
	// ErrNotFound.
	ConfirmCancellation(ctx context.Context, id string) (*Order, error)

	// Delete removes the order unconditionally. Authorization is
	// enforced at the service boundary.
	Delete(ctx context.Context, id string) error
}

// Catalog resolves products for order-line validation and
// snapshotting. Missing products yield ErrNotFound.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
}
