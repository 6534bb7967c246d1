package orders

import "errors"

// Error taxonomy for the order core. Callers distinguish these with
// errors.Is so the HTTP layer can map them to distinct responses:
// validation and policy violations are user-facing rejections, not
// found is its own class, and anything else is a storage failure the
// caller may retry.
var (
	// ErrValidation marks malformed or out-of-range client input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when an order or product id does not
	// resolve.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the caller is not allowed to act
	// on the target order.
	ErrForbidden = errors.New("forbidden")

	// ErrCancelConfirmed rejects a cancellation request against an
	// order whose cancellation is already confirmed.
	ErrCancelConfirmed = errors.New("cancellation already confirmed")

	// ErrCancelNotRequested rejects a confirmation when no request is
	// pending.
	ErrCancelNotRequested = errors.New("no pending cancellation request")
)
