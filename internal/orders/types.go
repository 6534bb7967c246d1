package orders

import (
	"fmt"
	"strings"
	"time"
)

// Order statuses. StatusNew is the only state assigned at creation;
// the remaining states describe fulfillment outcome and may be set in
// any order by an authorized actor.
const (
	StatusNew     = "new"
	StatusProcess = "process"
	StatusDone    = "done"
	StatusError   = "error"
)

// Cancellation request states. Transitions are strictly
// none -> requested -> confirmed; confirmed is terminal.
const (
	CancelNone      = "none"
	CancelRequested = "requested"
	CancelConfirmed = "confirmed"
)

// Line quantity bounds and the minimum cancellation reason length.
const (
	MinQuantity     = 1
	MaxQuantity     = 99
	MinReasonLength = 5
)

// ValidStatus reports whether s is one of the defined order statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusNew, StatusProcess, StatusDone, StatusError:
		return true
	}
	return false
}

// Buyer is a snapshot of the purchasing identity captured at order
// time. Later profile edits must not alter historical orders.
type Buyer struct {
	UserID string `json:"user_id" dynamodbav:"user_id"`
	Name   string `json:"name" dynamodbav:"name"`
	Email  string `json:"email" dynamodbav:"email"`
	Phone  string `json:"phone" dynamodbav:"phone"`
}

// Line is a snapshot of one product captured at order time. Product
// edits or deletions after creation never change stored line data.
type Line struct {
	ProductID string `json:"product_id" dynamodbav:"product_id"`
	Name      string `json:"name" dynamodbav:"name"`
	Duration  string `json:"duration" dynamodbav:"duration"`
	Quantity  int    `json:"quantity" dynamodbav:"quantity"`
	UnitPrice int64  `json:"unit_price" dynamodbav:"unit_price"`
}

// CancelRequest tracks the two-phase cancellation workflow. It is a
// state track independent of Order.Status: a confirmed cancellation
// voids the order regardless of its fulfillment status.
type CancelRequest struct {
	Status      string     `json:"status"`
	Reason      string     `json:"reason,omitempty"`
	RequestedAt *time.Time `json:"requested_at,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// Order is the aggregate owned by the order store. Lines and Total are
// fixed at creation.
type Order struct {
	ID        string        `json:"id"`
	Buyer     Buyer         `json:"buyer"`
	Lines     []Line        `json:"lines"`
	Total     int64         `json:"total"`
	Status    string        `json:"status"`
	Cancel    CancelRequest `json:"cancel_request"`
	CreatedAt time.Time     `json:"created_at"`
}

// Cancelled reports whether the order must be treated as void.
func (o *Order) Cancelled() bool {
	return o.Cancel.Status == CancelConfirmed
}

// LinesTotal sums unit price times quantity over all lines.
func LinesTotal(lines []Line) int64 {
	var total int64
	for _, l := range lines {
		total += l.UnitPrice * int64(l.Quantity)
	}
	return total
}

// ValidateLines checks the creation preconditions shared by all store
// backends: at least one line, quantity within bounds, price not
// negative. Violations are reported as ErrValidation.
func ValidateLines(lines []Line) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: order must contain at least one line", ErrValidation)
	}
	for i, l := range lines {
		if l.ProductID == "" {
			return fmt.Errorf("%w: line %d: missing product id", ErrValidation, i)
		}
		if l.Quantity < MinQuantity || l.Quantity > MaxQuantity {
			return fmt.Errorf("%w: line %d: quantity must be between %d and %d", ErrValidation, i, MinQuantity, MaxQuantity)
		}
		if l.UnitPrice < 0 {
			return fmt.Errorf("%w: line %d: unit price cannot be negative", ErrValidation, i)
		}
	}
	return nil
}

// ValidateReason checks a cancellation reason against the minimum
// length policy.
func ValidateReason(reason string) error {
	if len(strings.TrimSpace(reason)) < MinReasonLength {
		return fmt.Errorf("%w: cancellation reason must be at least %d characters", ErrValidation, MinReasonLength)
	}
	return nil
}

// NewOrder assembles a validated order ready for persistence. The
// total is computed here and never mutated independently of lines.
func NewOrder(id string, buyer Buyer, lines []Line, now time.Time) (*Order, error) {
	if err := ValidateLines(lines); err != nil {
		return nil, err
	}
	return &Order{
		ID:        id,
		Buyer:     buyer,
		Lines:     lines,
		Total:     LinesTotal(lines),
		Status:    StatusNew,
		Cancel:    CancelRequest{Status: CancelNone},
		CreatedAt: now,
	}, nil
}

// Product is the catalog view the order service needs to validate and
// snapshot a requested line.
type Product struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Duration  string `json:"duration"`
	UnitPrice int64  `json:"unit_price"`
	IsActive  bool   `json:"is_active"`
}

// Identity roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Identity describes the authenticated caller as supplied by the
// upstream gateway.
type Identity struct {
	UserID string
	Role   string
	Email  string
	Name   string
	Phone  string
}

// IsAdmin reports whether the caller holds the admin role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// AsBuyer converts the caller identity into a buyer snapshot.
func (i Identity) AsBuyer() Buyer {
	return Buyer{UserID: i.UserID, Name: i.Name, Email: i.Email, Phone: i.Phone}
}
