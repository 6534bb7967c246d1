package orders

import "time"

// Lifecycle event kinds.
const (
	EventOrderCreated    = "order_created"
	EventStatusChanged   = "status_changed"
	EventCancelRequested = "cancel_requested"
	EventCancelConfirmed = "cancel_confirmed"
	EventOrderDeleted    = "order_deleted"
)

// Event is an ephemeral record of a single lifecycle transition. It is
// constructed after the store mutation succeeds and handed to the
// dispatcher; it is never persisted as an entity itself.
type Event struct {
	Kind        string
	Order       *Order
	Actor       Identity
	Description string
	Meta        []string
	OccurredAt  time.Time
}

// NewEvent builds an event for the given transition.
func NewEvent(kind string, order *Order, actor Identity, description string, meta ...string) Event {
	return Event{
		Kind:        kind,
		Order:       order,
		Actor:       actor,
		Description: description,
		Meta:        meta,
		OccurredAt:  time.Now(),
	}
}
