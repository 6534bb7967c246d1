package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rizalap/digishop/internal/aws"
	"github.com/rizalap/digishop/internal/orders"
)

const chatSendTimeout = 5 * time.Second

// ChatAlert publishes a human-readable activity message to the
// outbound notification queue; the relay worker (cmd/notifier)
// delivers it to the chat endpoint. Delivery is best-effort: no queue
// configured means a silent no-op, and a failed publish is never
// retried here.
type ChatAlert struct {
	publisher *aws.Publisher
}

// NewChatAlert returns the chat sink. publisher may be nil or bound to
// an empty queue URL, in which case the sink no-ops.
func NewChatAlert(publisher *aws.Publisher) *ChatAlert {
	return &ChatAlert{publisher: publisher}
}

func (c *ChatAlert) Name() string { return "chat" }

// Accepts routes every lifecycle event to chat; it is the activity
// feed.
func (c *ChatAlert) Accepts(string) bool { return true }

func (c *ChatAlert) configured() bool {
	return c.publisher != nil && c.publisher.QueueURL != ""
}

// Handle renders and publishes the alert.
func (c *ChatAlert) Handle(ctx context.Context, evt orders.Event) error {
	if !c.configured() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, chatSendTimeout)
	defer cancel()

	attrs := map[string]string{"event": evt.Kind}
	if evt.Order != nil {
		attrs["order_id"] = evt.Order.ID
	}
	return c.publisher.SendNotification(ctx, RenderAlert(evt), attrs)
}

// RenderAlert formats the plain-text multi-line chat message: event
// name and local-time timestamp, actor, free-text description and any
// metadata lines.
func RenderAlert(evt orders.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", evt.Kind, evt.OccurredAt.Local().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "actor: %s <%s>\n", evt.Actor.Name, evt.Actor.Email)
	if evt.Description != "" {
		b.WriteString(evt.Description)
		b.WriteString("\n")
	}
	for _, m := range evt.Meta {
		b.WriteString(m)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
