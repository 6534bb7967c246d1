package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/rizalap/digishop/internal/aws"
	"github.com/rizalap/digishop/internal/orders"
)

const (
	// recentCap bounds the in-process recent-event list.
	recentCap = 200

	metricsPushTimeout = 5 * time.Second
)

// RecentEvent is the compact record kept for the admin activity view.
type RecentEvent struct {
	Kind    string    `json:"kind"`
	OrderID string    `json:"order_id"`
	Buyer   string    `json:"buyer"`
	Total   int64     `json:"total"`
	At      time.Time `json:"at"`
}

// Metrics keeps a bounded list of recent order events in process and
// pushes a creation counter to CloudWatch when a client is configured.
// Without one the counter push is a silent no-op; the recent list is
// always maintained.
type Metrics struct {
	mu     sync.Mutex
	recent []RecentEvent

	cw        aws.CloudWatchAPI
	namespace string
}

// NewMetrics returns the metrics sink. cw may be nil.
func NewMetrics(cw aws.CloudWatchAPI, namespace string) *Metrics {
	return &Metrics{cw: cw, namespace: namespace}
}

func (m *Metrics) Name() string { return "metrics" }

// Accepts routes only order creations to the metrics sink.
func (m *Metrics) Accepts(kind string) bool { return kind == orders.EventOrderCreated }

// Handle records the event and increments the CloudWatch counter.
func (m *Metrics) Handle(ctx context.Context, evt orders.Event) error {
	if evt.Order != nil {
		m.push(RecentEvent{
			Kind:    evt.Kind,
			OrderID: evt.Order.ID,
			Buyer:   evt.Order.Buyer.Email,
			Total:   evt.Order.Total,
			At:      evt.OccurredAt,
		})
	}

	if m.cw == nil || m.namespace == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, metricsPushTimeout)
	defer cancel()

	one := 1.0
	name := "OrdersCreated"
	ts := evt.OccurredAt
	_, err := m.cw.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: &m.namespace,
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: &name,
				Value:      &one,
				Unit:       cwtypes.StandardUnitCount,
				Timestamp:  &ts,
			},
		},
	})
	return err
}

func (m *Metrics) push(evt RecentEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recent = append(m.recent, evt)
	if len(m.recent) > recentCap {
		m.recent = m.recent[len(m.recent)-recentCap:]
	}
}

// Recent returns a copy of the recent-event list, newest last.
func (m *Metrics) Recent() []RecentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecentEvent, len(m.recent))
	copy(out, m.recent)
	return out
}
