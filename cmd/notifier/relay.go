package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"
)

// Relay delivers queued notification messages to the chat endpoint.
// Delivery is best-effort: a failed POST is logged and the message is
// still considered handled, so the queue never redrives chat alerts.
type Relay struct {
	webhookURL string
	client     *http.Client
	log        *logrus.Logger
}

// NewRelay returns a relay posting to webhookURL. An empty URL turns
// delivery into a no-op.
func NewRelay(webhookURL string, log *logrus.Logger) *Relay {
	return &Relay{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
		log:        log,
	}
}

// Handle receives an SQS batch and posts each message body to the chat
// endpoint. It always returns nil: chat alerts are never retried.
func (r *Relay) Handle(ctx context.Context, ev events.SQSEvent) error {
	for _, rec := range ev.Records {
		if err := r.deliver(ctx, rec.Body); err != nil {
			r.log.Errorf("chat delivery failed for message %s: %v", rec.MessageId, err)
		}
	}
	return nil
}

func (r *Relay) deliver(ctx context.Context, text string) error {
	if r.webhookURL == "" {
		return nil
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("chat endpoint returned %s", resp.Status)
	}
	return nil
}
