package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/rizalap/digishop/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := config.NewLogger(cfg.LogLevel)

	relay := NewRelay(cfg.ChatWebhookURL, logger)

	if cfg.RunLocal {
		// local testing helper: deliver a single synthetic message
		event := events.SQSEvent{
			Records: []events.SQSMessage{
				{MessageId: "local-1", Body: "[order_created] local test message"},
			},
		}
		if err := relay.Handle(context.Background(), event); err != nil {
			log.Fatalf("local handler error: %v", err)
		}
		return
	}

	lambda.Start(relay.Handle)
}
