package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/imrishuroy/go-pizza-storefront/internal/aws"
	"github.com/imrishuroy/go-pizza-storefront/internal/config"
	"github.com/imrishuroy/go-pizza-storefront/internal/logging"
)

// idempotencyWindow bounds how long a processed event id is remembered; SQS
// never redelivers after its retention period.
const idempotencyWindow = 14 * 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	logging.Init(cfg.LogLevel)

	clients, err := aws.NewAWSClients(context.Background(), cfg.AWSRegion, cfg.AWSEndpointOverride)
	if err != nil {
		slog.Error("failed to init aws clients", "error", err)
		os.Exit(1)
	}
	p := NewProcessor(clients, cfg.IdempotencyTable, cfg.MetricsNamespace)

	// If RUN_LOCAL=true, process a single simulated message and exit.
	if cfg.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			body = `{"event_id":"local-event-1","type":"order.created","order_id":"local-order-1","total":500,"order_status":"new"}`
		}
		event := lambdaevents.SQSEvent{
			Records: []lambdaevents.SQSMessage{{MessageId: "local-1", Body: body}},
		}
		resp, _ := p.Handle(context.Background(), event)
		if len(resp.BatchItemFailures) > 0 {
			slog.Error("local message failed")
			os.Exit(1)
		}
		return
	}

	lambda.Start(p.Handle)
}
