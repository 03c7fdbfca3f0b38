package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/imrishuroy/go-pizza-storefront/internal/aws"
	"github.com/imrishuroy/go-pizza-storefront/internal/events"
	"github.com/imrishuroy/go-pizza-storefront/internal/idempotency"
)

// Processor turns order events from SQS into CloudWatch metrics. Each event id
// is recorded in the idempotency table so redeliveries are counted once.
type Processor struct {
	idempStore *idempotency.Store
	metrics    *aws.MetricEmitter
	lease      time.Duration
	nowFunc    func() time.Time
}

// errClaimHeld means another delivery of the same event is being processed.
// The message fails so SQS hands it back after the visibility timeout.
var errClaimHeld = errors.New("event claimed by another delivery")

// NewProcessor creates a new worker processor with AWS clients injected.
func NewProcessor(clients *aws.AWSClients, idempTable, namespace string) *Processor {
	return &Processor{
		idempStore: idempotency.NewStore(clients.DynamoDB, idempTable, idempotencyWindow),
		metrics:    aws.NewMetricEmitter(clients.CloudWatch, namespace),
		lease:      claimLease,
		nowFunc:    time.Now,
	}
}

// Handle processes a batch and reports the messages that failed so only those
// are redelivered.
func (p *Processor) Handle(ctx context.Context, ev lambdaevents.SQSEvent) (lambdaevents.SQSEventResponse, error) {
	var resp lambdaevents.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			slog.ErrorContext(ctx, "worker error", "message_id", rec.MessageId, "error", err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, lambdaevents.SQSBatchItemFailure{
				ItemIdentifier: rec.MessageId,
			})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec lambdaevents.SQSMessage) error {
	ev, err := events.Decode(rec.Body)
	if err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	key := eventKeyPrefix + ev.EventID

	created, err := p.idempStore.CreateIfNotExists(ctx, key, ev.OrderID)
	if err != nil {
		return fmt.Errorf("claim event: %w", err)
	}
	if !created {
		existing, err := p.idempStore.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("read event claim: %w", err)
		}
		if existing != nil {
			switch existing.Status {
			case idempotency.StatusDone:
				slog.InfoContext(ctx, "duplicate event skipped", "event_id", ev.EventID, "order_id", ev.OrderID)
				return nil
			case idempotency.StatusInProgress:
				// only a claim whose holder has outlived the lease is taken over
				if p.nowFunc().Sub(existing.UpdatedAt) < p.lease {
					return fmt.Errorf("%w: %s", errClaimHeld, ev.EventID)
				}
				slog.WarnContext(ctx, "taking over stale event claim", "event_id", ev.EventID, "claimed_at", existing.UpdatedAt)
			}
		}
	}

	if err := p.metrics.Emit(ctx, datapoints(ev)...); err != nil {
		if merr := p.idempStore.MarkFailed(ctx, key, err.Error()); merr != nil {
			slog.WarnContext(ctx, "mark event failed", "event_id", ev.EventID, "error", merr)
		}
		return fmt.Errorf("emit metrics: %w", err)
	}
	if err := p.idempStore.MarkDone(ctx, key, "", http.StatusOK); err != nil {
		return fmt.Errorf("mark event done: %w", err)
	}

	slog.InfoContext(ctx, "event processed", "event_id", ev.EventID, "type", ev.Type, "order_id", ev.OrderID)
	return nil
}

func datapoints(ev events.Event) []aws.Datum {
	switch ev.Type {
	case events.TypeOrderCreated:
		return []aws.Datum{
			{Name: MetricOrdersPlaced, Value: 1, Unit: cwtypes.StandardUnitCount},
			{Name: MetricOrderValue, Value: ev.Total, Unit: cwtypes.StandardUnitNone},
		}
	case events.TypeOrderStatusChanged:
		return []aws.Datum{{
			Name:       MetricOrderStatusChanged,
			Value:      1,
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: map[string]string{dimensionStatus: string(ev.OrderStatus)},
		}}
	}
	return nil
}
