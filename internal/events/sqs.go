package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/imrishuroy/go-pizza-storefront/internal/aws"
)

// SQSPublisher puts events on the orders queue. The event type and order id
// travel as message attributes so consumers can filter without decoding.
type SQSPublisher struct {
	queue *aws.Publisher
}

func NewSQSPublisher(client aws.SQSAPI, queueURL string) *SQSPublisher {
	return &SQSPublisher{queue: aws.NewPublisher(client, queueURL)}
}

func (p *SQSPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.queue.Send(ctx, string(body), map[string]string{
		"event_type": string(ev.Type),
		"order_id":   ev.OrderID,
	})
}
