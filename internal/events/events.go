// Package events describes the order event feed consumed by the worker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/imrishuroy/go-pizza-storefront/internal/orders"
)

type Type string

const (
	TypeOrderCreated       Type = "order.created"
	TypeOrderStatusChanged Type = "order.status_changed"
)

// Event is the SQS message body.
type Event struct {
	EventID     string             `json:"event_id"`
	Type        Type               `json:"type"`
	OrderID     string             `json:"order_id"`
	Total       float64            `json:"total,omitempty"`
	OrderStatus orders.OrderStatus `json:"order_status"`
	OccurredAt  time.Time          `json:"occurred_at"`
}

func OrderCreated(o orders.Order) Event {
	return Event{
		EventID:     uuid.NewString(),
		Type:        TypeOrderCreated,
		OrderID:     o.ID,
		Total:       o.Total,
		OrderStatus: o.OrderStatus,
		OccurredAt:  time.Now().UTC(),
	}
}

func StatusChanged(orderID string, status orders.OrderStatus) Event {
	return Event{
		EventID:     uuid.NewString(),
		Type:        TypeOrderStatusChanged,
		OrderID:     orderID,
		OrderStatus: status,
		OccurredAt:  time.Now().UTC(),
	}
}

func Decode(body string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(body), &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.EventID == "" || ev.OrderID == "" {
		return Event{}, fmt.Errorf("decode event: missing event_id or order_id")
	}
	switch ev.Type {
	case TypeOrderCreated, TypeOrderStatusChanged:
	default:
		return Event{}, fmt.Errorf("decode event: unknown type %q", ev.Type)
	}
	return ev, nil
}

// Publisher sends order events somewhere downstream.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop drops every event. Used when no queue is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
