// Package checkout turns a session's cart into an order.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-pizza-storefront/internal/cart"
	"github.com/imrishuroy/go-pizza-storefront/internal/events"
	"github.com/imrishuroy/go-pizza-storefront/internal/idempotency"
	"github.com/imrishuroy/go-pizza-storefront/internal/orders"
)

// Result is a placed order. Replayed is set when an earlier request with the
// same idempotency key already created it.
type Result struct {
	Order    orders.Order
	Replayed bool
}

type Service struct {
	carts     *cart.Store
	orders    *orders.Store
	idem      *idempotency.Store
	publisher events.Publisher
}

func NewService(carts *cart.Store, ordersStore *orders.Store, idem *idempotency.Store, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{carts: carts, orders: ordersStore, idem: idem, publisher: publisher}
}

// Place creates an order from the session's cart and clears the cart. The
// cart is left untouched when the order can't be written. A non-empty key
// makes retries return the first order instead of placing another.
func (s *Service) Place(ctx context.Context, session, key string) (Result, error) {
	if key != "" {
		key = recordKey(session, key)
		if res, ok, err := s.replay(ctx, key); err != nil || ok {
			return res, err
		}
	}

	c, err := s.carts.Load(ctx, session)
	if err != nil {
		return Result{}, err
	}

	var order orders.Order
	if key == "" {
		order, err = s.orders.Create(ctx, c)
	} else {
		order, err = s.orders.CreateWithIdempotency(ctx, c, s.idem.TableName(), func(orderID string) (map[string]types.AttributeValue, error) {
			return s.idem.RecordItem(key, orderID)
		})
	}
	if errors.Is(err, orders.ErrDuplicateRequest) {
		// lost a race with a concurrent retry
		res, ok, rerr := s.replay(ctx, key)
		if rerr != nil {
			return Result{}, rerr
		}
		if ok {
			return res, nil
		}
	}
	if err != nil {
		return Result{}, err
	}

	if err := s.carts.Clear(ctx, session); err != nil {
		slog.ErrorContext(ctx, "order placed but cart not cleared", "order_id", order.ID, "error", err)
	}
	if key != "" {
		body, _ := json.Marshal(map[string]string{"orderId": order.ID})
		if err := s.idem.MarkDone(ctx, key, string(body), http.StatusCreated); err != nil {
			slog.WarnContext(ctx, "mark idempotency done failed", "key", key, "error", err)
		}
	}
	if err := s.publisher.Publish(ctx, events.OrderCreated(order)); err != nil {
		slog.WarnContext(ctx, "publish order.created failed", "order_id", order.ID, "error", err)
	}

	slog.InfoContext(ctx, "order placed", "order_id", order.ID, "items", len(order.Items), "total", order.Total)
	return Result{Order: order}, nil
}

// recordKey scopes a client key to its cart session so one session can never
// replay another's order, and keeps checkout keys apart from worker keys.
func recordKey(session, key string) string {
	return "checkout:" + session + ":" + key
}

func (s *Service) replay(ctx context.Context, key string) (Result, bool, error) {
	rec, err := s.idem.Get(ctx, key)
	if err != nil {
		return Result{}, false, fmt.Errorf("%w: idempotency lookup: %w", orders.ErrStoreUnavailable, err)
	}
	if rec == nil {
		return Result{}, false, nil
	}
	if rec.Status == idempotency.StatusFailed {
		return Result{}, false, orders.ErrDuplicateRequest
	}
	o, err := s.orders.Get(ctx, rec.OrderID)
	if err != nil {
		return Result{}, false, err
	}
	if o == nil {
		return Result{}, false, fmt.Errorf("idempotency key %s: %w", key, orders.ErrNotFound)
	}
	return Result{Order: *o, Replayed: true}, true, nil
}
