package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-pizza-storefront/internal/aws/awstest"
	"github.com/imrishuroy/go-pizza-storefront/internal/cart"
	"github.com/imrishuroy/go-pizza-storefront/internal/events"
	"github.com/imrishuroy/go-pizza-storefront/internal/idempotency"
	"github.com/imrishuroy/go-pizza-storefront/internal/orders"
)

type fixture struct {
	svc   *Service
	carts *cart.Store
	dyn   *awstest.Dynamo
	queue *awstest.SQS
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mock := awstest.NewDynamo()
	mock.CreateTable("orders", "id")
	mock.CreateTable("idempotency", "idempotency_key")
	queue := &awstest.SQS{}

	carts := cart.NewStore(cart.NewMemorySlot())
	svc := NewService(
		carts,
		orders.NewStore(mock, "orders", orders.PolicyAny),
		idempotency.NewStore(mock, "idempotency", time.Hour),
		events.NewSQSPublisher(queue, "https://sqs.local/orders"),
	)
	return &fixture{svc: svc, carts: carts, dyn: mock, queue: queue}
}

func (f *fixture) fill(t *testing.T, session string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.carts.Add(ctx, session, cart.Item{PizzaID: "p1", Name: "Margherita", Qty: 2, Price: 250})
	require.NoError(t, err)
	_, err = f.carts.Add(ctx, session, cart.Item{PizzaID: "p2", Name: "Farmhouse", Qty: 1, Price: 320.5})
	require.NoError(t, err)
}

func TestPlace_CreatesOrderAndClearsCart(t *testing.T) {
	f := newFixture(t)
	f.fill(t, "s1")
	ctx := context.Background()

	res, err := f.svc.Place(ctx, "s1", "")
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, 820.5, res.Order.Total)
	assert.Equal(t, orders.StatusNew, res.Order.OrderStatus)
	assert.Equal(t, orders.PaymentPending, res.Order.PaymentStatus)
	assert.Equal(t, 1, f.dyn.Len("orders"))

	c, err := f.carts.Load(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())

	msgs := f.queue.Messages()
	require.Len(t, msgs, 1)
	ev, err := events.Decode(*msgs[0].MessageBody)
	require.NoError(t, err)
	assert.Equal(t, res.Order.ID, ev.OrderID)
}

func TestPlace_EmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Place(context.Background(), "nobody", "")
	assert.ErrorIs(t, err, orders.ErrEmptyCart)
	assert.Zero(t, f.dyn.Len("orders"))
	assert.Empty(t, f.queue.Messages())
}

func TestPlace_StoreFailureKeepsCart(t *testing.T) {
	f := newFixture(t)
	f.fill(t, "s1")
	f.dyn.Fail("PutItem", errors.New("connection reset"))

	_, err := f.svc.Place(context.Background(), "s1", "")
	assert.ErrorIs(t, err, orders.ErrStoreUnavailable)

	c, err := f.carts.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	assert.Empty(t, f.queue.Messages())
}

func TestPlace_IdempotentRetryReturnsSameOrder(t *testing.T) {
	f := newFixture(t)
	f.fill(t, "s1")
	ctx := context.Background()

	first, err := f.svc.Place(ctx, "s1", "key-1")
	require.NoError(t, err)

	// the client retries after losing the response; its cart is already empty
	second, err := f.svc.Place(ctx, "s1", "key-1")
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, 1, f.dyn.Len("orders"))
	assert.Len(t, f.queue.Messages(), 1)

	var rec idempotency.Record
	require.NoError(t, attributevalue.UnmarshalMap(f.dyn.Item("idempotency", "checkout:s1:key-1"), &rec))
	assert.Equal(t, idempotency.StatusDone, rec.Status)
	assert.Equal(t, first.Order.ID, rec.OrderID)
}

func TestPlace_SameKeyFromAnotherSessionPlacesItsOwnOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.fill(t, "alice")
	alice, err := f.svc.Place(ctx, "alice", "k")
	require.NoError(t, err)

	_, err = f.carts.Add(ctx, "bob", cart.Item{PizzaID: "p2", Name: "Farmhouse", Qty: 1, Price: 320})
	require.NoError(t, err)
	bob, err := f.svc.Place(ctx, "bob", "k")
	require.NoError(t, err)

	assert.False(t, bob.Replayed)
	assert.NotEqual(t, alice.Order.ID, bob.Order.ID)
	assert.Equal(t, 320.0, bob.Order.Total)
	assert.Equal(t, 2, f.dyn.Len("orders"))

	c, err := f.carts.Load(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty(), "bob's own cart is placed and cleared")
}

func TestPlace_KeyCannotReachWorkerRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// a record the worker wrote for an order event
	_, err := idempotency.NewStore(f.dyn, "idempotency", time.Hour).CreateIfNotExists(ctx, "event:e1", "someone-elses-order")
	require.NoError(t, err)

	f.fill(t, "s1")
	res, err := f.svc.Place(ctx, "s1", "event:e1")
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.NotEqual(t, "someone-elses-order", res.Order.ID)
}

func TestPlace_DifferentKeysPlaceDifferentOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.fill(t, "s1")
	a, err := f.svc.Place(ctx, "s1", "key-a")
	require.NoError(t, err)
	f.fill(t, "s1")
	b, err := f.svc.Place(ctx, "s1", "key-b")
	require.NoError(t, err)

	assert.NotEqual(t, a.Order.ID, b.Order.ID)
	assert.Equal(t, 2, f.dyn.Len("orders"))
}

func TestPlace_PublishFailureStillSucceeds(t *testing.T) {
	f := newFixture(t)
	f.fill(t, "s1")
	f.queue.Err = errors.New("throttled")

	res, err := f.svc.Place(context.Background(), "s1", "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Order.ID)
	assert.Equal(t, 1, f.dyn.Len("orders"))
}
