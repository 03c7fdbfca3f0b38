package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-pizza-storefront/internal/aws/awstest"
)

func seedMenu(t *testing.T, mock *awstest.Dynamo, products ...Product) {
	t.Helper()
	for _, p := range products {
		item, err := attributevalue.MarshalMap(p)
		require.NoError(t, err)
		mock.Seed("pizzas", item)
	}
}

func newMenu(t *testing.T) *awstest.Dynamo {
	mock := awstest.NewDynamo()
	mock.CreateTable("pizzas", "id")
	seedMenu(t, mock,
		Product{ID: "p2", Name: "Farmhouse", Description: "Capsicum, onion, tomato", BasePrice: 320},
		Product{ID: "p1", Name: "Margherita", Description: "Classic cheese", BasePrice: 250, Images: []string{"https://img/p1.jpg", "https://img/p1b.jpg"}},
	)
	return mock
}

func TestListProducts(t *testing.T) {
	r := NewReader(newMenu(t), "pizzas", FailOpen)

	products, err := r.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "p1", products[0].ID)
	assert.Equal(t, "https://img/p1.jpg", products[0].Thumbnail())
	assert.Equal(t, 320.0, products[1].BasePrice)
	assert.Empty(t, products[1].Images, "images are optional")
	assert.Equal(t, "", products[1].Thumbnail())
}

func TestListProducts_FailOpenReturnsEmpty(t *testing.T) {
	mock := newMenu(t)
	mock.Fail("Scan", errors.New("network unreachable"))
	r := NewReader(mock, "pizzas", FailOpen)

	products, err := r.ListProducts(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)
}

func TestListProducts_FailLoudReturnsError(t *testing.T) {
	mock := newMenu(t)
	mock.Fail("Scan", errors.New("network unreachable"))
	r := NewReader(mock, "pizzas", FailLoud)

	_, err := r.ListProducts(context.Background())
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

// blockingScan holds every Scan until release is closed, honouring the
// caller's context the way the SDK does.
type blockingScan struct {
	*awstest.Dynamo
	started chan struct{}
	release chan struct{}
}

func (b *blockingScan) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	select {
	case b.started <- struct{}{}:
	default:
	}
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return b.Dynamo.Scan(ctx, params, optFns...)
}

func TestListProducts_CancelledCallerDoesNotFailSharedScan(t *testing.T) {
	for _, policy := range []ReadPolicy{FailOpen, FailLoud} {
		t.Run(string(policy), func(t *testing.T) {
			mock := &blockingScan{Dynamo: newMenu(t), started: make(chan struct{}, 1), release: make(chan struct{})}
			r := NewReader(mock, "pizzas", policy)

			ctxA, cancelA := context.WithCancel(context.Background())
			doneA := make(chan struct{})
			go func() {
				defer close(doneA)
				_, _ = r.ListProducts(ctxA)
			}()
			<-mock.started

			type result struct {
				products []Product
				err      error
			}
			doneB := make(chan result, 1)
			go func() {
				products, err := r.ListProducts(context.Background())
				doneB <- result{products, err}
			}()
			time.Sleep(20 * time.Millisecond) // let B join the flight

			cancelA()
			select {
			case <-doneA:
			case <-time.After(time.Second):
				t.Fatal("cancelled caller kept waiting")
			}

			close(mock.release)
			select {
			case res := <-doneB:
				require.NoError(t, res.err)
				assert.Len(t, res.products, 2)
			case <-time.After(time.Second):
				t.Fatal("healthy caller never returned")
			}
			assert.Equal(t, 1, mock.Calls("Scan"))
		})
	}
}

func TestProduct(t *testing.T) {
	r := NewReader(newMenu(t), "pizzas", FailOpen)

	p, err := r.Product(context.Background(), "p2")
	require.NoError(t, err)
	assert.Equal(t, "Farmhouse", p.Name)

	_, err = r.Product(context.Background(), "p9")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestListProducts_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	mock := newMenu(t)
	r := NewReader(mock, "pizzas", FailOpen, WithCache(NewRedisCache(client, time.Minute)))
	ctx := context.Background()

	first, err := r.ListProducts(ctx)
	require.NoError(t, err)
	second, err := r.ListProducts(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, mock.Calls("Scan"), "second read should be served from cache")
	assert.True(t, mr.Exists("catalog:products"))

	mr.FastForward(2 * time.Minute)
	_, err = r.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, mock.Calls("Scan"), "expired cache should rescan")
}

func TestListProducts_FailOpenIsNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	mock := newMenu(t)
	mock.Fail("Scan", errors.New("timeout"))
	r := NewReader(mock, "pizzas", FailOpen, WithCache(NewRedisCache(client, time.Minute)))

	_, err := r.ListProducts(context.Background())
	require.NoError(t, err)
	assert.False(t, mr.Exists("catalog:products"))

	mock.Fail("Scan", nil)
	products, err := r.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 2)
}

func TestListProducts_BrokenCacheFallsBackToTable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, mr.Set("catalog:products", "not-json"))

	r := NewReader(newMenu(t), "pizzas", FailOpen, WithCache(NewRedisCache(client, time.Minute)))
	products, err := r.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 2)
}

func TestParseReadPolicy(t *testing.T) {
	p, err := ParseReadPolicy("")
	require.NoError(t, err)
	assert.Equal(t, FailOpen, p)

	p, err = ParseReadPolicy("error")
	require.NoError(t, err)
	assert.Equal(t, FailLoud, p)

	_, err = ParseReadPolicy("retry")
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}
