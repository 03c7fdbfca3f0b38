// Package catalog reads the menu. It never writes.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/sync/singleflight"

	"github.com/imrishuroy/go-pizza-storefront/internal/aws"
)

var (
	ErrStoreUnavailable = errors.New("catalog store unavailable")
	ErrProductNotFound  = errors.New("product not found")
	ErrUnknownPolicy    = errors.New("unknown read policy")
)

// ReadPolicy says what ListProducts does when the table can't be read.
type ReadPolicy string

const (
	// FailOpen logs a warning and returns an empty menu.
	FailOpen ReadPolicy = "empty"
	// FailLoud returns an error wrapping ErrStoreUnavailable.
	FailLoud ReadPolicy = "error"
)

func ParseReadPolicy(v string) (ReadPolicy, error) {
	switch ReadPolicy(v) {
	case "", FailOpen:
		return FailOpen, nil
	case FailLoud:
		return FailLoud, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, v)
}

// scanTimeout bounds a shared menu scan.
const scanTimeout = 10 * time.Second

// Reader projects the pizzas table into products.
type Reader struct {
	client    aws.DynamoDBAPI
	tableName string
	policy    ReadPolicy
	cache     Cache // may be nil
	group     singleflight.Group
}

// Option configures a Reader.
type Option func(*Reader)

func WithCache(c Cache) Option {
	return func(r *Reader) { r.cache = c }
}

func NewReader(client aws.DynamoDBAPI, tableName string, policy ReadPolicy, opts ...Option) *Reader {
	r := &Reader{client: client, tableName: tableName, policy: policy}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ListProducts returns the menu ordered by id. Concurrent callers that miss the
// cache share a single scan.
func (r *Reader) ListProducts(ctx context.Context) ([]Product, error) {
	if r.cache != nil {
		if products, ok := r.cache.Get(ctx); ok {
			return products, nil
		}
	}

	// The shared scan outlives any one caller; each caller still stops
	// waiting when its own context ends.
	ch := r.group.DoChan(r.tableName, func() (interface{}, error) {
		scanCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), scanTimeout)
		defer cancel()
		products, err := r.scan(scanCtx)
		if err != nil {
			return nil, err
		}
		if r.cache != nil {
			r.cache.Set(scanCtx, products)
		}
		return products, nil
	})

	var (
		v   interface{}
		err error
	)
	select {
	case <-ctx.Done():
		err = fmt.Errorf("%w: %w", ErrStoreUnavailable, ctx.Err())
	case res := <-ch:
		v, err = res.Val, res.Err
	}
	if err != nil {
		if r.policy == FailLoud {
			return nil, err
		}
		slog.WarnContext(ctx, "menu unavailable, serving empty catalog", "table", r.tableName, "error", err)
		return []Product{}, nil
	}
	return v.([]Product), nil
}

// Product looks up one menu entry. ErrProductNotFound covers an id missing
// from the menu as well as a menu that could not be read under FailOpen.
func (r *Reader) Product(ctx context.Context, id string) (Product, error) {
	products, err := r.ListProducts(ctx)
	if err != nil {
		return Product{}, err
	}
	for _, p := range products {
		if p.ID == id {
			return p, nil
		}
	}
	return Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
}

func (r *Reader) scan(ctx context.Context) ([]Product, error) {
	products := []Product{}
	var start map[string]types.AttributeValue
	for {
		out, err := r.client.Scan(ctx, &dyn.ScanInput{
			TableName:         &r.tableName,
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: scan %s: %w", ErrStoreUnavailable, r.tableName, err)
		}
		var page []Product
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("%w: unmarshal products: %w", ErrStoreUnavailable, err)
		}
		products = append(products, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		start = out.LastEvaluatedKey
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}
