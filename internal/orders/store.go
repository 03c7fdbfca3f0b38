package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/imrishuroy/go-pizza-storefront/internal/aws"
	"github.com/imrishuroy/go-pizza-storefront/internal/cart"
)

// Store encapsulates operations on the orders table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	policy    TransitionPolicy
	nowFunc   func() time.Time
	newID     func() string
	pageSize  int32 // scan page limit, 0 lets DynamoDB decide
}

// NewStore creates a new orders Store enforcing policy on status updates.
func NewStore(client aws.DynamoDBAPI, tableName string, policy TransitionPolicy) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		policy:    policy,
		nowFunc:   time.Now,
		newID:     uuid.NewString,
	}
}

func (s *Store) Policy() TransitionPolicy { return s.policy }

// newOrder snapshots c into a fresh record. The total is fixed here and never
// recomputed.
func (s *Store) newOrder(c *cart.Cart) (Order, error) {
	if c == nil || c.IsEmpty() {
		return Order{}, ErrEmptyCart
	}
	return Order{
		ID:            s.newID(),
		Items:         c.Items(),
		Total:         c.Total().InexactFloat64(),
		PaymentStatus: PaymentPending,
		OrderStatus:   StatusNew,
		CreatedAt:     s.nowFunc().UTC(),
	}, nil
}

// Create persists a new order built from c. An empty cart fails with
// ErrEmptyCart before anything is written.
func (s *Store) Create(ctx context.Context, c *cart.Cart) (Order, error) {
	order, err := s.newOrder(c)
	if err != nil {
		return Order{}, err
	}
	item, err := attributevalue.MarshalMap(order)
	if err != nil {
		return Order{}, fmt.Errorf("marshal order: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: sdkaws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return Order{}, fmt.Errorf("%w: put order: %w", ErrStoreUnavailable, err)
	}
	return order, nil
}

// CreateWithIdempotency writes the order and an idempotency record in one
// TransactWriteItems call. recordItem builds the idempotency item once the order
// id is known; its put must carry the key-uniqueness condition. A used key
// cancels the transaction with ErrDuplicateRequest and nothing is written.
func (s *Store) CreateWithIdempotency(ctx context.Context, c *cart.Cart, idempotencyTable string, recordItem func(orderID string) (map[string]types.AttributeValue, error)) (Order, error) {
	order, err := s.newOrder(c)
	if err != nil {
		return Order{}, err
	}
	idempMap, err := recordItem(order.ID)
	if err != nil {
		return Order{}, fmt.Errorf("build idempotency item: %w", err)
	}
	orderMap, err := attributevalue.MarshalMap(order)
	if err != nil {
		return Order{}, fmt.Errorf("marshal order: %w", err)
	}

	input := &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           &idempotencyTable,
					Item:                idempMap,
					ConditionExpression: sdkaws.String("attribute_not_exists(idempotency_key)"),
				},
			},
			{
				Put: &types.Put{
					TableName:           &s.tableName,
					Item:                orderMap,
					ConditionExpression: sdkaws.String("attribute_not_exists(id)"),
				},
			},
		},
	}

	if _, err := s.client.TransactWriteItems(ctx, input); err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) && len(tce.CancellationReasons) > 0 &&
			sdkaws.ToString(tce.CancellationReasons[0].Code) == "ConditionalCheckFailed" {
			return Order{}, ErrDuplicateRequest
		}
		return Order{}, fmt.Errorf("%w: transact write: %w", ErrStoreUnavailable, err)
	}
	return order, nil
}

// Get fetches an order by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, id string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            orderKey(id),
		ConsistentRead: sdkaws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get item: %w", ErrStoreUnavailable, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// List returns every order in the table, oldest first.
func (s *Store) List(ctx context.Context) ([]Order, error) {
	var (
		all   []Order
		start map[string]types.AttributeValue
	)
	for {
		input := &dyn.ScanInput{
			TableName:         &s.tableName,
			ExclusiveStartKey: start,
			ConsistentRead:    sdkaws.Bool(true),
		}
		if s.pageSize > 0 {
			input.Limit = sdkaws.Int32(s.pageSize)
		}
		out, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("%w: scan orders: %w", ErrStoreUnavailable, err)
		}
		var page []Order
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal orders: %w", err)
		}
		all = append(all, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		start = out.LastEvaluatedKey
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	return all, nil
}

// UpdateStatus sets orderStatus and nothing else. A missing id fails with
// ErrNotFound without creating an item. Under a policy that inspects the
// current stage the write is conditioned on the stage that was checked, so a
// concurrent change surfaces as ErrStatusMismatch instead of being overwritten.
func (s *Store) UpdateStatus(ctx context.Context, id string, status OrderStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	input := &dyn.UpdateItemInput{
		TableName:                &s.tableName,
		Key:                      orderKey(id),
		UpdateExpression:         sdkaws.String("SET #s = :status"),
		ExpressionAttributeNames: map[string]string{"#s": "orderStatus"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
		},
	}

	if s.policy.NeedsCurrent() {
		current, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err := s.policy.Check(current.OrderStatus, status); err != nil {
			return err
		}
		input.ConditionExpression = sdkaws.String("#s = :expected")
		input.ExpressionAttributeValues[":expected"] = &types.AttributeValueMemberS{Value: string(current.OrderStatus)}
	} else {
		if err := s.policy.Check("", status); err != nil {
			return err
		}
		input.ConditionExpression = sdkaws.String("attribute_exists(id)")
	}

	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			if s.policy.NeedsCurrent() {
				return ErrStatusMismatch
			}
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("%w: update item: %w", ErrStoreUnavailable, err)
	}
	return nil
}

func orderKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}
