// Package awstest provides in-memory stand-ins for the AWS clients used by the
// service. They understand exactly the expressions this repository issues.
package awstest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type item = map[string]types.AttributeValue

// Dynamo is a tiny DynamoDB: one string partition key per table, conditional
// writes (attribute_exists, attribute_not_exists, a = :v), SET updates,
// transactions and paginated scans.
type Dynamo struct {
	mu     sync.Mutex
	keys   map[string]string
	tables map[string]map[string]item
	errs   map[string]error
	calls  map[string]int
}

func NewDynamo() *Dynamo {
	return &Dynamo{
		keys:   map[string]string{},
		tables: map[string]map[string]item{},
		errs:   map[string]error{},
		calls:  map[string]int{},
	}
}

// CreateTable registers a table keyed by the string attribute pk.
func (d *Dynamo) CreateTable(name, pk string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys[name] = pk
	if _, ok := d.tables[name]; !ok {
		d.tables[name] = map[string]item{}
	}
}

// Fail makes every call of op return err until Fail(op, nil).
func (d *Dynamo) Fail(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.errs, op)
		return
	}
	d.errs[op] = err
}

// Calls reports how many times op was invoked.
func (d *Dynamo) Calls(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[op]
}

// Seed writes it unconditionally.
func (d *Dynamo) Seed(table string, it map[string]types.AttributeValue) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pk, err := d.pkOf(table, it)
	if err != nil {
		panic(err)
	}
	d.tables[table][pk] = clone(it)
}

// Item returns a copy of the stored item or nil.
func (d *Dynamo) Item(table, pk string) map[string]types.AttributeValue {
	d.mu.Lock()
	defer d.mu.Unlock()
	it, ok := d.tables[table][pk]
	if !ok {
		return nil
	}
	return clone(it)
}

// Len returns the number of items in table.
func (d *Dynamo) Len(table string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tables[table])
}

func (d *Dynamo) enter(op string) error {
	d.calls[op]++
	return d.errs[op]
}

func (d *Dynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("PutItem"); err != nil {
		return nil, err
	}
	table := sdkaws.ToString(params.TableName)
	pk, err := d.pkOf(table, params.Item)
	if err != nil {
		return nil, err
	}
	ok, err := evalCondition(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, d.tables[table][pk])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: sdkaws.String("The conditional request failed")}
	}
	d.tables[table][pk] = clone(params.Item)
	return &dyn.PutItemOutput{}, nil
}

func (d *Dynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("GetItem"); err != nil {
		return nil, err
	}
	table := sdkaws.ToString(params.TableName)
	pk, err := d.pkOf(table, params.Key)
	if err != nil {
		return nil, err
	}
	it, ok := d.tables[table][pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: clone(it)}, nil
}

func (d *Dynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("UpdateItem"); err != nil {
		return nil, err
	}
	table := sdkaws.ToString(params.TableName)
	updated, err := d.update(table, params.Key, params.UpdateExpression, params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, &types.ConditionalCheckFailedException{Message: sdkaws.String("The conditional request failed")}
	}
	pk, _ := d.pkOf(table, params.Key)
	d.tables[table][pk] = updated
	return &dyn.UpdateItemOutput{Attributes: clone(updated)}, nil
}

func (d *Dynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("TransactWriteItems"); err != nil {
		return nil, err
	}

	type write struct {
		table, pk string
		value     item
	}
	writes := make([]write, 0, len(params.TransactItems))
	reasons := make([]types.CancellationReason, len(params.TransactItems))
	canceled := false

	for i, ti := range params.TransactItems {
		reasons[i] = types.CancellationReason{Code: sdkaws.String("None")}
		switch {
		case ti.Put != nil:
			table := sdkaws.ToString(ti.Put.TableName)
			pk, err := d.pkOf(table, ti.Put.Item)
			if err != nil {
				return nil, err
			}
			ok, err := evalCondition(ti.Put.ConditionExpression, ti.Put.ExpressionAttributeNames, ti.Put.ExpressionAttributeValues, d.tables[table][pk])
			if err != nil {
				return nil, err
			}
			if !ok {
				canceled = true
				reasons[i].Code = sdkaws.String("ConditionalCheckFailed")
				continue
			}
			writes = append(writes, write{table, pk, clone(ti.Put.Item)})
		case ti.Update != nil:
			table := sdkaws.ToString(ti.Update.TableName)
			updated, err := d.update(table, ti.Update.Key, ti.Update.UpdateExpression, ti.Update.ConditionExpression, ti.Update.ExpressionAttributeNames, ti.Update.ExpressionAttributeValues)
			if err != nil {
				return nil, err
			}
			if updated == nil {
				canceled = true
				reasons[i].Code = sdkaws.String("ConditionalCheckFailed")
				continue
			}
			pk, _ := d.pkOf(table, ti.Update.Key)
			writes = append(writes, write{table, pk, updated})
		default:
			return nil, errors.New("awstest: only Put and Update are supported in transactions")
		}
	}

	if canceled {
		return nil, &types.TransactionCanceledException{
			Message:             sdkaws.String("Transaction cancelled"),
			CancellationReasons: reasons,
		}
	}
	for _, w := range writes {
		d.tables[w.table][w.pk] = w.value
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (d *Dynamo) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("Scan"); err != nil {
		return nil, err
	}
	table := sdkaws.ToString(params.TableName)
	rows, ok := d.tables[table]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: sdkaws.String("table " + table)}
	}

	pks := make([]string, 0, len(rows))
	for pk := range rows {
		pks = append(pks, pk)
	}
	sort.Strings(pks)

	start := 0
	if len(params.ExclusiveStartKey) > 0 {
		after, err := d.pkOf(table, params.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
		start = sort.SearchStrings(pks, after)
		if start < len(pks) && pks[start] == after {
			start++
		}
	}
	end := len(pks)
	if params.Limit != nil && int(*params.Limit) > 0 && start+int(*params.Limit) < end {
		end = start + int(*params.Limit)
	}

	out := &dyn.ScanOutput{}
	for _, pk := range pks[start:end] {
		out.Items = append(out.Items, clone(rows[pk]))
	}
	out.Count = int32(len(out.Items))
	out.ScannedCount = out.Count
	if end < len(pks) {
		out.LastEvaluatedKey = item{d.keys[table]: &types.AttributeValueMemberS{Value: pks[end-1]}}
	}
	return out, nil
}

// update returns the item after applying expr, or nil when cond fails.
func (d *Dynamo) update(table string, key item, expr, cond *string, names map[string]string, values item) (item, error) {
	pk, err := d.pkOf(table, key)
	if err != nil {
		return nil, err
	}
	existing := d.tables[table][pk]
	ok, err := evalCondition(cond, names, values, existing)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	next := clone(existing)
	if next == nil {
		next = clone(key)
	}
	if err := applySet(next, sdkaws.ToString(expr), names, values); err != nil {
		return nil, err
	}
	return next, nil
}

func (d *Dynamo) pkOf(table string, it item) (string, error) {
	name, ok := d.keys[table]
	if !ok {
		return "", &types.ResourceNotFoundException{Message: sdkaws.String("table " + table)}
	}
	s, ok := it[name].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("awstest: missing string key %q for table %s", name, table)
	}
	return s.Value, nil
}

func evalCondition(expr *string, names map[string]string, values, existing item) (bool, error) {
	if expr == nil {
		return true, nil
	}
	e := strings.TrimSpace(*expr)
	switch {
	case strings.HasPrefix(e, "attribute_not_exists(") && strings.HasSuffix(e, ")"):
		attr := resolve(strings.TrimSuffix(strings.TrimPrefix(e, "attribute_not_exists("), ")"), names)
		_, present := existing[attr]
		return !present, nil
	case strings.HasPrefix(e, "attribute_exists(") && strings.HasSuffix(e, ")"):
		attr := resolve(strings.TrimSuffix(strings.TrimPrefix(e, "attribute_exists("), ")"), names)
		_, present := existing[attr]
		return present, nil
	case strings.Contains(e, " = "):
		parts := strings.SplitN(e, " = ", 2)
		want, ok := values[strings.TrimSpace(parts[1])]
		if !ok {
			return false, fmt.Errorf("awstest: missing value for %q", parts[1])
		}
		got, present := existing[resolve(strings.TrimSpace(parts[0]), names)]
		return present && reflect.DeepEqual(got, want), nil
	}
	return false, fmt.Errorf("awstest: unsupported condition %q", e)
}

func applySet(it item, expr string, names map[string]string, values item) error {
	if !strings.HasPrefix(expr, "SET ") {
		return fmt.Errorf("awstest: unsupported update %q", expr)
	}
	for _, clause := range strings.Split(strings.TrimPrefix(expr, "SET "), ",") {
		parts := strings.SplitN(clause, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("awstest: bad SET clause %q", clause)
		}
		v, ok := values[strings.TrimSpace(parts[1])]
		if !ok {
			return fmt.Errorf("awstest: missing value for %q", parts[1])
		}
		it[resolve(strings.TrimSpace(parts[0]), names)] = v
	}
	return nil
}

func resolve(name string, names map[string]string) string {
	if strings.HasPrefix(name, "#") {
		if n, ok := names[name]; ok {
			return n
		}
	}
	return name
}

func clone(it item) item {
	if it == nil {
		return nil
	}
	out := make(item, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}
