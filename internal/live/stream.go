package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"

	"github.com/imrishuroy/go-pizza-storefront/internal/aws"
)

const DefaultPollInterval = time.Second

type shardCursor struct {
	id       string
	iterator *string
	lastSeq  string
}

// StreamSource polls the DynamoDB stream of the orders table. Shards open at
// start are read from LATEST; shards that appear later are read from
// TRIM_HORIZON so no change after start is missed.
type StreamSource struct {
	client    aws.DynamoDBStreamsAPI
	streamARN string
	interval  time.Duration

	started bool
	seen    map[string]struct{}
	active  []*shardCursor
}

func NewStreamSource(client aws.DynamoDBStreamsAPI, streamARN string, interval time.Duration) *StreamSource {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &StreamSource{
		client:    client,
		streamARN: streamARN,
		interval:  interval,
		seen:      map[string]struct{}{},
	}
}

// Run polls until ctx is done, calling notify at most once per poll.
func (s *StreamSource) Run(ctx context.Context, notify func()) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		changed, err := s.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.WarnContext(ctx, "order stream poll failed", "error", err)
		}
		if changed {
			notify()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll discovers new shards and reads each open shard once. It reports
// whether any record arrived.
func (s *StreamSource) Poll(ctx context.Context) (bool, error) {
	if err := s.discover(ctx); err != nil {
		return false, err
	}

	changed := false
	open := s.active[:0]
	var firstErr error
	for _, cur := range s.active {
		got, keep, err := s.read(ctx, cur)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		changed = changed || got
		if keep {
			open = append(open, cur)
		}
	}
	s.active = open
	return changed, firstErr
}

func (s *StreamSource) ActiveShards() int { return len(s.active) }

func (s *StreamSource) discover(ctx context.Context) error {
	var start *string
	for {
		out, err := s.client.DescribeStream(ctx, &dynamodbstreams.DescribeStreamInput{
			StreamArn:             sdkaws.String(s.streamARN),
			ExclusiveStartShardId: start,
		})
		if err != nil {
			return fmt.Errorf("describe stream: %w", err)
		}
		desc := out.StreamDescription
		if desc == nil {
			break
		}
		for _, sh := range desc.Shards {
			if err := s.track(ctx, sh); err != nil {
				return err
			}
		}
		if desc.LastEvaluatedShardId == nil {
			break
		}
		start = desc.LastEvaluatedShardId
	}
	s.started = true
	return nil
}

func (s *StreamSource) track(ctx context.Context, sh types.Shard) error {
	id := sdkaws.ToString(sh.ShardId)
	if _, ok := s.seen[id]; ok {
		return nil
	}

	closed := sh.SequenceNumberRange != nil && sh.SequenceNumberRange.EndingSequenceNumber != nil
	iterType := types.ShardIteratorTypeTrimHorizon
	if !s.started {
		if closed {
			// history from before we started
			s.seen[id] = struct{}{}
			return nil
		}
		iterType = types.ShardIteratorTypeLatest
	}

	out, err := s.client.GetShardIterator(ctx, &dynamodbstreams.GetShardIteratorInput{
		StreamArn:         sdkaws.String(s.streamARN),
		ShardId:           sdkaws.String(id),
		ShardIteratorType: iterType,
	})
	if err != nil {
		return fmt.Errorf("shard iterator %s: %w", id, err)
	}
	s.seen[id] = struct{}{}
	s.active = append(s.active, &shardCursor{id: id, iterator: out.ShardIterator})
	return nil
}

// read drains one batch from cur. keep is false once the shard is closed and
// fully read.
func (s *StreamSource) read(ctx context.Context, cur *shardCursor) (got, keep bool, err error) {
	out, err := s.client.GetRecords(ctx, &dynamodbstreams.GetRecordsInput{ShardIterator: cur.iterator})
	var expired *types.ExpiredIteratorException
	if errors.As(err, &expired) {
		if err := s.reacquire(ctx, cur); err != nil {
			return false, true, err
		}
		out, err = s.client.GetRecords(ctx, &dynamodbstreams.GetRecordsInput{ShardIterator: cur.iterator})
	}
	if err != nil {
		return false, true, fmt.Errorf("get records %s: %w", cur.id, err)
	}

	if n := len(out.Records); n > 0 {
		got = true
		if last := out.Records[n-1].Dynamodb; last != nil && last.SequenceNumber != nil {
			cur.lastSeq = *last.SequenceNumber
		}
	}
	if out.NextShardIterator == nil {
		return got, false, nil
	}
	cur.iterator = out.NextShardIterator
	return got, true, nil
}

func (s *StreamSource) reacquire(ctx context.Context, cur *shardCursor) error {
	in := &dynamodbstreams.GetShardIteratorInput{
		StreamArn:         sdkaws.String(s.streamARN),
		ShardId:           sdkaws.String(cur.id),
		ShardIteratorType: types.ShardIteratorTypeLatest,
	}
	if cur.lastSeq != "" {
		in.ShardIteratorType = types.ShardIteratorTypeAfterSequenceNumber
		in.SequenceNumber = sdkaws.String(cur.lastSeq)
	}
	out, err := s.client.GetShardIterator(ctx, in)
	if err != nil {
		return fmt.Errorf("reacquire iterator %s: %w", cur.id, err)
	}
	cur.iterator = out.ShardIterator
	return nil
}

// Trigger is a Source fed by the process itself, used when no stream is
// configured. Touch never blocks; touches that arrive while a refresh is
// pending collapse into it.
type Trigger struct {
	ch chan struct{}
}

func NewTrigger() *Trigger {
	return &Trigger{ch: make(chan struct{}, 1)}
}

func (t *Trigger) Touch() {
	select {
	case t.ch <- struct{}{}:
	default:
	}
}

func (t *Trigger) Run(ctx context.Context, notify func()) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.ch:
			notify()
		}
	}
}
