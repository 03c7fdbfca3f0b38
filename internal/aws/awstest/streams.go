package awstest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"
)

type shard struct {
	id, parent string
	closed     bool
	records    []types.Record
}

// Streams imitates a DynamoDB stream made of shards that only grow.
// Iterators carry a generation; ExpireIterators invalidates all of them.
type Streams struct {
	mu     sync.Mutex
	shards []*shard
	gen    int
	errs   map[string]error
}

func NewStreams() *Streams {
	return &Streams{errs: map[string]error{}}
}

func (s *Streams) AddShard(id, parent string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shards = append(s.shards, &shard{id: id, parent: parent})
}

func (s *Streams) CloseShard(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sh := s.find(id); sh != nil {
		sh.closed = true
	}
}

// Put appends a MODIFY record to shard id.
func (s *Streams) Put(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh := s.find(id)
	if sh == nil {
		panic("awstest: unknown shard " + id)
	}
	seq := strconv.Itoa(len(sh.records) + 1)
	sh.records = append(sh.records, types.Record{
		EventID:   sdkaws.String(id + "-" + seq),
		EventName: types.OperationTypeModify,
		Dynamodb:  &types.StreamRecord{SequenceNumber: sdkaws.String(seq)},
	})
}

func (s *Streams) ExpireIterators() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
}

func (s *Streams) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.errs, op)
		return
	}
	s.errs[op] = err
}

func (s *Streams) DescribeStream(ctx context.Context, params *dynamodbstreams.DescribeStreamInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.DescribeStreamOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errs["DescribeStream"]; err != nil {
		return nil, err
	}
	desc := &types.StreamDescription{StreamArn: params.StreamArn, StreamStatus: types.StreamStatusEnabled}
	for _, sh := range s.shards {
		rng := &types.SequenceNumberRange{StartingSequenceNumber: sdkaws.String("1")}
		if sh.closed {
			rng.EndingSequenceNumber = sdkaws.String(strconv.Itoa(len(sh.records)))
		}
		ts := types.Shard{ShardId: sdkaws.String(sh.id), SequenceNumberRange: rng}
		if sh.parent != "" {
			ts.ParentShardId = sdkaws.String(sh.parent)
		}
		desc.Shards = append(desc.Shards, ts)
	}
	return &dynamodbstreams.DescribeStreamOutput{StreamDescription: desc}, nil
}

func (s *Streams) GetShardIterator(ctx context.Context, params *dynamodbstreams.GetShardIteratorInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetShardIteratorOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errs["GetShardIterator"]; err != nil {
		return nil, err
	}
	sh := s.find(sdkaws.ToString(params.ShardId))
	if sh == nil {
		return nil, &types.ResourceNotFoundException{Message: params.ShardId}
	}
	pos := 0
	switch params.ShardIteratorType {
	case types.ShardIteratorTypeLatest:
		pos = len(sh.records)
	case types.ShardIteratorTypeAfterSequenceNumber:
		pos, _ = strconv.Atoi(sdkaws.ToString(params.SequenceNumber))
	case types.ShardIteratorTypeAtSequenceNumber:
		pos, _ = strconv.Atoi(sdkaws.ToString(params.SequenceNumber))
		pos--
	}
	if pos < 0 || pos > len(sh.records) {
		return nil, &types.TrimmedDataAccessException{Message: sdkaws.String("sequence number out of range")}
	}
	return &dynamodbstreams.GetShardIteratorOutput{ShardIterator: sdkaws.String(s.iterator(sh.id, pos))}, nil
}

func (s *Streams) GetRecords(ctx context.Context, params *dynamodbstreams.GetRecordsInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetRecordsOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errs["GetRecords"]; err != nil {
		return nil, err
	}
	parts := strings.Split(sdkaws.ToString(params.ShardIterator), "|")
	if len(parts) != 3 {
		return nil, fmt.Errorf("awstest: bad iterator %q", sdkaws.ToString(params.ShardIterator))
	}
	gen, _ := strconv.Atoi(parts[2])
	if gen != s.gen {
		return nil, &types.ExpiredIteratorException{Message: sdkaws.String("iterator expired")}
	}
	sh := s.find(parts[0])
	if sh == nil {
		return nil, &types.ResourceNotFoundException{Message: sdkaws.String(parts[0])}
	}
	pos, _ := strconv.Atoi(parts[1])

	out := &dynamodbstreams.GetRecordsOutput{Records: append([]types.Record(nil), sh.records[pos:]...)}
	if !sh.closed {
		out.NextShardIterator = sdkaws.String(s.iterator(sh.id, len(sh.records)))
	}
	return out, nil
}

func (s *Streams) iterator(id string, pos int) string {
	return fmt.Sprintf("%s|%d|%d", id, pos, s.gen)
}

func (s *Streams) find(id string) *shard {
	for _, sh := range s.shards {
		if sh.id == id {
			return sh
		}
	}
	return nil
}
