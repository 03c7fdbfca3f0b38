package awstest

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQS records every message it is asked to send.
type SQS struct {
	mu   sync.Mutex
	Err  error
	Sent []*sqs.SendMessageInput
}

func (q *SQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Err != nil {
		return nil, q.Err
	}
	q.Sent = append(q.Sent, params)
	return &sqs.SendMessageOutput{}, nil
}

func (q *SQS) Messages() []*sqs.SendMessageInput {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*sqs.SendMessageInput(nil), q.Sent...)
}

// CloudWatch records PutMetricData calls.
type CloudWatch struct {
	mu   sync.Mutex
	Err  error
	Puts []*cloudwatch.PutMetricDataInput
}

func (c *CloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	c.Puts = append(c.Puts, params)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func (c *CloudWatch) Calls() []*cloudwatch.PutMetricDataInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*cloudwatch.PutMetricDataInput(nil), c.Puts...)
}
