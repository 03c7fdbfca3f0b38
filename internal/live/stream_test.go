package live

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-pizza-storefront/internal/aws/awstest"
)

const testStreamARN = "arn:aws:dynamodb:us-east-1:000000000000:table/orders/stream/2026-01-01T00:00:00.000"

func TestPoll_StartsAtLatest(t *testing.T) {
	streams := awstest.NewStreams()
	streams.AddShard("s1", "")
	streams.Put("s1")
	src := NewStreamSource(streams, testStreamARN, time.Millisecond)
	ctx := context.Background()

	changed, err := src.Poll(ctx)
	require.NoError(t, err)
	assert.False(t, changed, "records from before start are not changes")

	streams.Put("s1")
	streams.Put("s1")
	changed, err = src.Poll(ctx)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = src.Poll(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestPoll_SkipsClosedShardsAtStart(t *testing.T) {
	streams := awstest.NewStreams()
	streams.AddShard("old", "")
	streams.Put("old")
	streams.CloseShard("old")
	streams.AddShard("s1", "old")
	src := NewStreamSource(streams, testStreamARN, time.Millisecond)

	_, err := src.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, src.ActiveShards())
}

func TestPoll_FollowsShardSplit(t *testing.T) {
	streams := awstest.NewStreams()
	streams.AddShard("s1", "")
	src := NewStreamSource(streams, testStreamARN, time.Millisecond)
	ctx := context.Background()

	_, err := src.Poll(ctx)
	require.NoError(t, err)

	streams.Put("s1")
	streams.CloseShard("s1")
	streams.AddShard("s2", "s1")
	streams.Put("s2")

	changed, err := src.Poll(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, src.ActiveShards(), "drained closed shard is dropped")

	changed, err = src.Poll(ctx)
	require.NoError(t, err)
	assert.False(t, changed, "child shard read from trim horizon only once")
}

func TestPoll_ReacquiresExpiredIterator(t *testing.T) {
	streams := awstest.NewStreams()
	streams.AddShard("s1", "")
	src := NewStreamSource(streams, testStreamARN, time.Millisecond)
	ctx := context.Background()

	_, err := src.Poll(ctx)
	require.NoError(t, err)
	streams.Put("s1")
	changed, err := src.Poll(ctx)
	require.NoError(t, err)
	require.True(t, changed)

	streams.ExpireIterators()
	streams.Put("s1")
	changed, err = src.Poll(ctx)
	require.NoError(t, err)
	assert.True(t, changed, "record after the last seen sequence is delivered")

	changed, err = src.Poll(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestPoll_DescribeFailure(t *testing.T) {
	streams := awstest.NewStreams()
	streams.Fail("DescribeStream", errors.New("access denied"))
	src := NewStreamSource(streams, testStreamARN, time.Millisecond)

	_, err := src.Poll(context.Background())
	assert.Error(t, err)
}

func TestRun_NotifiesOncePerPollWithRecords(t *testing.T) {
	streams := awstest.NewStreams()
	streams.AddShard("s1", "")
	streams.AddShard("s2", "")
	src := NewStreamSource(streams, testStreamARN, 5*time.Millisecond)

	// prime the cursors at LATEST before any record exists
	_, err := src.Poll(context.Background())
	require.NoError(t, err)
	streams.Put("s1")
	streams.Put("s2")

	notified := make(chan struct{}, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, func() { notified <- struct{}{} }) }()

	select {
	case <-notified:
	case <-time.After(2 * time.Second):
		t.Fatal("no notification")
	}
	time.Sleep(30 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Len(t, notified, 0, "two records in one poll signal once")
}
