package groupqueue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchDoesNotBlock(t *testing.T) {
	pool := New(2, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	start := time.Now()
	pool.Dispatch(Job{
		GroupKey: "g1",
		Handler: func(ctx context.Context) error {
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	})
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}

func TestSameGroupRunsInOrder(t *testing.T) {
	pool := New(4, 100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	var mu sync.Mutex
	var results []int
	for i := 1; i <= 5; i++ {
		val := i
		pool.Dispatch(Job{
			GroupKey: "12036304@g.us",
			Handler: func(ctx context.Context) error {
				time.Sleep(10 * time.Millisecond)
				mu.Lock()
				results = append(results, val)
				mu.Unlock()
				return nil
			},
		})
	}
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{1, 2, 3, 4, 5}, results)
}

func TestDifferentGroupsRunInParallel(t *testing.T) {
	pool := New(4, 100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	var active int32
	for i := 0; i < 4; i++ {
		pool.Dispatch(Job{
			GroupKey: string(rune('A' + i)),
			Handler: func(ctx context.Context) error {
				atomic.AddInt32(&active, 1)
				time.Sleep(50 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			},
		})
	}
	time.Sleep(10 * time.Millisecond)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&active), int32(2))
}

func TestStopDrainsQueuedJobs(t *testing.T) {
	pool := New(2, 10)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	var completed int32
	for i := 0; i < 2; i++ {
		pool.Dispatch(Job{
			GroupKey: string(rune('A' + i)),
			Handler: func(ctx context.Context) error {
				time.Sleep(50 * time.Millisecond)
				atomic.AddInt32(&completed, 1)
				return nil
			},
		})
	}
	time.Sleep(10 * time.Millisecond)

	cancel()
	pool.Stop()
	assert.Equal(t, int32(2), atomic.LoadInt32(&completed))
}

func TestShardIsStable(t *testing.T) {
	pool := New(4, 100)
	key := "12036304@g.us"
	shard := pool.shardFor(key)
	assert.Equal(t, shard, pool.shardFor(key))
	assert.GreaterOrEqual(t, shard, 0)
	assert.Less(t, shard, 4)
}

func TestDispatchAfterStopIsDropped(t *testing.T) {
	pool := New(2, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	pool.Stop()

	ok := pool.TryDispatch(Job{GroupKey: "g", Handler: func(ctx context.Context) error { return nil }})
	assert.False(t, ok)
	assert.Equal(t, int64(1), pool.GetStats().TotalDropped)
}
