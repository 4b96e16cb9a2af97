package engine_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ridrisa/barq-dispatch-core/internal/engine"
)

func TestShardOf_Deterministic(t *testing.T) {
	require.Equal(t, engine.ShardOf("driver-1", 8), engine.ShardOf("driver-1", 8))
	require.Equal(t, engine.ShardOf("driver-1", 8), engine.ShardOf("driver-1", 8))
}

func TestWorkerPool_RunsJobsAndOrdersPerKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var pool = engine.NewWorkerPool(ctx, 4, 16)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		var i = i
		pool.Submit("driver-1", func(context.Context) {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	wg.Wait()

	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestWorkerPool_DifferentKeysRunConcurrently(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var pool = engine.NewWorkerPool(ctx, 8, 4)
	var running int32
	var maxObserved int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		var key = string(rune('a' + i))
		pool.Submit(key, func(context.Context) {
			defer wg.Done()
			var cur = atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&maxObserved)
				if cur <= old || atomic.CompareAndSwapInt32(&maxObserved, old, cur) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&running, -1)
		})
	}
	wg.Wait()

	require.Greater(t, atomic.LoadInt32(&maxObserved), int32(1))
}
