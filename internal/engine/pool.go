// Package engine is the composition root: a single Engine value owning the
// in-memory order/driver/route/batch tables, the statemachine, the audit
// store, the event bus, and the four ticking engine loops — replacing the
// source's module-level singleton controllers, per the Design Notes'
// explicit "singletons -> explicit Engine value" directive. One Engine per
// process; lifecycle is New -> Run -> Shutdown.
package engine

import (
	"context"
	"sync"

	"github.com/minio/highwayhash"
)

// routeOptimizerPoolKey is a fixed 32-byte HighwayHash key, the same
// "fixed key read from /dev/random once" approach the teacher uses in
// go/flow/mapping.go's PackedKeyHash_HH64 for deterministic shard
// assignment. Repurposed here from journal-shard hashing to
// route-optimization worker-shard hashing: a bounded worker pool (§5:
// "Route re-optimizations triggered by events... run on a bounded worker
// pool so that slow optimizations for one driver cannot starve others"),
// where a driver id always lands on the same shard so its re-optimizations
// are processed in order relative to one another without a global lock.
var routeOptimizerPoolKey = []byte{
	0xba, 0x73, 0x7e, 0x89, 0x15, 0x52, 0x38, 0xd4,
	0x7d, 0x80, 0x67, 0xc3, 0x5a, 0xad, 0x4d, 0x25,
	0xec, 0xdd, 0x1c, 0x34, 0x88, 0x22, 0x7e, 0x01,
	0x1f, 0xfa, 0x48, 0x0c, 0x02, 0x2b, 0xd3, 0xba,
}

// ShardOf deterministically maps a key (typically a driver id) onto one of
// n worker-pool shards.
func ShardOf(key string, n int) int {
	if n <= 0 {
		return 0
	}
	var sum = highwayhash.Sum64([]byte(key), routeOptimizerPoolKey)
	return int(sum % uint64(n))
}

// WorkerPool runs event-triggered jobs (route re-optimizations) on a
// bounded set of goroutines, each owning one shard so that jobs for the
// same key (driver id) are processed in submission order while jobs for
// different keys run concurrently.
type WorkerPool struct {
	shards []chan func(context.Context)
	wg     sync.WaitGroup
}

// NewWorkerPool starts n shard workers. Each accepts jobs on its own
// buffered channel; Submit routes a job to ShardOf(key, n).
func NewWorkerPool(ctx context.Context, n, bufferPerShard int) *WorkerPool {
	if n <= 0 {
		n = 1
	}
	var p = &WorkerPool{shards: make([]chan func(context.Context), n)}
	for i := range p.shards {
		var ch = make(chan func(context.Context), bufferPerShard)
		p.shards[i] = ch
		p.wg.Add(1)
		go p.runShard(ctx, ch)
	}
	return p
}

func (p *WorkerPool) runShard(ctx context.Context, ch <-chan func(context.Context)) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-ch:
			if !ok {
				return
			}
			job(ctx)
		}
	}
}

// Submit enqueues a job for the shard owning key. It does not block unless
// that shard's queue is full, in which case it blocks the caller — callers
// that cannot tolerate this should size bufferPerShard generously or use
// TrySubmit.
func (p *WorkerPool) Submit(key string, job func(context.Context)) {
	var shard = ShardOf(key, len(p.shards))
	p.shards[shard] <- job
}

// TrySubmit enqueues a job without blocking, returning false if the shard's
// queue is full.
func (p *WorkerPool) TrySubmit(key string, job func(context.Context)) bool {
	var shard = ShardOf(key, len(p.shards))
	select {
	case p.shards[shard] <- job:
		return true
	default:
		return false
	}
}

// Close closes every shard's queue. Workers drain remaining buffered jobs
// (respecting ctx cancellation) then exit; Close does not wait for drain —
// callers that need that should cancel the pool's context and call Wait.
func (p *WorkerPool) Close() {
	for _, ch := range p.shards {
		close(ch)
	}
}

// Wait blocks until every shard worker has exited.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}
