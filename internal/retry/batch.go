package retry

import (
	"context"
	"sync"
)

// Batcher accumulates items under a soft size limit and flushes them
// through fn under a retry policy, mirroring resolver.go's
// IdealFlushBatchSize loop: callers push items one at a time and the
// batcher itself decides when enough have accumulated, rather than every
// caller hand-rolling its own batch-size bookkeeping.
type Batcher[T any] struct {
	policy    Policy
	batchSize int
	fn        func(ctx context.Context, batch []T) error

	mu      sync.Mutex
	pending []T
}

// NewBatcher returns a Batcher that flushes once pending reaches
// batchSize, retrying each flush under policy.
func NewBatcher[T any](policy Policy, batchSize int, fn func(ctx context.Context, batch []T) error) *Batcher[T] {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Batcher[T]{policy: policy, batchSize: batchSize, fn: fn}
}

// Add appends item to the pending batch, flushing immediately if the
// batch has reached its size limit.
func (b *Batcher[T]) Add(ctx context.Context, item T) error {
	b.mu.Lock()
	b.pending = append(b.pending, item)
	full := len(b.pending) >= b.batchSize
	b.mu.Unlock()
	if full {
		return b.Flush(ctx)
	}
	return nil
}

// Flush sends whatever is pending through fn under the batcher's retry
// policy, regardless of whether the size limit has been reached — the
// caller's final flush of a processing cycle.
func (b *Batcher[T]) Flush(ctx context.Context) error {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	return Do(ctx, b.policy, func() error { return b.fn(ctx, batch) })
}
