package retry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexflow/indexflow/internal/errs"
	"github.com/indexflow/indexflow/internal/retry"
)

func fastPolicy() retry.Policy {
	return retry.Policy{BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, MaxElapsed: time.Second, Multiplier: 1.5}
}

// Add must flush automatically once the batch reaches its size limit,
// delivering items to fn in the order they were added.
func TestBatcher_FlushesAtSize(t *testing.T) {
	var flushed [][]int
	b := retry.NewBatcher(fastPolicy(), 2, func(ctx context.Context, batch []int) error {
		flushed = append(flushed, append([]int{}, batch...))
		return nil
	})

	require.NoError(t, b.Add(context.Background(), 1))
	assert.Empty(t, flushed, "first item alone must not trigger a flush")

	require.NoError(t, b.Add(context.Background(), 2))
	require.Len(t, flushed, 1)
	assert.Equal(t, []int{1, 2}, flushed[0])
}

// A manual Flush sends whatever is pending even below the size limit, and
// is a no-op when nothing is pending.
func TestBatcher_ManualFlush(t *testing.T) {
	var flushed [][]int
	b := retry.NewBatcher(fastPolicy(), 10, func(ctx context.Context, batch []int) error {
		flushed = append(flushed, append([]int{}, batch...))
		return nil
	})

	require.NoError(t, b.Add(context.Background(), 1))
	require.NoError(t, b.Flush(context.Background()))
	require.Len(t, flushed, 1)
	assert.Equal(t, []int{1}, flushed[0])

	require.NoError(t, b.Flush(context.Background()))
	assert.Len(t, flushed, 1, "flushing an empty batcher must not call fn again")
}

// A retryable flush error is retried under the batcher's policy until fn
// succeeds; a non-retryable error is surfaced immediately.
func TestBatcher_RetriesRetryableFlushError(t *testing.T) {
	attempts := 0
	b := retry.NewBatcher(fastPolicy(), 1, func(ctx context.Context, batch []int) error {
		attempts++
		if attempts < 3 {
			return errs.Retryable(assertErr{})
		}
		return nil
	})

	require.NoError(t, b.Add(context.Background(), 1))
	assert.Equal(t, 3, attempts)
}

func TestBatcher_ClientErrorNotRetried(t *testing.T) {
	attempts := 0
	b := retry.NewBatcher(fastPolicy(), 1, func(ctx context.Context, batch []int) error {
		attempts++
		return errs.Client("bad batch")
	})

	err := b.Add(context.Background(), 1)
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

type assertErr struct{}

func (assertErr) Error() string { return "transient failure" }
