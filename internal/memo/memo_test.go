package memo

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexflow/indexflow/internal/errs"
)

func TestDo_Singleflight(t *testing.T) {
	c := New()
	var calls int64

	const n = 20
	results := make(chan any, n)
	errsCh := make(chan error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		go func() {
			<-start
			v, err := c.Do("key", func() (any, error) {
				atomic.AddInt64(&calls, 1)
				return "result", nil
			})
			results <- v
			errsCh <- err
		}()
	}
	close(start)

	for i := 0; i < n; i++ {
		require.NoError(t, <-errsCh)
		assert.Equal(t, "result", <-results)
	}
	assert.LessOrEqual(t, atomic.LoadInt64(&calls), int64(1), "executor must run at most once across concurrent callers")
}

func TestDo_NonRetryableFailureCached(t *testing.T) {
	c := New()
	var calls int

	run := func() (any, error) {
		calls++
		return nil, errs.Invariance("boom")
	}

	_, err1 := c.Do("key", run)
	require.Error(t, err1)
	_, err2 := c.Do("key", run)
	require.Error(t, err2)
	assert.Equal(t, 1, calls, "a non-retryable failure must be cached, not re-run")
}

func TestDo_RetryableFailureNotCached(t *testing.T) {
	c := New()
	var calls int

	run := func() (any, error) {
		calls++
		return nil, errs.Retryable(&simpleErr{"transient"})
	}

	_, err1 := c.Do("key", run)
	require.Error(t, err1)
	_, err2 := c.Do("key", run)
	require.Error(t, err2)
	assert.Equal(t, 2, calls, "a retryable failure must not be cached across calls")
}

func TestForget_EvictsCachedFailure(t *testing.T) {
	c := New()
	var calls int
	run := func() (any, error) {
		calls++
		if calls == 1 {
			return nil, errs.Invariance("boom")
		}
		return "ok", nil
	}

	_, err := c.Do("key", run)
	require.Error(t, err)
	c.Forget("key")
	v, err := c.Do("key", run)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, calls)
}

type simpleErr struct{ msg string }

func (e *simpleErr) Error() string { return e.msg }
