// Package memo implements the content-addressed memoization cache: at most
// one computation runs per fingerprint key at a time, with every
// concurrent caller subscribing to and receiving the same outcome. Built
// on golang.org/x/sync/singleflight, the standard "do once, fan results
// out" primitive for deduplicating concurrent work against the same key.
package memo

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/indexflow/indexflow/internal/errs"
	"github.com/indexflow/indexflow/internal/fingerprint"
)

const salt = "cocoindex_memo"

// Cache is a per-run memoization table. The zero value is not usable; use
// New.
type Cache struct {
	group singleflight.Group

	mu     sync.Mutex
	failed map[string]error // non-retryable failures cached for the run
}

func New() *Cache {
	return &Cache{failed: make(map[string]error)}
}

// Key builds the stable fingerprint string used as the singleflight key,
// from the (operator_kind, canonicalized_spec, canonicalized_inputs,
// behavior_version) tuple that identifies a single memoizable invocation.
func Key(operatorKind string, specPayload any, inputs any, behaviorVersion int64) (string, error) {
	d, err := fingerprint.Of(salt, []any{operatorKind, specPayload, inputs, behaviorVersion})
	if err != nil {
		return "", err
	}
	return d.String(), nil
}

// Do runs fn at most once concurrently for a given key within this Cache's
// lifetime. If a prior call for key failed with a non-retryable error,
// that failure is returned immediately without invoking fn again.
func (c *Cache) Do(key string, fn func() (any, error)) (any, error) {
	c.mu.Lock()
	if cached, ok := c.failed[key]; ok {
		c.mu.Unlock()
		return nil, cached
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, fn)
	if err != nil {
		if !errs.Retriable(err) {
			c.mu.Lock()
			c.failed[key] = err
			c.mu.Unlock()
		}
		return nil, err
	}
	return v, nil
}

// Forget evicts key's cached failure (if any) and makes the singleflight
// group forget key, so a subsequent Do starts a fresh call instead of
// joining one already in flight.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	delete(c.failed, key)
	c.mu.Unlock()
	c.group.Forget(key)
}
