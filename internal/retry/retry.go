// Package retry wraps cenkalti/backoff/v4 into two named retry profiles:
// a "heavy" profile for source polling and target application, and a
// "light" profile for in-process lock/peer waits. Grounded on
// resolver.go's backoff usage around its polling loop's backupTimer.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/indexflow/indexflow/internal/errs"
)

// Policy configures one retry profile.
type Policy struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	MaxElapsed time.Duration
	Multiplier float64
}

// Heavy is the default profile for I/O operators: source polling and
// target batch application.
func Heavy() Policy {
	return Policy{BaseDelay: 200 * time.Millisecond, MaxDelay: 30 * time.Second, MaxElapsed: 5 * time.Minute, Multiplier: 2.0}
}

// Light is the default profile for short in-process waits, such as a
// memoization caller polling for a peer's singleflight result.
func Light() Policy {
	return Policy{BaseDelay: 10 * time.Millisecond, MaxDelay: 1 * time.Second, MaxElapsed: 10 * time.Second, Multiplier: 1.5}
}

// OrHeavy substitutes the Heavy profile for a zero-value Policy, letting
// callers leave a Policy field unset instead of wiring Heavy() through
// every constructor.
func (p Policy) OrHeavy() Policy {
	if p == (Policy{}) {
		return Heavy()
	}
	return p
}

func (p Policy) backoff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxInterval = p.MaxDelay
	b.MaxElapsedTime = p.MaxElapsed
	b.Multiplier = p.Multiplier
	return backoff.WithContext(b, ctx)
}

// Do retries fn under p until it succeeds, fn returns a non-retryable
// error, ctx is cancelled, or the policy's elapsed-time budget is
// exhausted. Retry eligibility is determined by errs.Retriable.
func Do(ctx context.Context, p Policy, fn func() error) error {
	op := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if errs.Classify(err) == errs.KindCancelled {
			return backoff.Permanent(err)
		}
		if !errs.Retriable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	err := backoff.Retry(op, p.backoff(ctx))
	if err == nil {
		return nil
	}
	var perm *backoff.PermanentError
	if asPermanent(err, &perm) {
		return perm.Err
	}
	return errs.Retryable(err)
}

func asPermanent(err error, target **backoff.PermanentError) bool {
	pe, ok := err.(*backoff.PermanentError)
	if !ok {
		return false
	}
	*target = pe
	return true
}
