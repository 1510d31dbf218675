// Package errs classifies failures the way the evaluator and indexer need
// to: whether a retry can help, whether the caller is at fault, or whether
// the engine itself found a contradiction it cannot recover from.
package errs

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of the five error classes from the engine's error model.
type Kind int

const (
	// KindInternal is uncategorized; logged with its full context chain.
	KindInternal Kind = iota
	// KindClient means the caller supplied something invalid. Never retried.
	KindClient
	// KindInvariance means an internal consistency contract was broken.
	KindInvariance
	// KindRetryable means a transient I/O or upstream failure occurred.
	KindRetryable
	// KindCancelled means cooperative cancellation was observed.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindClient:
		return "client"
	case KindInvariance:
		return "invariance"
	case KindRetryable:
		return "retryable"
	case KindCancelled:
		return "cancelled"
	default:
		return "internal"
	}
}

// Error is a classified error with a prepended context stack. Context
// entries are added as the error propagates up through the evaluator and
// indexer, innermost first.
type Error struct {
	kind    Kind
	cause   error
	context []string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.kind, e.cause)
	for _, c := range e.context {
		msg = c + ": " + msg
	}
	return msg
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// Kind returns the error's classification.
func (e *Error) Kind() Kind { return e.kind }

// WithContext prepends a context string to the error, returning a new
// *Error so the original is not mutated by concurrent callers.
func (e *Error) WithContext(ctx string) *Error {
	next := &Error{kind: e.kind, cause: e.cause, context: make([]string, len(e.context)+1)}
	copy(next.context, e.context)
	next.context[len(e.context)] = ctx
	return next
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, cause: errors.Errorf(format, args...)}
}

func wrap(kind Kind, cause error) *Error {
	if cause == nil {
		return nil
	}
	var existing *Error
	if errors.As(cause, &existing) {
		return existing
	}
	return &Error{kind: kind, cause: errors.WithStack(cause)}
}

// Client builds a new ClientError.
func Client(format string, args ...any) *Error { return newf(KindClient, format, args...) }

// Invariance builds a new InvarianceViolation error.
func Invariance(format string, args ...any) *Error { return newf(KindInvariance, format, args...) }

// Retryable wraps err as a RetryableError. If err already carries an
// *Error, that error is returned unchanged, keeping its own kind.
func Retryable(err error) *Error { return wrap(KindRetryable, err) }

// Internal wraps err as an Internal error. If err already carries an
// *Error, that error is returned unchanged, keeping its own kind.
func Internal(err error) *Error { return wrap(KindInternal, err) }

// Cancelled builds a new Cancelled error wrapping ctx.Err().
func Cancelled(ctx context.Context) *Error {
	return &Error{kind: KindCancelled, cause: ctx.Err()}
}

// Is reports whether err carries the given classification.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.kind == kind
}

// Classify returns the Kind of err, defaulting to KindInternal when err
// was not produced through this package.
func Classify(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindInternal
}

// Retriable reports whether the engine should retry the operation that
// produced err.
func Retriable(err error) bool {
	return Classify(err) == KindRetryable
}
