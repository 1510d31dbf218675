package indexer

import (
	"context"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/indexflow/indexflow/internal/ops"
)

// ErrChaos is the error injected by WithChaos-wrapped executors.
var ErrChaos = errors.New("chaos")

// WithChaos returns a SourceExecutor that randomly fails List calls with
// probability prob, for exercising the source indexer's retry and error-
// classification paths in tests. delegate is returned unchanged if prob
// is non-positive. Ported from the logical source's WithChaos dialect
// wrapper, narrowed to the one method (List) a SourceExecutor exposes.
func WithChaos(delegate ops.SourceExecutor, prob float32) ops.SourceExecutor {
	if prob <= 0 {
		return delegate
	}
	return &chaosSource{delegate: delegate, prob: prob}
}

// chaosSource deliberately holds prob by value rather than a *rand.Rand:
// once List is called from multiple goroutines there is no hope of
// repeatable behavior anyway.
type chaosSource struct {
	delegate ops.SourceExecutor
	prob     float32
}

func (s *chaosSource) List(ctx context.Context, sinceState []byte) ([]ops.SourceItem, []byte, error) {
	if rand.Float32() < s.prob {
		return nil, nil, doChaos("List")
	}
	return s.delegate.List(ctx, sinceState)
}

func doChaos(msg string) error {
	return errors.WithMessage(ErrChaos, msg)
}
