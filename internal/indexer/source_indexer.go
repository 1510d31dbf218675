package indexer

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/indexflow/indexflow/internal/diag"
	"github.com/indexflow/indexflow/internal/errs"
	"github.com/indexflow/indexflow/internal/notify"
	"github.com/indexflow/indexflow/internal/ops"
	"github.com/indexflow/indexflow/internal/retry"
	"github.com/indexflow/indexflow/internal/stopper"
)

// SourceIndexerConfig controls one source's polling cadence and worker
// pool. Grounded on resolver.go's BackupPolling timer and
// IdealFlushBatchSize, generalized from a resolved-timestamp poll to a
// source List() poll.
type SourceIndexerConfig struct {
	// PollInterval is how often List is called absent an external wakeup.
	// A reusable timer is used rather than time.After in the poll loop:
	// After allocates a new timer (and goroutine, pre-1.23) on every tick.
	PollInterval time.Duration
	// Concurrency bounds how many rows are indexed at once per poll
	// batch (0 means unbounded).
	Concurrency int
	// Retry governs List and IndexRow retries for errs.KindRetryable
	// failures; client/invariance/internal errors are never retried.
	Retry retry.Policy
}

// DefaultSourceIndexerConfig matches resolver.go's BackupPolling default
// of a few seconds, scaled for an in-process row source.
func DefaultSourceIndexerConfig() SourceIndexerConfig {
	return SourceIndexerConfig{
		PollInterval: 3 * time.Second,
		Concurrency:  4,
		Retry:        retry.Heavy(),
	}
}

// SourceIndexer drives one source's List/IndexRow polling loop: on each
// tick (or external wakeup via Poke) it calls List with the last-persisted
// state token, de-duplicates same-key rows within the batch via
// UniqueByKey, indexes each row through the RowIndexer, and persists the
// new state token once every row in the batch has been applied.
//
// Grounded structurally on resolver.go's readInto/process pair: a select
// loop woken by either a timer or a notify.Var, paired with a batch-apply
// step that advances a persisted cursor only after the batch commits.
type SourceIndexer struct {
	FlowID   string
	SourceID string
	Cfg      SourceIndexerConfig

	Source     ops.SourceExecutor
	RowIndexer *RowIndexer
	StateStore SourceStateStore

	poke notify.Var[struct{}]
}

// SourceStateStore is the subset of tracking.Store the source indexer
// needs, named separately so tests can fake just these two methods.
type SourceStateStore interface {
	GetSourceState(ctx context.Context, flowID, sourceID string) ([]byte, bool, error)
	PutSourceState(ctx context.Context, flowID, sourceID string, state []byte) error
}

// NewSourceIndexer builds a SourceIndexer ready for Run.
func NewSourceIndexer(flowID, sourceID string, cfg SourceIndexerConfig, source ops.SourceExecutor, ri *RowIndexer, store SourceStateStore) *SourceIndexer {
	return &SourceIndexer{
		FlowID:     flowID,
		SourceID:   sourceID,
		Cfg:        cfg,
		Source:     source,
		RowIndexer: ri,
		StateStore: store,
		poke:       *notify.New(struct{}{}),
	}
}

// Poke wakes the poll loop immediately instead of waiting for the next
// timer tick, for callers that know new data is available (e.g. a
// webhook-driven source).
func (si *SourceIndexer) Poke() {
	si.poke.Set(struct{}{})
}

// Run polls until ctx.Stopping fires, logging and retrying transient
// failures and returning immediately on a non-retryable error.
func (si *SourceIndexer) Run(ctx *stopper.Context) error {
	timer := time.NewTimer(si.Cfg.PollInterval)
	defer timer.Stop()

	_, wakeup := si.poke.Get()
	for {
		if err := si.pollOnce(ctx); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"flow":   si.FlowID,
				"source": si.SourceID,
			}).Warn("source poll failed")
			if errs.Classify(err) != errs.KindRetryable {
				return err
			}
		}

		timer.Stop()
		select {
		case <-timer.C:
		default:
		}
		timer.Reset(si.Cfg.PollInterval)

		select {
		case <-wakeup:
			_, wakeup = si.poke.Get()
		case <-timer.C:
		case <-ctx.Stopping():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// pollOnce lists one batch, de-duplicates it, indexes every row (bounded
// by Cfg.Concurrency), and persists the new state token only once every
// row in the batch has been applied: "advance the cursor once the flush
// has completed", so a crash mid-batch re-polls rows it already saw
// rather than silently skipping them.
func (si *SourceIndexer) pollOnce(ctx context.Context) error {
	state, _, err := si.StateStore.GetSourceState(ctx, si.FlowID, si.SourceID)
	if err != nil {
		return err
	}

	var items []ops.SourceItem
	var newState []byte
	pollStart := time.Now()
	if rerr := retry.Do(ctx, si.Cfg.Retry, func() error {
		var listErr error
		items, newState, listErr = si.Source.List(ctx, state)
		return listErr
	}); rerr != nil {
		return rerr
	}
	diag.SourcePollDuration.With(prometheus.Labels{"flow": si.FlowID, "source": si.SourceID}).
		Observe(time.Since(pollStart).Seconds())

	items = UniqueByKey(items, func(it ops.SourceItem) string {
		return fingerprintKeyString(it)
	})

	if err := si.indexBatch(ctx, items); err != nil {
		return err
	}

	return si.StateStore.PutSourceState(ctx, si.FlowID, si.SourceID, newState)
}

func (si *SourceIndexer) indexBatch(ctx context.Context, items []ops.SourceItem) error {
	if len(items) == 0 {
		return nil
	}

	sem := make(chan struct{}, concurrencyOrUnbounded(si.Cfg.Concurrency, len(items)))
	errCh := make(chan error, len(items))
	for _, item := range items {
		item := item
		sem <- struct{}{}
		go func() {
			defer func() { <-sem }()
			errCh <- retry.Do(ctx, si.Cfg.Retry, func() error {
				_, err := si.RowIndexer.IndexRow(ctx, item)
				return err
			})
		}()
	}
	for i := 0; i < cap(sem); i++ {
		sem <- struct{}{}
	}

	close(errCh)
	var first error
	for err := range errCh {
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}

func concurrencyOrUnbounded(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
}

func fingerprintKeyString(it ops.SourceItem) string {
	return it.PrimaryKey.String()
}
