package indexer

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/indexflow/indexflow/internal/stopper"
)

// LiveUpdater orchestrates every SourceIndexer belonging to one flow: it
// starts each source's poll loop under a shared stopper.Context and
// drains them all on Stop — one loop per source, one shared shutdown.
type LiveUpdater struct {
	FlowID  string
	Sources []*SourceIndexer

	stop *stopper.Context
	done chan error
}

// NewLiveUpdater builds a LiveUpdater for the given flow's sources.
func NewLiveUpdater(flowID string, sources []*SourceIndexer) *LiveUpdater {
	return &LiveUpdater{FlowID: flowID, Sources: sources}
}

// Start launches every source's poll loop as a tracked goroutine under a
// stopper.Context derived from parent. Returns immediately.
func (u *LiveUpdater) Start(parent context.Context) {
	u.stop = stopper.WithContext(parent)
	u.done = make(chan error, len(u.Sources))

	for _, si := range u.Sources {
		si := si
		u.stop.Go(func() error {
			err := si.Run(u.stop)
			if err != nil {
				log.WithError(err).WithFields(log.Fields{
					"flow":   u.FlowID,
					"source": si.SourceID,
				}).Error("source indexer stopped")
			}
			u.done <- err
			return err
		})
	}
}

// Stop signals every source's poll loop to finish its current batch, then
// waits up to grace for them to return before cancelling their contexts.
// Returns the first non-nil error any source indexer returned, if any.
func (u *LiveUpdater) Stop(grace time.Duration) error {
	if u.stop == nil {
		return nil
	}
	u.stop.Stop(grace)

	var first error
	for range u.Sources {
		if err := <-u.done; err != nil && first == nil {
			first = err
		}
	}
	return first
}
