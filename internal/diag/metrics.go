// Package diag exposes the engine's Prometheus instrumentation: per-flow,
// per-source, per-target counters and latency histograms the live updater
// and row indexer report into as they run. Shaped on
// internal/staging/stage/metrics.go's promauto vecs keyed by table
// labels, generalized from per-table CDC-apply metrics to
// per-flow/source/target indexing metrics.
package diag

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LatencyBuckets is the default histogram bucket set for
// sub-second-to-tens-of-seconds operations.
var LatencyBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// FlowSourceLabels is the label set shared by every per-source metric.
var FlowSourceLabels = []string{"flow", "source"}

// FlowTargetLabels is the label set shared by every per-target metric.
var FlowTargetLabels = []string{"flow", "target"}

var (
	RowsIndexed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexflow_rows_indexed_total",
		Help: "the number of source rows that resulted in a target write",
	}, FlowSourceLabels)

	RowsUnchanged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexflow_rows_unchanged_total",
		Help: "the number of source rows skipped on a fingerprint match",
	}, FlowSourceLabels)

	RowIndexDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "indexflow_row_index_duration_seconds",
		Help:    "the length of time it took to reconcile one source row",
		Buckets: LatencyBuckets,
	}, FlowSourceLabels)

	RowIndexErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexflow_row_index_errors_total",
		Help: "the number of errors encountered while reconciling a source row",
	}, FlowSourceLabels)

	SourcePollDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "indexflow_source_poll_duration_seconds",
		Help:    "the length of time a source's List call took to complete",
		Buckets: LatencyBuckets,
	}, FlowSourceLabels)

	TargetApplyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "indexflow_target_apply_duration_seconds",
		Help:    "the length of time a target's Apply call took to complete",
		Buckets: LatencyBuckets,
	}, FlowTargetLabels)

	TargetApplyErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexflow_target_apply_errors_total",
		Help: "the number of errors encountered while applying a target batch",
	}, FlowTargetLabels)
)
