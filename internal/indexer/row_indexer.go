// Package indexer implements the incremental row-level reconciliation
// engine: the per-row indexer, the source indexer and live updater,
// dedup.go's last-writer-wins de-duplication (ported from
// msort.UniqueByKey), and chaos.go's fault-injection wrapper (ported from
// logical/chaos.go) for exercising the retry paths under test. Grounded
// structurally on resolver.go's process/flush loop, generalized from CDC
// mutation replay to source-row reconciliation against a tracking store.
package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/indexflow/indexflow/internal/diag"
	"github.com/indexflow/indexflow/internal/errs"
	"github.com/indexflow/indexflow/internal/eval"
	"github.com/indexflow/indexflow/internal/fingerprint"
	"github.com/indexflow/indexflow/internal/ops"
	"github.com/indexflow/indexflow/internal/plan"
	"github.com/indexflow/indexflow/internal/retry"
	"github.com/indexflow/indexflow/internal/tracking"
	"github.com/indexflow/indexflow/internal/value"
)

// FingerprintMode selects how RowIndexer computes a source row's content
// fingerprint: FastFingerprint hashes the source kind, the primary key and
// the source's reported ordinal only; it performs no size or content check,
// so a row whose content changes while its ordinal stays the same is seen
// as unchanged. StrictFingerprint hashes the row's canonicalized content,
// at higher cost but immune to an ordinal that silently fails to advance.
type FingerprintMode int

const (
	FastFingerprint FingerprintMode = iota
	StrictFingerprint
)

// RowIndexer reconciles one source's rows against a tracking store and a
// set of export targets, per the flow's plan.
type RowIndexer struct {
	FlowID    string
	SourceID  string
	SourceKind string
	Mode      FingerprintMode

	Plan      *plan.Plan
	Evaluator *eval.Evaluator
	Store     tracking.Store
	// Targets maps each plan.Export.Name to the executor that applies
	// its batched operations.
	Targets map[string]ops.TargetExecutor
	// ApplyRetry governs each target's batch Apply call; the zero value
	// falls back to retry.Heavy().
	ApplyRetry retry.Policy
}

// IndexRow reconciles a single source item: a primary key, its current
// row value (nil for a deletion), and an ordinal used by FastFingerprint
// mode. Returns whether any target write occurred (false on a fingerprint-
// match no-op), for diagnostics/testing.
func (ri *RowIndexer) IndexRow(ctx context.Context, item ops.SourceItem) (wrote bool, err error) {
	start := time.Now()
	labels := prometheus.Labels{"flow": ri.FlowID, "source": ri.SourceID}
	defer func() {
		diag.RowIndexDuration.With(labels).Observe(time.Since(start).Seconds())
		if err != nil {
			diag.RowIndexErrors.With(labels).Inc()
		}
	}()

	keyStr := fmt.Sprintf("%v", item.PrimaryKey)

	sourceFP, err := ri.computeFingerprint(item)
	if err != nil {
		return false, errs.Internal(err).WithContext("row " + keyStr)
	}

	prior, found, err := ri.Store.GetRowTracking(ctx, ri.FlowID, ri.SourceID, keyStr)
	if err != nil {
		return false, err
	}
	if found && prior.Fingerprint == sourceFP {
		diag.RowsUnchanged.With(labels).Inc()
		return false, nil
	}

	newManifest := tracking.ExportedKeysManifest{}
	upserts := map[string][]ops.TargetOp{}
	if item.Row != nil {
		exported, exportedManifest, evalErr := ri.evaluateExports(ctx, *item.Row)
		if evalErr != nil {
			return false, evalErr
		}
		upserts = exported
		newManifest = exportedManifest
	}

	if err := ri.applyDiff(ctx, prior.ExportedManifest, newManifest, upserts); err != nil {
		return false, err
	}

	if err := ri.Store.PutRowTracking(ctx, ri.FlowID, ri.SourceID, keyStr, tracking.RowTracking{
		Fingerprint:      sourceFP,
		ExportedManifest: newManifest,
	}); err != nil {
		return false, err
	}

	diag.RowsIndexed.With(labels).Inc()
	return true, nil
}

func (ri *RowIndexer) computeFingerprint(item ops.SourceItem) (fingerprint.Digest, error) {
	switch ri.Mode {
	case StrictFingerprint:
		if item.Row == nil {
			return fingerprint.Of("row_fingerprint", []any{ri.SourceKind, value.CanonicalPayload(item.PrimaryKey), "deleted"})
		}
		return fingerprint.Of("row_fingerprint", []any{
			ri.SourceKind, value.CanonicalPayload(item.PrimaryKey), value.CanonicalPayload(*item.Row),
		})
	default:
		return fingerprint.Of("row_fingerprint", []any{ri.SourceKind, value.CanonicalPayload(item.PrimaryKey), item.Ordinal})
	}
}

// evaluateExports runs the plan over row and collects, per export, the
// upsert operations it produced (keyed by the export's name) and a
// manifest of just the exported keys, for diffing against the row's
// previous manifest. row is the whole value a Builder.AddSource call
// wires up as the flow's source root field, so it is passed through as
// that single field, not unwrapped — mirroring how AddDirectInput treats
// each of its callers' values as one opaque root slot.
func (ri *RowIndexer) evaluateExports(ctx context.Context, row value.Value) (map[string][]ops.TargetOp, tracking.ExportedKeysManifest, error) {
	fields := value.FieldValues{row}
	resultRow, err := ri.Evaluator.EvaluateForExport(ctx, fields)
	if err != nil {
		return nil, nil, err
	}

	upserts := map[string][]ops.TargetOp{}
	manifest := tracking.ExportedKeysManifest{}
	for _, exp := range ri.Plan.Exports {
		node, ok := ri.Plan.NodeByName(exp.TargetNode)
		if !ok || node.Kind != plan.OpTarget {
			return nil, nil, errs.Invariance("export %q references unknown target node %q", exp.Name, exp.TargetNode)
		}
		if len(node.Inputs) != 1 {
			return nil, nil, errs.Invariance("export %q: target node %q has no bound input", exp.Name, exp.TargetNode)
		}
		targetVal, err := eval.ResolveRoot(resultRow, node.Inputs[0])
		if err != nil {
			return nil, nil, err
		}
		for _, row := range rowsOf(targetVal) {
			keyVal, valVal := splitKeyValue(row)
			upserts[exp.Name] = append(upserts[exp.Name], ops.TargetOp{Key: keyVal, Value: &valVal})
			manifest[exp.Name] = append(manifest[exp.Name], fmt.Sprintf("%v", keyVal))
		}
	}
	return upserts, manifest, nil
}

// rowsOf flattens a collector's table value into its constituent rows,
// regardless of table kind.
func rowsOf(v value.Value) []value.FieldValues {
	switch v.Kind() {
	case value.KindUTable:
		return v.UTable()
	case value.KindLTable:
		return v.LTable()
	case value.KindKTable:
		rows := make([]value.FieldValues, 0, len(v.KTable()))
		for _, r := range v.KTable() {
			rows = append(rows, append(append(value.FieldValues{}, r.Key...), r.Rest...))
		}
		return rows
	default:
		return nil
	}
}

// splitKeyValue treats a row's first field as its primary key and the
// struct of remaining fields as its value, the shape a KTable row already
// has; a UTable/LTable export is expected to have keyed its first field
// by convention.
func splitKeyValue(row value.FieldValues) (key, val value.Value) {
	if len(row) == 0 {
		return value.Null(), value.Null()
	}
	return row[0], value.FromStruct(row[1:])
}

// applyDiff sends every new upsert for each target and synthesizes
// tombstones for keys present in prev but absent from next, then flushes
// each target's batch through a retry.Batcher sized to the whole batch:
// one retried Apply call per target per row.
func (ri *RowIndexer) applyDiff(ctx context.Context, prev, next tracking.ExportedKeysManifest, upserts map[string][]ops.TargetOp) error {
	for target, executor := range ri.Targets {
		prevKeys := toSet(prev[target])
		nextKeys := toSet(next[target])

		batch := append([]ops.TargetOp{}, upserts[target]...)
		for k := range prevKeys {
			if !nextKeys[k] {
				batch = append(batch, ops.TargetOp{Key: value.FromBasic(value.Str(k)), Value: nil})
			}
		}
		if len(batch) == 0 {
			continue
		}
		applyStart := time.Now()
		batcher := retry.NewBatcher(ri.ApplyRetry.OrHeavy(), len(batch), func(ctx context.Context, flushed []ops.TargetOp) error {
			return executor.Apply(ctx, flushed)
		})
		var applyErr error
		for _, op := range batch {
			if applyErr = batcher.Add(ctx, op); applyErr != nil {
				break
			}
		}
		if applyErr == nil {
			applyErr = batcher.Flush(ctx)
		}
		targetLabels := prometheus.Labels{"flow": ri.FlowID, "target": target}
		diag.TargetApplyDuration.With(targetLabels).Observe(time.Since(applyStart).Seconds())
		if applyErr != nil {
			diag.TargetApplyErrors.With(targetLabels).Inc()
			return applyErr
		}
	}
	return nil
}

func toSet(keys []string) map[string]bool {
	s := make(map[string]bool, len(keys))
	for _, k := range keys {
		s[k] = true
	}
	return s
}
