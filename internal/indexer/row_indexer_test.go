package indexer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexflow/indexflow/internal/app"
	"github.com/indexflow/indexflow/internal/builder"
	"github.com/indexflow/indexflow/internal/eval"
	"github.com/indexflow/indexflow/internal/indexer"
	"github.com/indexflow/indexflow/internal/ops"
	"github.com/indexflow/indexflow/internal/ops/builtin"
	"github.com/indexflow/indexflow/internal/plan"
	"github.com/indexflow/indexflow/internal/schema"
	"github.com/indexflow/indexflow/internal/value"
)

// buildRowIndexerPlan wires rows -(ReverseString)-> reversed -(Collect)->
// collected -(export)-> sink entirely through the builder, mirroring
// internal/builder's own persistent-flow test but kept local here since
// the indexer test also needs the concrete source/target executors the
// builder's Analyze calls only validated against, not returned.
func buildRowIndexerPlan(t *testing.T) *plan.Plan {
	t.Helper()
	registry := ops.Global()
	ctx := context.Background()

	b := builder.New("row_indexer_demo", registry, nil)
	sourceRef, err := b.AddSource(ctx, "rows", "Memory", []byte(`{"row_schema":[{"name":"text"}]}`))
	require.NoError(t, err)

	textType := schema.EnrichedValueType{Typ: schema.BasicType(schema.Str())}
	textRef := sourceRef
	textRef.Local.FieldsIdx = append(append([]uint32{}, sourceRef.Local.FieldsIdx...), 0)

	reversedRef, err := b.AddTransform(ctx, "reversed", "ReverseString", nil,
		[]plan.FieldRef{textRef}, []schema.EnrichedValueType{textType}, []string{""})
	require.NoError(t, err)

	collectedRef, err := b.AddTransform(ctx, "collected", "Collect", nil,
		[]plan.FieldRef{textRef, reversedRef},
		[]schema.EnrichedValueType{textType, textType},
		[]string{"", ""})
	require.NoError(t, err)

	rowSchema := schema.StructSchema{Fields: []schema.FieldSchema{
		{Name: "key", ValueType: textType},
		{Name: "value", ValueType: textType},
	}}
	b.AddCollector("collected", "root", rowSchema, schema.UTable)
	require.NoError(t, b.AddTargetNode(ctx, "sink", "Memory", nil, collectedRef, rowSchema))
	require.NoError(t, b.AddExport("export_collected", "collected", "sink"))

	p, err := b.BuildPersistent()
	require.NoError(t, err)
	return p
}

// buildExecutors re-runs each function node's Analyze/BuildExecutor pair
// against the same arguments the builder used, the way internal/app's
// wiring would assemble an eval.Executors for a plan it just built.
func buildExecutors(t *testing.T) *eval.Executors {
	t.Helper()
	ctx := context.Background()
	registry := ops.Global()
	strType := schema.EnrichedValueType{Typ: schema.BasicType(schema.Str())}

	reverseFactory, err := registry.Function("ReverseString")
	require.NoError(t, err)
	reverseAnalysis, err := reverseFactory.Analyze(&ops.AnalyzeContext{Context: ctx}, nil,
		ops.NewArgsResolver("ReverseString", []schema.EnrichedValueType{strType}, nil))
	require.NoError(t, err)
	reverseExec, err := reverseFactory.BuildExecutor(ctx, nil, reverseAnalysis)
	require.NoError(t, err)

	collectFactory, err := registry.Function("Collect")
	require.NoError(t, err)
	collectAnalysis, err := collectFactory.Analyze(&ops.AnalyzeContext{Context: ctx}, nil,
		ops.NewArgsResolver("Collect", []schema.EnrichedValueType{strType, strType}, nil))
	require.NoError(t, err)
	collectExec, err := collectFactory.BuildExecutor(ctx, nil, collectAnalysis)
	require.NoError(t, err)

	return &eval.Executors{
		Functions: map[string]ops.FunctionExecutor{"reversed": reverseExec, "collected": collectExec},
		Analyses:  map[string]ops.FunctionAnalysis{"reversed": reverseAnalysis, "collected": collectAnalysis},
	}
}

// Exercises the full persistent-flow path the reviewer asked for: a
// builder-produced plan, driven by a real eval.Evaluator, reconciled by a
// RowIndexer against an in-memory tracking store, writing into a real
// MemoryTarget rather than a hand-assembled map of stub executors.
func TestRowIndexer_SourceToTarget(t *testing.T) {
	ctx := context.Background()
	registry := ops.Global()
	p := buildRowIndexerPlan(t)
	evaluator := eval.New(p, buildExecutors(t), nil, 0)

	sourceFactory, err := registry.Source("Memory")
	require.NoError(t, err)
	sourceAnalysis, err := sourceFactory.Analyze(&ops.AnalyzeContext{Context: ctx}, []byte(`{"row_schema":[{"name":"text"}]}`))
	require.NoError(t, err)
	sourceExecAny, err := sourceFactory.BuildExecutor(ctx, nil, sourceAnalysis)
	require.NoError(t, err)
	memSource := sourceExecAny.(*builtin.MemorySource)

	targetFactory, err := registry.Target("Memory")
	require.NoError(t, err)
	targetAnalysis, err := targetFactory.Analyze(&ops.AnalyzeContext{Context: ctx}, nil, schema.StructSchema{})
	require.NoError(t, err)
	targetExecAny, err := targetFactory.BuildExecutor(ctx, nil, targetAnalysis)
	require.NoError(t, err)
	memTarget := targetExecAny.(*builtin.MemoryTarget)

	ri := &indexer.RowIndexer{
		FlowID:     "flow1",
		SourceID:   "rows",
		SourceKind: "Memory",
		Mode:       indexer.StrictFingerprint,
		Plan:       p,
		Evaluator:  evaluator,
		Store:      app.NewMemoryStore(),
		Targets:    map[string]ops.TargetExecutor{"export_collected": memTarget},
	}

	keyVal := value.FromBasic(value.Str("hello"))
	memSource.Put(keyVal, value.FromStruct(value.FieldValues{keyVal}))

	items, _, err := memSource.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)

	wrote, err := ri.IndexRow(ctx, items[0])
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, 1, memTarget.Len())

	got, ok := memTarget.Get(keyVal.String())
	require.True(t, ok)
	require.Equal(t, value.KindStruct, got.Kind())
	assert.Equal(t, "olleh", got.Struct()[0].Basic().StrVal())

	// A second pass over the same unchanged row must be a fingerprint-match
	// no-op: no further target write occurs.
	wrote, err = ri.IndexRow(ctx, items[0])
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Equal(t, 1, memTarget.Len())
}
