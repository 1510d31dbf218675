package builder_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexflow/indexflow/internal/builder"
	"github.com/indexflow/indexflow/internal/ops"
	_ "github.com/indexflow/indexflow/internal/ops/builtin"
	"github.com/indexflow/indexflow/internal/plan"
	"github.com/indexflow/indexflow/internal/schema"
)

// buildPersistentDemo wires rows -(ReverseString)-> reversed -(Collect)->
// collected -(export)-> sink through the builder, returning the collector
// node's FieldRef (the value handed to AddTargetNode) alongside the
// builder for further assertions.
func buildPersistentDemo(t *testing.T, name string) (*builder.Builder, plan.FieldRef) {
	t.Helper()
	registry := ops.Global()
	ctx := context.Background()

	b := builder.New(name, registry, nil)

	sourceRef, err := b.AddSource(ctx, "rows", "Memory",
		[]byte(`{"row_schema":[{"name":"text"}]}`))
	require.NoError(t, err)

	textRef, textType, err := fieldAt(b, sourceRef, 0)
	require.NoError(t, err)

	reversedRef, err := b.AddTransform(ctx, "reversed", "ReverseString", nil,
		[]plan.FieldRef{textRef}, []schema.EnrichedValueType{textType}, []string{""})
	require.NoError(t, err)

	collectedRef, err := b.AddTransform(ctx, "collected", "Collect", nil,
		[]plan.FieldRef{textRef, reversedRef},
		[]schema.EnrichedValueType{textType, textType},
		[]string{"", ""})
	require.NoError(t, err)

	return b, collectedRef
}

// Exercises the persistent-flow path end to end through the builder: a
// "Memory" source feeds a ReverseString transform, whose paired key/value
// is collected and exported to a "Memory" target, entirely via Add* calls
// — no hand-assembled plan.Plan or TargetExecutor map.
func TestBuildPersistent_SourceToTarget(t *testing.T) {
	ctx := context.Background()
	b, collectedRef := buildPersistentDemo(t, "persistent_demo")

	rowSchema := schema.StructSchema{Fields: []schema.FieldSchema{
		{Name: "key", ValueType: schema.EnrichedValueType{Typ: schema.BasicType(schema.Str())}},
		{Name: "value", ValueType: schema.EnrichedValueType{Typ: schema.BasicType(schema.Str())}},
	}}
	b.AddCollector("collected", "root", rowSchema, schema.UTable)

	require.NoError(t, b.AddTargetNode(ctx, "sink", "Memory", nil, collectedRef, rowSchema))
	require.NoError(t, b.AddExport("export_collected", "collected", "sink"))

	p, err := b.BuildPersistent()
	require.NoError(t, err)
	assert.Equal(t, "persistent_demo", p.Name)
	require.Len(t, p.Exports, 1)

	node, ok := p.NodeByName("sink")
	require.True(t, ok)
	assert.Equal(t, plan.OpTarget, node.Kind)
	require.Len(t, node.Inputs, 1)
}

// BuildPersistent must refuse a flow with no source, even though every
// declared node is otherwise fully connected.
func TestBuildPersistent_RequiresSource(t *testing.T) {
	registry := ops.Global()
	ctx := context.Background()

	b := builder.New("no_source", registry, nil)
	inputType := schema.EnrichedValueType{Typ: schema.BasicType(schema.Str())}
	inputRef := b.AddDirectInput("text", inputType)

	reversedRef, err := b.AddTransform(ctx, "reversed", "ReverseString", nil,
		[]plan.FieldRef{inputRef}, []schema.EnrichedValueType{inputType}, []string{""})
	require.NoError(t, err)

	collectedRef, err := b.AddTransform(ctx, "collected", "Collect", nil,
		[]plan.FieldRef{inputRef, reversedRef},
		[]schema.EnrichedValueType{inputType, inputType},
		[]string{"", ""})
	require.NoError(t, err)

	rowSchema := schema.StructSchema{Fields: []schema.FieldSchema{
		{Name: "key", ValueType: inputType},
		{Name: "value", ValueType: inputType},
	}}
	b.AddCollector("collected", "root", rowSchema, schema.UTable)
	require.NoError(t, b.AddTargetNode(ctx, "sink", "Memory", nil, collectedRef, rowSchema))
	require.NoError(t, b.AddExport("export_collected", "collected", "sink"))

	_, err = b.BuildPersistent()
	assert.Error(t, err)
}

// AddExport must reject a target name that isn't actually a target node.
func TestAddExport_RejectsNonTargetNode(t *testing.T) {
	registry := ops.Global()
	ctx := context.Background()

	b := builder.New("bad_export", registry, nil)
	inputType := schema.EnrichedValueType{Typ: schema.BasicType(schema.Str())}
	inputRef := b.AddDirectInput("text", inputType)
	_, err := b.AddTransform(ctx, "reversed", "ReverseString", nil,
		[]plan.FieldRef{inputRef}, []schema.EnrichedValueType{inputType}, []string{""})
	require.NoError(t, err)

	rowSchema := schema.StructSchema{Fields: []schema.FieldSchema{{Name: "reversed"}}}
	b.AddCollector("reversed", "root", rowSchema, schema.UTable)

	err = b.AddExport("export_reversed", "reversed", "reversed")
	assert.Error(t, err)
}

// fieldAt builds a FieldRef into the nth field of a struct-typed ref — a
// small local stand-in for what resolveSpecRef does for a dotted
// spec.FieldRef. The field's type is returned as a fixed Str rather than
// looked up through the builder.
func fieldAt(b *builder.Builder, base plan.FieldRef, idx uint32) (plan.FieldRef, schema.EnrichedValueType, error) {
	ref := base
	ref.Local.FieldsIdx = append(append([]uint32{}, base.Local.FieldsIdx...), idx)
	// The source's row schema declares every field as Str (see
	// memSourceFactory.Analyze), so the field type is known without a
	// builder-side lookup.
	return ref, schema.EnrichedValueType{Typ: schema.BasicType(schema.Str())}, nil
}
