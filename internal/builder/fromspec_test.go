package builder_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexflow/indexflow/internal/builder"
	"github.com/indexflow/indexflow/internal/ops"
	_ "github.com/indexflow/indexflow/internal/ops/builtin"
	"github.com/indexflow/indexflow/internal/plan"
	"github.com/indexflow/indexflow/internal/schema"
	"github.com/indexflow/indexflow/internal/spec"
)

// Round-trips a declarative FlowSpec — the JSON shape a client submits —
// into a working persistent plan, without a single programmatic Add* call
// from the test itself.
func TestFromSpec_PersistentFlow(t *testing.T) {
	fs := spec.FlowSpec{
		Name: "reverse_pipeline",
		Sources: []spec.TransformSpec{
			{Name: "rows", Kind: "Memory", Spec: json.RawMessage(`{"row_schema":[{"name":"text"}]}`)},
		},
		Transforms: []spec.TransformSpec{
			{
				Name: "reversed",
				Kind: "ReverseString",
				Inputs: []spec.ArgBinding{
					{Ref: spec.FieldRef{Node: "rows", Path: []string{"text"}}},
				},
			},
			{
				Name: "collected",
				Kind: "Collect",
				Inputs: []spec.ArgBinding{
					{Ref: spec.FieldRef{Node: "rows", Path: []string{"text"}}},
					{Ref: spec.FieldRef{Node: "reversed"}},
				},
			},
		},
		Collectors: []spec.CollectorSpec{
			{Name: "collected", Scope: "root"},
		},
		Exports: []spec.ExportSpec{
			{Name: "sink", Collector: "collected", Kind: "Memory"},
		},
	}

	p, err := builder.FromSpec(context.Background(), fs, ops.Global(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "reverse_pipeline", p.Name)
	require.Len(t, p.Exports, 1)
	assert.Equal(t, "sink", p.Exports[0].TargetNode)

	node, ok := p.NodeByName("sink")
	require.True(t, ok)
	assert.Equal(t, plan.OpTarget, node.Kind)

	srcNode, ok := p.NodeByName("rows")
	require.True(t, ok)
	assert.Equal(t, plan.OpSource, srcNode.Kind)
}

// A transient FlowSpec (no exports, fs.Output set) round-trips through
// FromSpec to a transient plan with a DirectOutput, using a
// builder-supplied direct input type since FlowSpec carries no wire
// representation for an EnrichedValueType.
func TestFromSpec_TransientFlow(t *testing.T) {
	textType := schema.EnrichedValueType{Typ: schema.BasicType(schema.Str())}
	fs := spec.FlowSpec{
		Name:         "reverse_transient",
		DirectInputs: []spec.DirectInputSpec{{Name: "text"}},
		Transforms: []spec.TransformSpec{
			{
				Name: "reversed",
				Kind: "ReverseString",
				Inputs: []spec.ArgBinding{
					{Ref: spec.FieldRef{Node: "text"}},
				},
			},
		},
		Output: &spec.FieldRef{Node: "reversed"},
	}

	p, err := builder.FromSpec(context.Background(), fs, ops.Global(), nil,
		map[string]schema.EnrichedValueType{"text": textType})
	require.NoError(t, err)
	assert.Equal(t, "reverse_transient", p.Name)
	require.NotNil(t, p.DirectOutput)

	node, ok := p.NodeByName("reversed")
	require.True(t, ok)
	assert.Equal(t, plan.OpFunction, node.Kind)
}

// A declared direct input with no supplied type must be rejected rather
// than silently zero-valued.
func TestFromSpec_MissingDirectInputType(t *testing.T) {
	fs := spec.FlowSpec{
		Name:         "missing_type",
		DirectInputs: []spec.DirectInputSpec{{Name: "text"}},
		Output:       &spec.FieldRef{Node: "text"},
	}

	_, err := builder.FromSpec(context.Background(), fs, ops.Global(), nil, nil)
	assert.Error(t, err)
}
