package eval_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexflow/indexflow/internal/builder"
	"github.com/indexflow/indexflow/internal/eval"
	"github.com/indexflow/indexflow/internal/ops"
	_ "github.com/indexflow/indexflow/internal/ops/builtin"
	"github.com/indexflow/indexflow/internal/plan"
	"github.com/indexflow/indexflow/internal/schema"
	"github.com/indexflow/indexflow/internal/value"
)

// Exercises a transient flow, input -> ReverseString -> output, end to end
// through the builder and evaluator.
func TestTransientFlow_ReverseString(t *testing.T) {
	registry := ops.Global()

	b := builder.New("reverse_demo", registry, nil)
	inputType := schema.EnrichedValueType{Typ: schema.BasicType(schema.Str())}
	inputRef := b.AddDirectInput("text", inputType)

	outRef, err := b.AddTransform(context.Background(), "reversed", "ReverseString", nil,
		[]plan.FieldRef{inputRef}, []schema.EnrichedValueType{inputType}, []string{""})
	require.NoError(t, err)

	b.SetDirectOutput(outRef)
	p, err := b.BuildTransient()
	require.NoError(t, err)

	factory, err := registry.Function("ReverseString")
	require.NoError(t, err)
	analysis, err := factory.Analyze(&ops.AnalyzeContext{Context: context.Background()}, nil,
		ops.NewArgsResolver("ReverseString", []schema.EnrichedValueType{inputType}, nil))
	require.NoError(t, err)
	exec, err := factory.BuildExecutor(context.Background(), nil, analysis)
	require.NoError(t, err)

	execs := &eval.Executors{
		Functions: map[string]ops.FunctionExecutor{"reversed": exec},
		Analyses:  map[string]ops.FunctionAnalysis{"reversed": analysis},
	}

	evaluator := eval.New(p, execs, nil, 0)
	result, err := evaluator.EvaluateTransient(context.Background(), value.FieldValues{
		value.FromBasic(value.Str("ReCoco is Awesome")),
	})
	require.NoError(t, err)
	assert.Equal(t, value.Str("emosewA si ocoCeR"), result.Basic())
}
