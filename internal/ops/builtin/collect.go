package builtin

import (
	"context"
	"encoding/json"

	"github.com/indexflow/indexflow/internal/errs"
	"github.com/indexflow/indexflow/internal/ops"
	"github.com/indexflow/indexflow/internal/schema"
	"github.com/indexflow/indexflow/internal/value"
)

// collectFactory implements "Collect": the function-operator form of a
// scope's `.collect(key, value)` call. It pairs its two positional
// arguments into a single two-field row and wraps that row as the sole
// entry of a one-row UTable — the shape a collector accumulates and an
// export target consumes, with the first field serving as the row's
// primary key per the row indexer's key/value split convention.
type collectFactory struct{}

func (collectFactory) Analyze(ctx *ops.AnalyzeContext, spec json.RawMessage, args *ops.ArgsResolver) (ops.FunctionAnalysis, error) {
	keyArg, err := args.Arg("")
	if err != nil {
		return ops.FunctionAnalysis{}, err
	}
	keyType, err := keyArg.Required()
	if err != nil {
		return ops.FunctionAnalysis{}, err
	}

	valArg, err := args.Arg("")
	if err != nil {
		return ops.FunctionAnalysis{}, err
	}
	valType, err := valArg.Required()
	if err != nil {
		return ops.FunctionAnalysis{}, err
	}

	if err := args.Done(); err != nil {
		return ops.FunctionAnalysis{}, err
	}

	row := schema.StructSchema{Fields: []schema.FieldSchema{
		{Name: "key", ValueType: keyType},
		{Name: "value", ValueType: valType},
	}}
	return ops.FunctionAnalysis{
		OutputSchema: schema.EnrichedValueType{Typ: schema.TableType(schema.TableSchema{Kind: schema.UTable, Row: row})},
	}, nil
}

func (collectFactory) BuildExecutor(ctx context.Context, spec json.RawMessage, analysis ops.FunctionAnalysis) (ops.FunctionExecutor, error) {
	return collectExecutor{}, nil
}

type collectExecutor struct{}

func (collectExecutor) Evaluate(ctx context.Context, args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Value{}, errs.Invariance("Collect: expected exactly 2 arguments (key, value), got %d", len(args))
	}
	return value.FromUTable([]value.FieldValues{{args[0], args[1]}}), nil
}
