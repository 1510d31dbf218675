// Package builtin registers the engine's built-in operator set: pure
// transform functions plus the in-memory source/target pair used by
// indexer tests in place of a real external system. Grounded on the
// teacher's registration pattern (internal/ops.Registry), generalized
// from cdc-sink's fixed Postgres/MySQL/Redshift appliers to a pluggable
// operator registry.
package builtin

import (
	"context"
	"encoding/json"

	"github.com/indexflow/indexflow/internal/errs"
	"github.com/indexflow/indexflow/internal/ops"
	"github.com/indexflow/indexflow/internal/schema"
	"github.com/indexflow/indexflow/internal/value"
)

func init() {
	ops.RegisterBuiltinHook(registerBuiltins)
}

func registerBuiltins(r *ops.Registry, set ops.BuiltinSet) {
	if set&ops.BuiltinFunctions != 0 {
		must(r.RegisterFunction("ReverseString", reverseStringFactory{}))
		must(r.RegisterFunction("Collect", collectFactory{}))
	}
	if set&ops.BuiltinSources != 0 {
		must(r.RegisterSource("Memory", memSourceFactory{}))
	}
	if set&ops.BuiltinTargets != 0 {
		must(r.RegisterTarget("Memory", memTargetFactory{}))
	}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// reverseStringFactory implements the "ReverseString" function: a single
// required string argument in, its Unicode-codepoint reversal out.
type reverseStringFactory struct{}

func (reverseStringFactory) Analyze(ctx *ops.AnalyzeContext, spec json.RawMessage, args *ops.ArgsResolver) (ops.FunctionAnalysis, error) {
	arg, err := args.Arg("")
	if err != nil {
		return ops.FunctionAnalysis{}, err
	}
	arg, err = arg.ExpectType(schema.BasicType(schema.Str()))
	if err != nil {
		return ops.FunctionAnalysis{}, err
	}
	typ, err := arg.Required()
	if err != nil {
		return ops.FunctionAnalysis{}, err
	}
	if err := args.Done(); err != nil {
		return ops.FunctionAnalysis{}, err
	}
	return ops.FunctionAnalysis{OutputSchema: typ}, nil
}

func (reverseStringFactory) BuildExecutor(ctx context.Context, spec json.RawMessage, analysis ops.FunctionAnalysis) (ops.FunctionExecutor, error) {
	return reverseStringExecutor{}, nil
}

type reverseStringExecutor struct{}

func (reverseStringExecutor) Evaluate(ctx context.Context, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, errs.Invariance("ReverseString: expected exactly 1 argument, got %d", len(args))
	}
	b := args[0].Basic()
	if b.Kind() != schema.KindStr {
		return value.Value{}, errs.Invariance("ReverseString: expected a Str argument, got %s", b.Kind())
	}
	runes := []rune(b.StrVal())
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return value.FromBasic(value.Str(string(runes))), nil
}
