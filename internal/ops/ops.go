// Package ops defines the three operator capability sets — source, simple
// function, target — and the process-wide registry that maps a spec's
// "kind" string to a factory. Grounded on the original's
// ops/registration.rs: a lazily-initialized RWMutex-guarded registry,
// feature-gated bulk registration of built-ins, and client errors on
// duplicate or missing lookups.
package ops

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/indexflow/indexflow/internal/errs"
	"github.com/indexflow/indexflow/internal/schema"
	"github.com/indexflow/indexflow/internal/value"
)

// AnalyzeContext carries the services an operator's analyze phase may need
// — currently just the auth registry lookup, threaded in by the caller
// rather than reached for globally.
type AnalyzeContext struct {
	Context context.Context
	Auth    AuthResolver
}

// AuthResolver is the minimal auth-registry surface ops.Factory
// implementations depend on, letting internal/ops avoid importing
// internal/auth directly (auth payloads are opaque to the operator layer
// until a concrete operator type-asserts them).
type AuthResolver interface {
	Resolve(key string) (any, error)
}

// SourceFactory produces a cursor-style executor over rows supplied by an
// external system.
type SourceFactory interface {
	Analyze(ctx *AnalyzeContext, spec json.RawMessage) (SourceAnalysis, error)
	BuildExecutor(ctx context.Context, spec json.RawMessage, analysis SourceAnalysis) (SourceExecutor, error)
}

// SourceAnalysis is the statically-resolved shape of a source's output row.
type SourceAnalysis struct {
	RowSchema schema.StructSchema
}

// SourceItem is one row yielded by a SourceExecutor: a primary key, its
// current value (nil signals the key was deleted), and a monotonic
// ordinal the tracking layer uses for fast_fingerprint mode.
type SourceItem struct {
	PrimaryKey value.Value
	Row        *value.Value
	Ordinal    int64
}

// SourceExecutor yields the full current change-set since a prior opaque
// state token, and returns the new token to persist.
type SourceExecutor interface {
	List(ctx context.Context, sinceState []byte) (items []SourceItem, newState []byte, err error)
}

// SimpleFunctionFactory is a pure-ish transform: args in, one value out.
type SimpleFunctionFactory interface {
	Analyze(ctx *AnalyzeContext, spec json.RawMessage, args *ArgsResolver) (FunctionAnalysis, error)
	BuildExecutor(ctx context.Context, spec json.RawMessage, analysis FunctionAnalysis) (FunctionExecutor, error)
}

// FunctionAnalysis is the statically-resolved output of a function
// operator, plus the behavior_version folded into memoization keys.
type FunctionAnalysis struct {
	OutputSchema    schema.EnrichedValueType
	BehaviorVersion *int64
}

// FunctionExecutor evaluates one invocation given its already-resolved
// argument values, in positional-then-named order matching the
// ArgsResolver calls made during Analyze.
type FunctionExecutor interface {
	Evaluate(ctx context.Context, args []value.Value) (value.Value, error)
}

// TargetOp is one desired state change for a primary key: Value == nil
// means delete (a tombstone).
type TargetOp struct {
	Key   value.Value
	Value *value.Value
}

// TargetFactory describes a sink and builds the executor that applies
// batches of keyed upserts/tombstones atomically per key.
type TargetFactory interface {
	Analyze(ctx *AnalyzeContext, spec json.RawMessage, rowSchema schema.StructSchema) (TargetAnalysis, error)
	BuildExecutor(ctx context.Context, spec json.RawMessage, analysis TargetAnalysis) (TargetExecutor, error)
}

// TargetAnalysis is the statically-resolved shape a target was configured
// against.
type TargetAnalysis struct {
	KeySchema   schema.StructSchema
	ValueSchema schema.StructSchema
}

// TargetExecutor applies one batch of operations atomically.
type TargetExecutor interface {
	Apply(ctx context.Context, ops []TargetOp) error
}

// Registry maps operator kind strings to factories, one map per operator
// family, under a single read-write lock (the three families rarely
// register independently of each other, so sharing one lock mirrors the
// original's single ExecutorFactoryRegistry).
type Registry struct {
	mu        sync.RWMutex
	sources   map[string]SourceFactory
	functions map[string]SimpleFunctionFactory
	targets   map[string]TargetFactory
}

func newRegistry() *Registry {
	return &Registry{
		sources:   make(map[string]SourceFactory),
		functions: make(map[string]SimpleFunctionFactory),
		targets:   make(map[string]TargetFactory),
	}
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the process-wide registry, lazily bulk-registering
// built-in factories on first use.
func Global() *Registry {
	globalOnce.Do(func() {
		global = newRegistry()
		registerBuiltins(global)
	})
	return global
}

// RegisterSource registers a new source factory. Re-registering an
// existing kind is a client error.
func (r *Registry) RegisterSource(kind string, f SourceFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sources[kind]; exists {
		return errs.Client("source kind %q already registered", kind)
	}
	r.sources[kind] = f
	return nil
}

// RegisterFunction registers a new simple function factory.
func (r *Registry) RegisterFunction(kind string, f SimpleFunctionFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.functions[kind]; exists {
		return errs.Client("function kind %q already registered", kind)
	}
	r.functions[kind] = f
	return nil
}

// RegisterTarget registers a new target factory.
func (r *Registry) RegisterTarget(kind string, f TargetFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.targets[kind]; exists {
		return errs.Client("target kind %q already registered", kind)
	}
	r.targets[kind] = f
	return nil
}

func (r *Registry) Source(kind string) (SourceFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.sources[kind]
	if !ok {
		return nil, errs.Client("unknown source kind %q", kind)
	}
	return f, nil
}

func (r *Registry) Function(kind string) (SimpleFunctionFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.functions[kind]
	if !ok {
		return nil, errs.Client("unknown function kind %q", kind)
	}
	return f, nil
}

func (r *Registry) Target(kind string) (TargetFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.targets[kind]
	if !ok {
		return nil, errs.Client("unknown target kind %q", kind)
	}
	return f, nil
}

// OptionalFunction looks a function factory up without the not-found
// client error, for callers that want to probe availability (e.g. a
// feature-gated built-in that may not have been compiled in).
func (r *Registry) OptionalFunction(kind string) (SimpleFunctionFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.functions[kind]
	return f, ok
}
