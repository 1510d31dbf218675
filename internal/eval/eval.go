// Package eval implements the evaluator: drives one input row through a
// plan, resolving field references through a scope stack, invoking
// function executors (through memoization when the operator declares a
// behavior_version), and assembling the result. Grounded on resolver.go's
// process loop, generalized from CDC-event replay to plan-topology-ordered
// transform evaluation, and on internal/source/logical/serial_events.go's
// pattern of a single struct driving a bounded concurrent pipeline.
package eval

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/indexflow/indexflow/internal/errs"
	"github.com/indexflow/indexflow/internal/memo"
	"github.com/indexflow/indexflow/internal/ops"
	"github.com/indexflow/indexflow/internal/plan"
	"github.com/indexflow/indexflow/internal/value"
)

// Scope is one level of the evaluator's scope stack: the row currently
// being assembled plus a pointer to the enclosing scope (nil at the root).
type Scope struct {
	row    value.FieldValues
	parent *Scope
}

// Resolve walks ref relative to this scope: ScopeUpLevel steps out to
// enclosing scopes, then Local.FieldsIdx walks down through nested
// structs by position.
func (s *Scope) Resolve(ref plan.FieldRef) (value.Value, error) {
	target := s
	for i := uint32(0); i < ref.ScopeUpLevel; i++ {
		if target.parent == nil {
			return value.Value{}, errs.Invariance("field reference scope_up_level %d exceeds scope depth", ref.ScopeUpLevel)
		}
		target = target.parent
	}
	cur := value.FromStruct(target.row)
	for _, idx := range ref.Local.FieldsIdx {
		if cur.Kind() != value.KindStruct {
			return value.Value{}, errs.Invariance("field reference walks into a non-struct value")
		}
		fields := cur.Struct()
		if int(idx) >= len(fields) {
			return value.Value{}, errs.Invariance("field index %d out of range (row has %d fields)", idx, len(fields))
		}
		cur = fields[idx]
	}
	return cur, nil
}

// Executors resolves a plan node's registered operator kind to the
// FunctionExecutor and Analysis built for it. The evaluator is executor-
// agnostic: callers (typically the builder/app wiring) supply these.
type Executors struct {
	Functions map[string]ops.FunctionExecutor // keyed by node name
	Analyses  map[string]ops.FunctionAnalysis // keyed by node name
}

// Evaluator drives a Plan over rows.
type Evaluator struct {
	plan       *plan.Plan
	execs      *Executors
	memo       *memo.Cache
	concurrency int
}

// New builds an Evaluator for p, using execs to run each function node and
// caching memoizable results in memoCache. concurrency bounds how many
// independent transform nodes may run at once per row (0 means
// unbounded).
func New(p *plan.Plan, execs *Executors, memoCache *memo.Cache, concurrency int) *Evaluator {
	return &Evaluator{plan: p, execs: execs, memo: memoCache, concurrency: concurrency}
}

// EvaluateTransient runs the plan once over input, returning the value at
// the plan's DirectOutput slot. input must conform to p.InputSchema's
// direct-input fields; transform nodes overwrite their own output slots
// as they run.
func (e *Evaluator) EvaluateTransient(ctx context.Context, input value.FieldValues) (value.Value, error) {
	if e.plan.DirectOutput == nil {
		return value.Value{}, errs.Invariance("plan %q has no direct output", e.plan.Name)
	}
	root := &Scope{row: cloneRow(input, len(e.plan.Nodes))}
	if err := e.run(ctx, root); err != nil {
		return value.Value{}, err
	}
	return root.Resolve(*e.plan.DirectOutput)
}

// EvaluateForExport runs the plan over input and returns the final root
// row, for callers (the row indexer) that need every exported field, not
// just a single direct-output slot.
func (e *Evaluator) EvaluateForExport(ctx context.Context, input value.FieldValues) (value.FieldValues, error) {
	root := &Scope{row: cloneRow(input, len(e.plan.Nodes))}
	if err := e.run(ctx, root); err != nil {
		return nil, err
	}
	return root.row, nil
}

func cloneRow(input value.FieldValues, extraSlots int) value.FieldValues {
	row := make(value.FieldValues, len(input)+extraSlots)
	copy(row, input)
	return row
}

// run evaluates every function node in plan order, grouped into dependency
// levels: level 0 depends only on direct inputs/sources, level N+1 nodes
// consume at least one level-N node's output. Nodes within the same level
// have no data dependency on one another, so they run concurrently through
// RunConcurrent (bounded by e.concurrency); levels themselves run in order,
// since a level's nodes may read an earlier level's output slots.
func (e *Evaluator) run(ctx context.Context, scope *Scope) error {
	for _, level := range e.nodeLevels() {
		if len(level) == 1 {
			if err := e.runOne(ctx, scope, level[0]); err != nil {
				return err
			}
			continue
		}
		fns := make([]func(context.Context) error, len(level))
		for i, n := range level {
			n := n
			fns[i] = func(ctx context.Context) error { return e.runOne(ctx, scope, n) }
		}
		if err := e.RunConcurrent(ctx, fns); err != nil {
			return err
		}
	}
	return nil
}

// nodeLevels buckets the plan's function nodes by dependency depth: a
// node's level is one more than the deepest level among the function nodes
// whose output slot it reads, or 0 if all its inputs come from direct
// inputs or source nodes. Plan order already guarantees a node's inputs
// were declared earlier, so a single left-to-right pass suffices.
func (e *Evaluator) nodeLevels() [][]plan.Node {
	slotLevel := make(map[uint32]int)
	var levels [][]plan.Node
	for _, n := range e.plan.Nodes {
		if n.Kind != plan.OpFunction {
			continue
		}
		level := 0
		for _, ref := range n.Inputs {
			if ref.ScopeUpLevel != 0 || len(ref.Local.FieldsIdx) == 0 {
				continue
			}
			if lvl, ok := slotLevel[ref.Local.FieldsIdx[0]]; ok && lvl+1 > level {
				level = lvl + 1
			}
		}
		slotLevel[n.OutputSlot] = level
		for len(levels) <= level {
			levels = append(levels, nil)
		}
		levels[level] = append(levels[level], n)
	}
	return levels
}

func (e *Evaluator) runOne(ctx context.Context, scope *Scope, n plan.Node) error {
	args := make([]value.Value, len(n.Inputs))
	for i, ref := range n.Inputs {
		v, err := scope.Resolve(ref)
		if err != nil {
			return wrapNodeErr(err, n.Name)
		}
		args[i] = v
	}

	exec, ok := e.execs.Functions[n.Name]
	if !ok {
		return errs.Internal(fmt.Errorf("no executor wired for node %q", n.Name))
	}

	var result value.Value
	var err error
	if n.BehaviorVersion != nil && e.memo != nil {
		argPayloads := make([]any, len(args))
		for i, a := range args {
			argPayloads[i] = value.CanonicalPayload(a)
		}
		key, kerr := memo.Key(n.OperatorKind, n.SpecJSON, argPayloads, *n.BehaviorVersion)
		if kerr != nil {
			return errs.Internal(kerr).WithContext("node " + n.Name)
		}
		var out any
		out, err = e.memo.Do(key, func() (any, error) {
			return exec.Evaluate(ctx, args)
		})
		if err == nil {
			result = out.(value.Value)
		}
	} else {
		result, err = exec.Evaluate(ctx, args)
	}
	if err != nil {
		return wrapNodeErr(err, n.Name)
	}

	if n.OutputSchema != nil {
		if cerr := value.Conforms(result, *n.OutputSchema); cerr != nil {
			return wrapNodeErr(cerr, n.Name)
		}
	}
	scope.row[n.OutputSlot] = result
	return nil
}

// ResolveRoot resolves ref against row as a root scope with no enclosing
// scope, for callers outside the evaluator (the row indexer, reading an
// export's value out of the row EvaluateForExport produced) that need to
// read a plan field reference directly rather than through a live Scope.
func ResolveRoot(row value.FieldValues, ref plan.FieldRef) (value.Value, error) {
	scope := &Scope{row: row}
	return scope.Resolve(ref)
}

func wrapNodeErr(err error, nodeName string) error {
	var e *errs.Error
	if as, ok := err.(*errs.Error); ok {
		e = as
	} else {
		e = errs.Internal(err)
	}
	return e.WithContext("node " + nodeName)
}

// RunConcurrent evaluates a set of independent closures (e.g. per-node
// evaluation with no data dependency among them) bounded by the
// evaluator's configured concurrency, returning the first error
// encountered and cancelling the rest: transform invocations for
// independent operators may run concurrently up to a configured degree.
func (e *Evaluator) RunConcurrent(ctx context.Context, fns []func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	if e.concurrency > 0 {
		g.SetLimit(e.concurrency)
	}
	for _, fn := range fns {
		fn := fn
		g.Go(func() error { return fn(gctx) })
	}
	return g.Wait()
}
