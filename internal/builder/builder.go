// Package builder implements the stateful flow construction API: direct
// inputs, transforms bound to operator factories, collectors, exports, and
// (for transient flows) a direct output slot. Validation and the
// analyze-phase factory calls happen eagerly as each piece is added,
// mirroring the original flow builder's "resolve as you go" discipline.
package builder

import (
	"context"
	"encoding/json"

	"github.com/indexflow/indexflow/internal/errs"
	"github.com/indexflow/indexflow/internal/ops"
	"github.com/indexflow/indexflow/internal/plan"
	"github.com/indexflow/indexflow/internal/schema"
)

// fieldBinding is the FieldRef and resolved type of a name the builder has
// already produced — a direct input, a source's row, or a transform's
// output — letting later calls (notably FromSpec) resolve a dotted field
// reference by name instead of threading FieldRefs through by hand.
type fieldBinding struct {
	ref plan.FieldRef
	typ schema.EnrichedValueType
}

// Builder accumulates a flow's declaration and produces an immutable Plan.
type Builder struct {
	name     string
	registry *ops.Registry
	auth     ops.AuthResolver

	rootFields []schema.FieldSchema
	nodes      []plan.Node
	nodeIndex  map[string]int
	fieldInfo  map[string]fieldBinding
	collectors []plan.Collector
	exports    []plan.Export
	connected  map[string]bool // node/input name -> has at least one consumer
	output     *plan.FieldRef
	hasSource  bool
}

// New starts building a flow named name against registry, resolving auth
// references through auth.
func New(name string, registry *ops.Registry, auth ops.AuthResolver) *Builder {
	return &Builder{
		name:      name,
		registry:  registry,
		auth:      auth,
		nodeIndex: make(map[string]int),
		fieldInfo: make(map[string]fieldBinding),
		connected: make(map[string]bool),
	}
}

// AddDirectInput declares a named, typed root-scope input slot and returns
// its FieldRef.
func (b *Builder) AddDirectInput(name string, typ schema.EnrichedValueType) plan.FieldRef {
	idx := uint32(len(b.rootFields))
	b.rootFields = append(b.rootFields, schema.FieldSchema{Name: name, ValueType: typ})
	b.connected[name] = false
	ref := plan.FieldRef{Local: plan.LocalFieldRef{FieldsIdx: []uint32{idx}}}
	b.fieldInfo[name] = fieldBinding{ref: ref, typ: typ}
	return ref
}

// FieldRefFor returns the FieldRef and resolved type of a previously added
// direct input, source, or transform, by name.
func (b *Builder) FieldRefFor(name string) (plan.FieldRef, schema.EnrichedValueType, error) {
	info, ok := b.fieldInfo[name]
	if !ok {
		return plan.FieldRef{}, schema.EnrichedValueType{}, errs.Client("unknown field %q", name)
	}
	return info.ref, info.typ, nil
}

// AddSource looks up kind in the registry, runs its Analyze, and records
// the resulting node as one of the flow's sources: its row, like a
// transform's output, becomes a struct-typed root field later transforms
// can read from. Marks the flow as having a source for BuildPersistent.
func (b *Builder) AddSource(ctx context.Context, name, kind string, specJSON json.RawMessage) (plan.FieldRef, error) {
	if _, dup := b.nodeIndex[name]; dup {
		return plan.FieldRef{}, errs.Client("source %q already declared", name)
	}
	factory, err := b.registry.Source(kind)
	if err != nil {
		return plan.FieldRef{}, err
	}

	analysis, err := factory.Analyze(&ops.AnalyzeContext{Context: ctx, Auth: b.auth}, specJSON)
	if err != nil {
		return plan.FieldRef{}, errs.Client("source %q: %v", name, err)
	}

	outType := schema.EnrichedValueType{Typ: schema.StructType(analysis.RowSchema)}
	outSlot := uint32(len(b.rootFields))
	b.rootFields = append(b.rootFields, schema.FieldSchema{Name: name, ValueType: outType})

	node := plan.Node{
		Name:         name,
		Kind:         plan.OpSource,
		OperatorKind: kind,
		SpecJSON:     specJSON,
		OutputSchema: &outType,
		OutputSlot:   outSlot,
	}
	b.nodeIndex[name] = len(b.nodes)
	b.nodes = append(b.nodes, node)
	b.connected[name] = false
	b.hasSource = true

	ref := plan.FieldRef{Local: plan.LocalFieldRef{FieldsIdx: []uint32{outSlot}}}
	b.fieldInfo[name] = fieldBinding{ref: ref, typ: outType}
	return ref, nil
}

// AddTargetNode looks up kind in the registry, runs its Analyze against
// rowSchema, and records the resulting node as an export target: the same
// eager-Analyze treatment AddTransform gives function operators. input is
// the value the target consumes — typically a collector's produced table
// — and is recorded the same way a transform's inputs are, so
// checkAllConnected covers targets too.
func (b *Builder) AddTargetNode(ctx context.Context, name, kind string, specJSON json.RawMessage, input plan.FieldRef, rowSchema schema.StructSchema) error {
	if _, dup := b.nodeIndex[name]; dup {
		return errs.Client("target %q already declared", name)
	}
	factory, err := b.registry.Target(kind)
	if err != nil {
		return err
	}
	if _, err := factory.Analyze(&ops.AnalyzeContext{Context: ctx, Auth: b.auth}, specJSON, rowSchema); err != nil {
		return errs.Client("target %q: %v", name, err)
	}

	node := plan.Node{
		Name:         name,
		Kind:         plan.OpTarget,
		OperatorKind: kind,
		SpecJSON:     specJSON,
		Inputs:       []plan.FieldRef{input},
	}
	b.nodeIndex[name] = len(b.nodes)
	b.nodes = append(b.nodes, node)
	b.markConnected(input)
	return nil
}

// AddTransform looks up kind in the registry, runs its Analyze against
// inputTypes, and records the resulting node. inputs must align 1:1 with
// inputTypes (the caller resolved each FieldRef's type beforehand).
func (b *Builder) AddTransform(ctx context.Context, name, kind string, specJSON json.RawMessage, inputs []plan.FieldRef, inputTypes []schema.EnrichedValueType, argNames []string) (plan.FieldRef, error) {
	if _, dup := b.nodeIndex[name]; dup {
		return plan.FieldRef{}, errs.Client("transform %q already declared", name)
	}
	factory, err := b.registry.Function(kind)
	if err != nil {
		return plan.FieldRef{}, err
	}

	positional := make([]schema.EnrichedValueType, 0, len(inputTypes))
	named := make(map[string]schema.EnrichedValueType)
	for i, t := range inputTypes {
		if argNames[i] == "" {
			positional = append(positional, t)
		} else {
			named[argNames[i]] = t
		}
	}
	resolver := ops.NewArgsResolver(kind, positional, named)

	analysis, err := factory.Analyze(&ops.AnalyzeContext{Context: ctx, Auth: b.auth}, specJSON, resolver)
	if err != nil {
		return plan.FieldRef{}, errs.Client("transform %q: %v", name, err)
	}

	outSlot := uint32(len(b.rootFields))
	b.rootFields = append(b.rootFields, schema.FieldSchema{Name: name, ValueType: analysis.OutputSchema})

	node := plan.Node{
		Name:            name,
		Kind:            plan.OpFunction,
		OperatorKind:    kind,
		SpecJSON:        specJSON,
		Inputs:          inputs,
		OutputSchema:    &analysis.OutputSchema,
		BehaviorVersion: analysis.BehaviorVersion,
		OutputSlot:      outSlot,
	}
	b.nodeIndex[name] = len(b.nodes)
	b.nodes = append(b.nodes, node)
	b.connected[name] = false

	for _, in := range inputs {
		b.markConnected(in)
	}

	ref := plan.FieldRef{Local: plan.LocalFieldRef{FieldsIdx: []uint32{outSlot}}}
	b.fieldInfo[name] = fieldBinding{ref: ref, typ: analysis.OutputSchema}
	return ref, nil
}

func (b *Builder) markConnected(ref plan.FieldRef) {
	if ref.ScopeUpLevel != 0 || len(ref.Local.FieldsIdx) == 0 {
		return
	}
	idx := ref.Local.FieldsIdx[0]
	if int(idx) < len(b.rootFields) {
		b.connected[b.rootFields[idx].Name] = true
	}
}

// AddCollector declares a named table-valued accumulator.
func (b *Builder) AddCollector(name, scope string, row schema.StructSchema, kind schema.TableKind) {
	b.collectors = append(b.collectors, plan.Collector{Name: name, Scope: scope, Row: row, Kind: kind})
}

// AddExport binds collectorName to a target node already present in the
// plan (the caller is expected to have added it via AddTargetNode
// beforehand). RowIndexer resolves the exported value through the target
// node's own bound input, so targetNode must actually be a target.
func (b *Builder) AddExport(name, collectorName, targetNode string) error {
	known := false
	for _, c := range b.collectors {
		if c.Name == collectorName {
			known = true
			break
		}
	}
	if !known {
		return errs.Client("export %q: unknown collector %q", name, collectorName)
	}
	idx, ok := b.nodeIndex[targetNode]
	if !ok || b.nodes[idx].Kind != plan.OpTarget {
		return errs.Client("export %q: %q is not a target node", name, targetNode)
	}
	b.exports = append(b.exports, plan.Export{Name: name, CollectorName: collectorName, TargetNode: targetNode})
	return nil
}

// SetDirectOutput designates ref as the transient flow's result value.
func (b *Builder) SetDirectOutput(ref plan.FieldRef) {
	b.output = &ref
	b.markConnected(ref)
}

// BuildTransient finalizes a transient flow: every input must be
// connected, the graph must be acyclic (guaranteed here by construction —
// every FieldRef points backward to an already-built node), and a direct
// output must be set.
func (b *Builder) BuildTransient() (*plan.Plan, error) {
	if err := b.checkAllConnected(); err != nil {
		return nil, err
	}
	if b.output == nil {
		return nil, errs.Client("flow %q: transient flow has no direct output", b.name)
	}
	return b.finish(), nil
}

// BuildPersistent finalizes a persistent flow: in addition to the
// transient checks, at least one source (added via AddSource) and one
// export (bound to a target added via AddTargetNode) must be present —
// derived from the builder's own recorded state, not a caller-supplied
// flag.
func (b *Builder) BuildPersistent() (*plan.Plan, error) {
	if err := b.checkAllConnected(); err != nil {
		return nil, err
	}
	if !b.hasSource {
		return nil, errs.Client("flow %q: persistent flow has no source", b.name)
	}
	if len(b.exports) == 0 {
		return nil, errs.Client("flow %q: persistent flow has no export", b.name)
	}
	return b.finish(), nil
}

func (b *Builder) checkAllConnected() error {
	for name, used := range b.connected {
		if !used {
			return errs.Client("flow %q: input or transform %q has no consumer", b.name, name)
		}
	}
	return nil
}

func (b *Builder) finish() *plan.Plan {
	return &plan.Plan{
		Name:         b.name,
		Nodes:        b.nodes,
		Collectors:   b.collectors,
		Exports:      b.exports,
		InputSchema:  schema.StructSchema{Fields: b.rootFields},
		DirectOutput: b.output,
	}
}
