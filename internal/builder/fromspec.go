package builder

import (
	"context"

	"github.com/indexflow/indexflow/internal/errs"
	"github.com/indexflow/indexflow/internal/ops"
	"github.com/indexflow/indexflow/internal/plan"
	"github.com/indexflow/indexflow/internal/schema"
	"github.com/indexflow/indexflow/internal/spec"
)

// FromSpec drives a Builder from a declarative FlowSpec, the JSON shape a
// client submits instead of making Add* calls directly. directInputTypes
// supplies the type of each entry in fs.DirectInputs by name: unlike a
// source or transform's output, a direct input's type isn't derived by
// Analyze, so it can't be recovered from the spec payload alone.
//
// Declaration order is sources, then direct inputs, then transforms (each
// may reference any node declared earlier by name), then collectors, then
// exports, then (if fs.Output is set) a direct output — producing a
// transient plan when fs.Output is set, a persistent one otherwise.
func FromSpec(ctx context.Context, fs spec.FlowSpec, registry *ops.Registry, auth ops.AuthResolver, directInputTypes map[string]schema.EnrichedValueType) (*plan.Plan, error) {
	b := New(fs.Name, registry, auth)

	for _, src := range fs.Sources {
		if _, err := b.AddSource(ctx, src.Name, src.Kind, src.Spec); err != nil {
			return nil, err
		}
	}

	for _, di := range fs.DirectInputs {
		typ, ok := directInputTypes[di.Name]
		if !ok {
			return nil, errs.Client("flow %q: direct input %q has no supplied type", fs.Name, di.Name)
		}
		b.AddDirectInput(di.Name, typ)
	}

	for _, tr := range fs.Transforms {
		inputs := make([]plan.FieldRef, len(tr.Inputs))
		inputTypes := make([]schema.EnrichedValueType, len(tr.Inputs))
		argNames := make([]string, len(tr.Inputs))
		for i, binding := range tr.Inputs {
			ref, typ, err := b.resolveSpecRef(binding.Ref)
			if err != nil {
				return nil, errs.Client("transform %q: %v", tr.Name, err)
			}
			inputs[i] = ref
			inputTypes[i] = typ
			argNames[i] = binding.Name
		}
		if _, err := b.AddTransform(ctx, tr.Name, tr.Kind, tr.Spec, inputs, inputTypes, argNames); err != nil {
			return nil, err
		}
	}

	for _, c := range fs.Collectors {
		row, err := b.collectorRowSchema(c.Name)
		if err != nil {
			return nil, err
		}
		b.AddCollector(c.Name, c.Scope, row, schema.UTable)
	}

	for _, exp := range fs.Exports {
		input, typ, err := b.FieldRefFor(exp.Collector)
		if err != nil {
			return nil, errs.Client("export %q: %v", exp.Name, err)
		}
		if !typ.Typ.IsTable() {
			return nil, errs.Client("export %q: collector %q is not a table-valued collector (got %s)", exp.Name, exp.Collector, typ.Typ)
		}
		if err := b.AddTargetNode(ctx, exp.Name, exp.Kind, exp.Spec, input, typ.Typ.Table().Row); err != nil {
			return nil, err
		}
		if err := b.AddExport(exp.Name, exp.Collector, exp.Name); err != nil {
			return nil, err
		}
	}

	if fs.Output != nil {
		ref, _, err := b.resolveSpecRef(*fs.Output)
		if err != nil {
			return nil, errs.Client("flow %q: output: %v", fs.Name, err)
		}
		b.SetDirectOutput(ref)
		return b.BuildTransient()
	}
	return b.BuildPersistent()
}

// resolveSpecRef resolves a spec.FieldRef (a declared node name plus an
// optional dotted path into its struct-typed value) to a plan.FieldRef and
// its resolved type.
func (b *Builder) resolveSpecRef(ref spec.FieldRef) (plan.FieldRef, schema.EnrichedValueType, error) {
	base, typ, err := b.FieldRefFor(ref.Node)
	if err != nil {
		return plan.FieldRef{}, schema.EnrichedValueType{}, err
	}
	idxPath := append([]uint32{}, base.Local.FieldsIdx...)
	cur := typ
	for _, field := range ref.Path {
		if !cur.Typ.IsStruct() {
			return plan.FieldRef{}, schema.EnrichedValueType{}, errs.Client("field reference %q%v: %q is not a struct", ref.Node, ref.Path, field)
		}
		ss := cur.Typ.Struct()
		i := ss.FieldIndex(field)
		if i < 0 {
			return plan.FieldRef{}, schema.EnrichedValueType{}, errs.Client("field reference %q%v: unknown field %q", ref.Node, ref.Path, field)
		}
		idxPath = append(idxPath, uint32(i))
		cur = ss.Fields[i].ValueType
	}
	return plan.FieldRef{Local: plan.LocalFieldRef{FieldsIdx: idxPath}, ScopeUpLevel: base.ScopeUpLevel}, cur, nil
}

// collectorRowSchema derives a collector's row shape from the table type
// of the node declared under the same name: a collector's accumulator is
// populated by a "Collect"-style transform of the same name, whose output
// is the table value the collector exposes. FromSpec's export step
// resolves each export's collector through that same name.
func (b *Builder) collectorRowSchema(name string) (schema.StructSchema, error) {
	_, typ, err := b.FieldRefFor(name)
	if err != nil {
		return schema.StructSchema{}, errs.Client("collector %q: %v", name, err)
	}
	if !typ.Typ.IsTable() {
		return schema.StructSchema{}, errs.Client("collector %q: bound value is not table-valued", name)
	}
	return typ.Typ.Table().Row, nil
}
