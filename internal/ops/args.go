package ops

import (
	"strconv"

	"github.com/indexflow/indexflow/internal/errs"
	"github.com/indexflow/indexflow/internal/schema"
)

// ArgsResolver walks a function operator's declared arguments in the order
// its Analyze call consumes them: positional arguments first (consumed by
// index), then any remaining bindings matched by name. Mirrors the
// original's positional-then-named OpArgsResolver.
type ArgsResolver struct {
	opName    string
	positional []resolvedArg
	named      map[string]resolvedArg
	nextPos    int
	consumedNamed map[string]bool
}

type resolvedArg struct {
	name string
	typ  schema.EnrichedValueType
}

// NewArgsResolver builds a resolver over the operator's bound arguments:
// positional entries in call order, followed by name→type bindings for
// named arguments.
func NewArgsResolver(opName string, positional []schema.EnrichedValueType, named map[string]schema.EnrichedValueType) *ArgsResolver {
	pos := make([]resolvedArg, len(positional))
	for i, t := range positional {
		pos[i] = resolvedArg{typ: t}
	}
	nm := make(map[string]resolvedArg, len(named))
	for k, t := range named {
		nm[k] = resolvedArg{name: k, typ: t}
	}
	return &ArgsResolver{
		opName:        opName,
		positional:    pos,
		named:         nm,
		consumedNamed: make(map[string]bool),
	}
}

// Arg looks up the next argument: if name is non-empty it is taken from
// the named bindings; otherwise the next unconsumed positional argument is
// used. Returns a client error naming the operator and position/name when
// nothing is available.
func (r *ArgsResolver) Arg(name string) (*ArgHandle, error) {
	if name != "" {
		a, ok := r.named[name]
		if !ok {
			return nil, errs.Client("operator %q: missing named argument %q", r.opName, name)
		}
		r.consumedNamed[name] = true
		return &ArgHandle{resolver: r, arg: a, label: name}, nil
	}
	if r.nextPos >= len(r.positional) {
		return nil, errs.Client("operator %q: missing positional argument at index %d", r.opName, r.nextPos)
	}
	a := r.positional[r.nextPos]
	label := r.nextPos
	r.nextPos++
	return &ArgHandle{resolver: r, arg: a, label: strconv.Itoa(label)}, nil
}

// Done verifies every positional and named argument supplied to the
// operator was actually consumed by a call to Arg; leftovers are a client
// error naming the operator.
func (r *ArgsResolver) Done() error {
	if r.nextPos != len(r.positional) {
		return errs.Client("operator %q: %d extra positional argument(s) supplied", r.opName, len(r.positional)-r.nextPos)
	}
	for name := range r.named {
		if !r.consumedNamed[name] {
			return errs.Client("operator %q: extra named argument %q supplied", r.opName, name)
		}
	}
	return nil
}

// ArgHandle is the fluent per-argument chain: ExpectType then
// Required/Optional, matching the original's `.expect_type(...)?.required()?`.
type ArgHandle struct {
	resolver *ArgsResolver
	arg      resolvedArg
	label    string
	expected *schema.ValueType
}

// ExpectType asserts the argument is compatible with t, applying the
// implicit upcasting rule (Float32→Float64, Int64→Float32/64) when the
// declared type is narrower than what the operator expects.
func (h *ArgHandle) ExpectType(t schema.ValueType) (*ArgHandle, error) {
	if !compatible(h.arg.typ.Typ, t) {
		return nil, errs.Client("operator %q: argument %s has type %s, expected %s",
			h.resolver.opName, h.label, h.arg.typ.Typ, t)
	}
	h.expected = &t
	return h, nil
}

func compatible(have, want schema.ValueType) bool {
	if !have.IsBasic() || !want.IsBasic() {
		return have.IsStruct() == want.IsStruct() && have.IsTable() == want.IsTable()
	}
	hk, wk := have.Basic().Kind(), want.Basic().Kind()
	if hk == wk {
		return true
	}
	switch wk {
	case schema.KindFloat64:
		return hk == schema.KindInt64 || hk == schema.KindFloat32
	case schema.KindFloat32:
		return hk == schema.KindInt64
	default:
		return false
	}
}

// Required returns the argument's declared enriched type, erroring if the
// argument is itself nullable in a context that demands a present value —
// callers that accept nullable arguments should use Optional instead.
func (h *ArgHandle) Required() (schema.EnrichedValueType, error) {
	if h.arg.typ.Nullable {
		return schema.EnrichedValueType{}, errs.Client(
			"operator %q: argument %s is required but declared nullable", h.resolver.opName, h.label)
	}
	return h.arg.typ, nil
}

// Optional returns the argument's declared enriched type; nullability is
// left to the caller to branch on at evaluation time.
func (h *ArgHandle) Optional() (schema.EnrichedValueType, error) {
	return h.arg.typ, nil
}
