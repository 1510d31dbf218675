// Package plan holds the immutable, analyzed form of a flow: the output of
// the builder once every input is connected, every operator has an
// analyzed output schema, and there are no cycles. Field references use
// positional indices and scope-up-level integers rather than
// back-pointers, sidestepping reference-counted ownership cycles.
package plan

import (
	"github.com/indexflow/indexflow/internal/schema"
)

// LocalFieldRef is a path through nested structs by field position, within
// a single scope.
type LocalFieldRef struct {
	FieldsIdx []uint32
}

// FieldRef addresses a value relative to the scope an operator executes
// in: Local within the current scope, or ScopeUpLevel levels up the
// enclosing-scope stack.
type FieldRef struct {
	Local        LocalFieldRef
	ScopeUpLevel uint32
}

// OperatorKind distinguishes the three operator families a Node may wrap.
type OperatorKind int

const (
	OpSource OperatorKind = iota
	OpFunction
	OpTarget
)

// Node is one analyzed operator invocation in plan order.
type Node struct {
	Name            string
	Kind            OperatorKind
	OperatorKind    string // the registry lookup key, e.g. "ReverseString"
	SpecJSON        []byte
	Inputs          []FieldRef
	// OutputSchema is unset for OpTarget nodes, which consume rather than
	// produce a value.
	OutputSchema    *schema.EnrichedValueType
	BehaviorVersion *int64
	// OutputSlot is the field index this node's result is written to in
	// the current scope's row.
	OutputSlot uint32
}

// Collector is a named accumulator within a scope; its declared row shape
// becomes a UTable/KTable/LTable once the scope closes, per Kind.
type Collector struct {
	Name  string
	Scope string
	Row   schema.StructSchema
	Kind  schema.TableKind
}

// Export binds a Collector to a target node.
type Export struct {
	Name          string
	CollectorName string
	TargetNode    string
}

// Plan is the immutable result of building and validating a flow. It is
// built once and shared read-only across all evaluations of the flow.
type Plan struct {
	Name         string
	Nodes        []Node
	Collectors   []Collector
	Exports      []Export
	InputSchema  schema.StructSchema
	// DirectOutput is set only for transient flows: a reference into the
	// root scope identifying the flow's single result value.
	DirectOutput *FieldRef
}

// NodeByName returns the node with the given name, or false if absent.
func (p *Plan) NodeByName(name string) (Node, bool) {
	for _, n := range p.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return Node{}, false
}
