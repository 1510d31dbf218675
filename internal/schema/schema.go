// Package schema defines the engine's static type system: the parallel
// structure that describes what shape a runtime Value must have. Schemas
// are built once during flow analysis and shared read-only afterward (the
// teacher's types.go follows the same "build once, share under a pointer"
// discipline for its SchemaData).
package schema

import "fmt"

// BasicValueType is the closed set of scalar and scalar-adjacent types a
// field may hold.
type BasicValueType struct {
	kind BasicKind
	// Vector fields only.
	vectorElement *BasicValueType
	vectorDim     *uint32
	// Union fields only.
	unionTypes []BasicValueType
}

// BasicKind enumerates the tags of BasicValueType.
type BasicKind int

const (
	KindStr BasicKind = iota
	KindBytes
	KindBool
	KindInt64
	KindFloat32
	KindFloat64
	KindRange
	KindUuid
	KindDate
	KindTime
	KindLocalDateTime
	KindOffsetDateTime
	KindTimeDelta
	KindJson
	KindVector
	KindUnion
)

func (k BasicKind) String() string {
	switch k {
	case KindStr:
		return "Str"
	case KindBytes:
		return "Bytes"
	case KindBool:
		return "Bool"
	case KindInt64:
		return "Int64"
	case KindFloat32:
		return "Float32"
	case KindFloat64:
		return "Float64"
	case KindRange:
		return "Range"
	case KindUuid:
		return "Uuid"
	case KindDate:
		return "Date"
	case KindTime:
		return "Time"
	case KindLocalDateTime:
		return "LocalDateTime"
	case KindOffsetDateTime:
		return "OffsetDateTime"
	case KindTimeDelta:
		return "TimeDelta"
	case KindJson:
		return "Json"
	case KindVector:
		return "Vector"
	case KindUnion:
		return "Union"
	default:
		return "Unknown"
	}
}

// Simple scalar constructors.
func Str() BasicValueType            { return BasicValueType{kind: KindStr} }
func Bytes() BasicValueType          { return BasicValueType{kind: KindBytes} }
func Bool() BasicValueType           { return BasicValueType{kind: KindBool} }
func Int64() BasicValueType          { return BasicValueType{kind: KindInt64} }
func Float32() BasicValueType        { return BasicValueType{kind: KindFloat32} }
func Float64() BasicValueType        { return BasicValueType{kind: KindFloat64} }
func Range() BasicValueType          { return BasicValueType{kind: KindRange} }
func Uuid() BasicValueType           { return BasicValueType{kind: KindUuid} }
func Date() BasicValueType           { return BasicValueType{kind: KindDate} }
func Time() BasicValueType           { return BasicValueType{kind: KindTime} }
func LocalDateTime() BasicValueType  { return BasicValueType{kind: KindLocalDateTime} }
func OffsetDateTime() BasicValueType { return BasicValueType{kind: KindOffsetDateTime} }
func TimeDelta() BasicValueType      { return BasicValueType{kind: KindTimeDelta} }
func Json() BasicValueType           { return BasicValueType{kind: KindJson} }

// Vector builds a Vector(element, dimension) basic type. dim == nil means
// unbounded.
func Vector(element BasicValueType, dim *uint32) BasicValueType {
	return BasicValueType{kind: KindVector, vectorElement: &element, vectorDim: dim}
}

// Union builds a Union over an ordered list of member types.
func Union(types ...BasicValueType) BasicValueType {
	return BasicValueType{kind: KindUnion, unionTypes: types}
}

func (b BasicValueType) Kind() BasicKind { return b.kind }

// VectorElement returns the element type of a Vector basic type. Panics if
// Kind() != KindVector.
func (b BasicValueType) VectorElement() BasicValueType {
	if b.kind != KindVector {
		panic("VectorElement called on non-vector BasicValueType")
	}
	return *b.vectorElement
}

// VectorDimension returns the declared dimension, if any.
func (b BasicValueType) VectorDimension() (uint32, bool) {
	if b.vectorDim == nil {
		return 0, false
	}
	return *b.vectorDim, true
}

// UnionTypes returns the ordered member types of a Union basic type.
func (b BasicValueType) UnionTypes() []BasicValueType {
	return b.unionTypes
}

func (b BasicValueType) String() string {
	switch b.kind {
	case KindVector:
		if dim, ok := b.VectorDimension(); ok {
			return fmt.Sprintf("Vector(%s, dim=%d)", b.VectorElement(), dim)
		}
		return fmt.Sprintf("Vector(%s)", b.VectorElement())
	case KindUnion:
		return fmt.Sprintf("Union(%v)", b.unionTypes)
	default:
		return b.kind.String()
	}
}

// ValueType is the closed sum Basic | Struct | Table.
type ValueType struct {
	basic  *BasicValueType
	strct  *StructSchema
	table  *TableSchema
}

func BasicType(b BasicValueType) ValueType   { return ValueType{basic: &b} }
func StructType(s StructSchema) ValueType    { return ValueType{strct: &s} }
func TableType(t TableSchema) ValueType      { return ValueType{table: &t} }

func (v ValueType) IsBasic() bool  { return v.basic != nil }
func (v ValueType) IsStruct() bool { return v.strct != nil }
func (v ValueType) IsTable() bool  { return v.table != nil }

func (v ValueType) Basic() BasicValueType {
	if v.basic == nil {
		panic("Basic() called on non-basic ValueType")
	}
	return *v.basic
}

func (v ValueType) Struct() StructSchema {
	if v.strct == nil {
		panic("Struct() called on non-struct ValueType")
	}
	return *v.strct
}

func (v ValueType) Table() TableSchema {
	if v.table == nil {
		panic("Table() called on non-table ValueType")
	}
	return *v.table
}

func (v ValueType) String() string {
	switch {
	case v.IsBasic():
		return v.Basic().String()
	case v.IsStruct():
		return v.Struct().String()
	default:
		return v.Table().String()
	}
}

// FieldSchema describes one field of a struct. Field order in the
// enclosing StructSchema is significant: it drives JSON property order and
// positional field-index addressing (fields_idx) used by plan field
// references.
type FieldSchema struct {
	Name        string
	ValueType   EnrichedValueType
	Description string
}

// StructSchema is an ordered list of fields plus an optional description.
// Field names must be unique within a struct.
type StructSchema struct {
	Fields      []FieldSchema
	Description string
}

func (s StructSchema) String() string {
	return fmt.Sprintf("Struct(%d fields)", len(s.Fields))
}

// FieldIndex returns the position of name within Fields, or -1.
func (s StructSchema) FieldIndex(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// TableKind distinguishes unordered, keyed, and list-ordered tables.
type TableKind int

const (
	UTable TableKind = iota
	KTable
	LTable
)

func (k TableKind) String() string {
	switch k {
	case KTable:
		return "KTable"
	case LTable:
		return "LTable"
	default:
		return "UTable"
	}
}

// TableSchema describes a table-valued field: its kind and its row shape.
// For KTable, the first NumKeyParts fields of Row form the primary key.
type TableSchema struct {
	Kind        TableKind
	Row         StructSchema
	NumKeyParts uint32 // only meaningful when Kind == KTable
}

func (t TableSchema) String() string {
	return fmt.Sprintf("%s(%s)", t.Kind, t.Row)
}

// EnrichedValueType pairs a ValueType with nullability and an attribute
// bag. Attributes carry semantic hints consumed by downstream operators
// (see attrs.go's AttrPrefix and Attr* constants for the reserved
// CocoIndex/* keys).
type EnrichedValueType struct {
	Typ      ValueType
	Nullable bool
	Attrs    map[string]any
}

// WithAttr returns a copy of e with key set to value in its attribute bag.
func (e EnrichedValueType) WithAttr(key string, value any) EnrichedValueType {
	attrs := make(map[string]any, len(e.Attrs)+1)
	for k, v := range e.Attrs {
		attrs[k] = v
	}
	attrs[key] = value
	e.Attrs = attrs
	return e
}

func (e EnrichedValueType) String() string {
	if e.Nullable {
		return e.Typ.String() + "?"
	}
	return e.Typ.String()
}
