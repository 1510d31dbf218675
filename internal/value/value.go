// Package value holds the runtime Value tree that mirrors internal/schema's
// static types: every Value produced by a source or function executor
// conforms to some schema.EnrichedValueType, checked with value.Conforms.
package value

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/indexflow/indexflow/internal/schema"
)

// Kind tags the variant of a runtime Value.
type Kind int

const (
	KindNull Kind = iota
	KindBasic
	KindStruct
	KindUTable
	KindKTable
	KindLTable
)

// Value is the tagged union Null | Basic | Struct | UTable | KTable | LTable.
// Only the field matching Kind is meaningful.
type Value struct {
	kind   Kind
	basic  Basic
	fields FieldValues
	utable []FieldValues
	ktable []KRow
	ltable []FieldValues
}

// KRow is one row of a KTable: a key tuple (the struct's first N fields)
// paired with the remaining fields.
type KRow struct {
	Key  FieldValues
	Rest FieldValues
}

// FieldValues is an ordered list of field values within a Struct, matching
// the field order of the struct's schema.
type FieldValues []Value

func Null() Value { return Value{kind: KindNull} }

func FromBasic(b Basic) Value { return Value{kind: KindBasic, basic: b} }

func FromStruct(fields FieldValues) Value { return Value{kind: KindStruct, fields: fields} }

func FromUTable(rows []FieldValues) Value { return Value{kind: KindUTable, utable: rows} }

func FromKTable(rows []KRow) Value { return Value{kind: KindKTable, ktable: rows} }

func FromLTable(rows []FieldValues) Value { return Value{kind: KindLTable, ltable: rows} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Basic() Basic {
	if v.kind != KindBasic {
		panic("Basic() called on non-basic Value")
	}
	return v.basic
}

func (v Value) Struct() FieldValues {
	if v.kind != KindStruct {
		panic("Struct() called on non-struct Value")
	}
	return v.fields
}

func (v Value) UTable() []FieldValues {
	if v.kind != KindUTable {
		panic("UTable() called on non-UTable Value")
	}
	return v.utable
}

func (v Value) KTable() []KRow {
	if v.kind != KindKTable {
		panic("KTable() called on non-KTable Value")
	}
	return v.ktable
}

func (v Value) LTable() []FieldValues {
	if v.kind != KindLTable {
		panic("LTable() called on non-LTable Value")
	}
	return v.ltable
}

// Basic is the tagged union of scalar runtime payloads, one variant per
// schema.BasicKind (excluding Union, which carries whichever member's
// payload matched at construction time plus the matched index).
type Basic struct {
	kind BasicKind
	str  string
	byts []byte
	bl   bool
	i64  int64
	f32  float32
	f64  float64
	rng  Range
	uid  uuid.UUID
	t    time.Time
	dur  time.Duration
	json any
	vec  []Basic
	// Union only.
	unionIdx int
	union    *Basic
}

// BasicKind mirrors schema.BasicKind without the Vector/Union element
// recursion concern living on the type side.
type BasicKind = schema.BasicKind

// Range is a half-open integer interval, start-inclusive/end-exclusive.
type Range struct {
	Start int64
	End   int64
}

func Str(s string) Basic            { return Basic{kind: schema.KindStr, str: s} }
func BytesVal(b []byte) Basic       { return Basic{kind: schema.KindBytes, byts: b} }
func Bool(b bool) Basic             { return Basic{kind: schema.KindBool, bl: b} }
func Int64(i int64) Basic           { return Basic{kind: schema.KindInt64, i64: i} }
func Float32(f float32) Basic       { return Basic{kind: schema.KindFloat32, f32: f} }
func Float64(f float64) Basic       { return Basic{kind: schema.KindFloat64, f64: f} }
func RangeVal(start, end int64) Basic {
	return Basic{kind: schema.KindRange, rng: Range{Start: start, End: end}}
}
func Uuid(u uuid.UUID) Basic          { return Basic{kind: schema.KindUuid, uid: u} }
func Date(t time.Time) Basic          { return Basic{kind: schema.KindDate, t: t} }
func Time(t time.Time) Basic          { return Basic{kind: schema.KindTime, t: t} }
func LocalDateTime(t time.Time) Basic { return Basic{kind: schema.KindLocalDateTime, t: t} }
func OffsetDateTime(t time.Time) Basic {
	return Basic{kind: schema.KindOffsetDateTime, t: t}
}
func TimeDelta(d time.Duration) Basic { return Basic{kind: schema.KindTimeDelta, dur: d} }
func Json(v any) Basic                { return Basic{kind: schema.KindJson, json: v} }
func Vector(elems []Basic) Basic      { return Basic{kind: schema.KindVector, vec: elems} }
func UnionOf(idx int, v Basic) Basic  { return Basic{kind: schema.KindUnion, unionIdx: idx, union: &v} }

func (b Basic) Kind() schema.BasicKind { return b.kind }
func (b Basic) StrVal() string         { return b.str }
func (b Basic) BytesVal() []byte       { return b.byts }
func (b Basic) BoolVal() bool          { return b.bl }
func (b Basic) Int64Val() int64        { return b.i64 }
func (b Basic) Float32Val() float32    { return b.f32 }
func (b Basic) Float64Val() float64    { return b.f64 }
func (b Basic) RangeVal() Range        { return b.rng }
func (b Basic) UuidVal() uuid.UUID     { return b.uid }
func (b Basic) TimeVal() time.Time     { return b.t }
func (b Basic) DurationVal() time.Duration { return b.dur }
func (b Basic) JsonVal() any           { return b.json }
func (b Basic) VectorVal() []Basic     { return b.vec }
func (b Basic) UnionIndex() int        { return b.unionIdx }
func (b Basic) UnionVal() Basic        { return *b.union }

// AsFloat64 widens Int64/Float32/Float64 to a float64, the implicit
// upcasting rule OpArgsResolver applies when matching against a
// Float32/Float64-declared argument type.
func (b Basic) AsFloat64() (float64, bool) {
	switch b.kind {
	case schema.KindFloat64:
		return b.f64, true
	case schema.KindFloat32:
		return float64(b.f32), true
	case schema.KindInt64:
		return float64(b.i64), true
	default:
		return 0, false
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBasic:
		return fmt.Sprintf("%v", v.basic)
	case KindStruct:
		return fmt.Sprintf("Struct(%d fields)", len(v.fields))
	case KindUTable:
		return fmt.Sprintf("UTable(%d rows)", len(v.utable))
	case KindKTable:
		return fmt.Sprintf("KTable(%d rows)", len(v.ktable))
	default:
		return fmt.Sprintf("LTable(%d rows)", len(v.ltable))
	}
}
