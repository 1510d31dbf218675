package value

import (
	"fmt"

	"github.com/indexflow/indexflow/internal/errs"
	"github.com/indexflow/indexflow/internal/schema"
)

// Conforms checks a Value against an EnrichedValueType: non-nullable
// fields must not be Null, KTable keys must be unique, and a Vector's
// length must match its declared dimension.
func Conforms(v Value, t schema.EnrichedValueType) error {
	if v.IsNull() {
		if !t.Nullable {
			return errs.Invariance("non-nullable field holds a Null value")
		}
		return nil
	}
	switch {
	case t.Typ.IsBasic():
		return conformsBasic(v, t.Typ.Basic())
	case t.Typ.IsStruct():
		return conformsStruct(v, t.Typ.Struct())
	default:
		return conformsTable(v, t.Typ.Table())
	}
}

func conformsBasic(v Value, bt schema.BasicValueType) error {
	if v.Kind() != KindBasic {
		return errs.Invariance("expected basic value, got %v", v.Kind())
	}
	b := v.Basic()
	if b.Kind() != bt.Kind() {
		return errs.Invariance("basic kind mismatch: expected %s, got %s", bt.Kind(), b.Kind())
	}
	if bt.Kind() == schema.KindVector {
		if dim, ok := bt.VectorDimension(); ok && uint32(len(b.VectorVal())) != dim {
			return errs.Invariance("vector length %d does not match declared dimension %d", len(b.VectorVal()), dim)
		}
		elem := bt.VectorElement()
		for i, e := range b.VectorVal() {
			if err := conformsBasic(FromBasic(e), elem); err != nil {
				return errs.Internal(fmt.Errorf("vector element %d: %w", i, err))
			}
		}
	}
	return nil
}

func conformsStruct(v Value, s schema.StructSchema) error {
	if v.Kind() != KindStruct {
		return errs.Invariance("expected struct value, got %v", v.Kind())
	}
	fields := v.Struct()
	if len(fields) != len(s.Fields) {
		return errs.Invariance("struct field count mismatch: schema has %d, value has %d", len(s.Fields), len(fields))
	}
	for i, f := range s.Fields {
		if err := Conforms(fields[i], f.ValueType); err != nil {
			return errs.Internal(fmt.Errorf("field %q: %w", f.Name, err))
		}
	}
	return nil
}

func conformsTable(v Value, ts schema.TableSchema) error {
	switch ts.Kind {
	case schema.KTable:
		if v.Kind() != KindKTable {
			return errs.Invariance("expected KTable value, got %v", v.Kind())
		}
		seen := make(map[string]struct{}, len(v.KTable()))
		for _, row := range v.KTable() {
			k := fmt.Sprintf("%v", row.Key)
			if _, dup := seen[k]; dup {
				return errs.Invariance("duplicate KTable key %v", row.Key)
			}
			seen[k] = struct{}{}
		}
		return nil
	case schema.LTable:
		if v.Kind() != KindLTable {
			return errs.Invariance("expected LTable value, got %v", v.Kind())
		}
		return nil
	default:
		if v.Kind() != KindUTable {
			return errs.Invariance("expected UTable value, got %v", v.Kind())
		}
		return nil
	}
}
