package value

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/indexflow/indexflow/internal/errs"
	"github.com/indexflow/indexflow/internal/schema"
)

// ToJSON converts v to a plain JSON-marshalable Go value (map[string]any /
// []any / string / float64 / bool / nil), the encoding jsonschema.Extractor
// and Build's ValueExtractor exchange with an LLM.
func ToJSON(v Value, t schema.ValueType) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	switch {
	case t.IsBasic():
		return basicToJSON(v.Basic(), t.Basic())
	case t.IsStruct():
		return structToJSON(v.Struct(), t.Struct())
	default:
		return tableToJSON(v, t.Table())
	}
}

func basicToJSON(b Basic, bt schema.BasicValueType) (any, error) {
	switch bt.Kind() {
	case schema.KindStr:
		return b.StrVal(), nil
	case schema.KindBytes:
		return base64.StdEncoding.EncodeToString(b.BytesVal()), nil
	case schema.KindBool:
		return b.BoolVal(), nil
	case schema.KindInt64:
		return float64(b.Int64Val()), nil
	case schema.KindFloat32:
		return float64(b.Float32Val()), nil
	case schema.KindFloat64:
		return b.Float64Val(), nil
	case schema.KindRange:
		r := b.RangeVal()
		return []any{float64(r.Start), float64(r.End)}, nil
	case schema.KindUuid:
		return b.UuidVal().String(), nil
	case schema.KindDate:
		return b.TimeVal().Format("2006-01-02"), nil
	case schema.KindTime:
		return b.TimeVal().Format("15:04:05"), nil
	case schema.KindLocalDateTime:
		return b.TimeVal().Format("2006-01-02T15:04:05"), nil
	case schema.KindOffsetDateTime:
		return b.TimeVal().Format(time.RFC3339), nil
	case schema.KindTimeDelta:
		return b.DurationVal().String(), nil
	case schema.KindJson:
		return b.JsonVal(), nil
	case schema.KindVector:
		elemType := bt.VectorElement()
		out := make([]any, len(b.VectorVal()))
		for i, e := range b.VectorVal() {
			jv, err := basicToJSON(e, elemType)
			if err != nil {
				return nil, err
			}
			out[i] = jv
		}
		return out, nil
	case schema.KindUnion:
		return basicToJSON(b.UnionVal(), bt.UnionTypes()[b.UnionIndex()])
	default:
		return nil, errs.Internal(fmt.Errorf("unhandled basic kind %s", bt.Kind()))
	}
}

func structToJSON(fields FieldValues, s schema.StructSchema) (any, error) {
	out := make(map[string]any, len(s.Fields))
	for i, f := range s.Fields {
		jv, err := ToJSON(fields[i], f.ValueType.Typ)
		if err != nil {
			return nil, err
		}
		out[f.Name] = jv
	}
	return out, nil
}

func tableToJSON(v Value, ts schema.TableSchema) (any, error) {
	switch ts.Kind {
	case schema.KTable:
		out := make([]any, 0, len(v.KTable()))
		for _, row := range v.KTable() {
			combined := append(append(FieldValues{}, row.Key...), row.Rest...)
			jv, err := structToJSON(combined, ts.Row)
			if err != nil {
				return nil, err
			}
			out = append(out, jv)
		}
		return out, nil
	case schema.LTable:
		out := make([]any, 0, len(v.LTable()))
		for _, row := range v.LTable() {
			jv, err := structToJSON(row, ts.Row)
			if err != nil {
				return nil, err
			}
			out = append(out, jv)
		}
		return out, nil
	default:
		out := make([]any, 0, len(v.UTable()))
		for _, row := range v.UTable() {
			jv, err := structToJSON(row, ts.Row)
			if err != nil {
				return nil, err
			}
			out = append(out, jv)
		}
		return out, nil
	}
}

// FromJSON parses a decoded JSON value (as produced by encoding/json's
// default any-unmarshaling) into a runtime Value conforming to vt.
func FromJSON(raw any, vt schema.ValueType) (Value, error) {
	if raw == nil {
		return Null(), nil
	}
	switch {
	case vt.IsBasic():
		b, err := basicFromJSON(raw, vt.Basic())
		if err != nil {
			return Value{}, err
		}
		return FromBasic(b), nil
	case vt.IsStruct():
		return structFromJSON(raw, vt.Struct())
	default:
		return tableFromJSON(raw, vt.Table())
	}
}

func basicFromJSON(raw any, bt schema.BasicValueType) (Basic, error) {
	switch bt.Kind() {
	case schema.KindStr:
		s, ok := raw.(string)
		if !ok {
			return Basic{}, errs.Client("expected string, got %T", raw)
		}
		return Str(s), nil
	case schema.KindBytes:
		s, ok := raw.(string)
		if !ok {
			return Basic{}, errs.Client("expected base64 string, got %T", raw)
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return Basic{}, errs.Client("invalid base64 bytes: %v", err)
		}
		return BytesVal(b), nil
	case schema.KindBool:
		b, ok := raw.(bool)
		if !ok {
			return Basic{}, errs.Client("expected bool, got %T", raw)
		}
		return Bool(b), nil
	case schema.KindInt64:
		f, ok := raw.(float64)
		if !ok {
			return Basic{}, errs.Client("expected integer, got %T", raw)
		}
		return Int64(int64(f)), nil
	case schema.KindFloat32:
		f, ok := raw.(float64)
		if !ok {
			return Basic{}, errs.Client("expected number, got %T", raw)
		}
		return Float32(float32(f)), nil
	case schema.KindFloat64:
		f, ok := raw.(float64)
		if !ok {
			return Basic{}, errs.Client("expected number, got %T", raw)
		}
		return Float64(f), nil
	case schema.KindRange:
		arr, ok := raw.([]any)
		if !ok || len(arr) != 2 {
			return Basic{}, errs.Client("expected a 2-element array for Range")
		}
		start, ok1 := arr[0].(float64)
		end, ok2 := arr[1].(float64)
		if !ok1 || !ok2 {
			return Basic{}, errs.Client("Range elements must be integers")
		}
		return RangeVal(int64(start), int64(end)), nil
	case schema.KindUuid:
		s, ok := raw.(string)
		if !ok {
			return Basic{}, errs.Client("expected UUID string, got %T", raw)
		}
		u, err := uuid.Parse(s)
		if err != nil {
			return Basic{}, errs.Client("invalid UUID %q: %v", s, err)
		}
		return Uuid(u), nil
	case schema.KindDate:
		return parseTimeBasic(raw, "2006-01-02", Date)
	case schema.KindTime:
		return parseTimeBasic(raw, "15:04:05", Time)
	case schema.KindLocalDateTime:
		return parseTimeBasic(raw, "2006-01-02T15:04:05", LocalDateTime)
	case schema.KindOffsetDateTime:
		return parseTimeBasic(raw, time.RFC3339, OffsetDateTime)
	case schema.KindTimeDelta:
		s, ok := raw.(string)
		if !ok {
			return Basic{}, errs.Client("expected duration string, got %T", raw)
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return Basic{}, errs.Client("invalid duration %q: %v", s, err)
		}
		return TimeDelta(d), nil
	case schema.KindJson:
		return Json(raw), nil
	case schema.KindVector:
		arr, ok := raw.([]any)
		if !ok {
			return Basic{}, errs.Client("expected array for Vector, got %T", raw)
		}
		elemType := bt.VectorElement()
		elems := make([]Basic, len(arr))
		for i, e := range arr {
			eb, err := basicFromJSON(e, elemType)
			if err != nil {
				return Basic{}, err
			}
			elems[i] = eb
		}
		return Vector(elems), nil
	case schema.KindUnion:
		var lastErr error
		for i, t := range bt.UnionTypes() {
			if b, err := basicFromJSON(raw, t); err == nil {
				return UnionOf(i, b), nil
			} else {
				lastErr = err
			}
		}
		return Basic{}, errs.Client("value matched no Union member: %v", lastErr)
	default:
		return Basic{}, errs.Internal(fmt.Errorf("unhandled basic kind %s", bt.Kind()))
	}
}

func parseTimeBasic(raw any, layout string, wrap func(time.Time) Basic) (Basic, error) {
	s, ok := raw.(string)
	if !ok {
		return Basic{}, errs.Client("expected time string, got %T", raw)
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return Basic{}, errs.Client("invalid time %q: %v", s, err)
	}
	return wrap(t), nil
}

func structFromJSON(raw any, s schema.StructSchema) (Value, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return Value{}, errs.Client("expected object, got %T", raw)
	}
	fields := make(FieldValues, len(s.Fields))
	for i, f := range s.Fields {
		fv, present := obj[f.Name]
		if !present {
			if !f.ValueType.Nullable {
				return Value{}, errs.Client("missing required field %q", f.Name)
			}
			fields[i] = Null()
			continue
		}
		v, err := FromJSON(fv, f.ValueType.Typ)
		if err != nil {
			return Value{}, err
		}
		fields[i] = v
	}
	return FromStruct(fields), nil
}

func tableFromJSON(raw any, ts schema.TableSchema) (Value, error) {
	arr, ok := raw.([]any)
	if !ok {
		return Value{}, errs.Client("expected array, got %T", raw)
	}
	switch ts.Kind {
	case schema.KTable:
		rows := make([]KRow, 0, len(arr))
		numKeyParts := int(ts.NumKeyParts)
		for _, e := range arr {
			rowVal, err := structFromJSON(e, ts.Row)
			if err != nil {
				return Value{}, err
			}
			fields := rowVal.Struct()
			rows = append(rows, KRow{Key: append(FieldValues{}, fields[:numKeyParts]...), Rest: append(FieldValues{}, fields[numKeyParts:]...)})
		}
		return FromKTable(rows), nil
	case schema.LTable:
		rows := make([]FieldValues, 0, len(arr))
		for _, e := range arr {
			rowVal, err := structFromJSON(e, ts.Row)
			if err != nil {
				return Value{}, err
			}
			rows = append(rows, rowVal.Struct())
		}
		return FromLTable(rows), nil
	default:
		rows := make([]FieldValues, 0, len(arr))
		for _, e := range arr {
			rowVal, err := structFromJSON(e, ts.Row)
			if err != nil {
				return Value{}, err
			}
			rows = append(rows, rowVal.Struct())
		}
		return FromUTable(rows), nil
	}
}
