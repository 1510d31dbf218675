package value

import (
	"time"

	"github.com/indexflow/indexflow/internal/schema"
)

// CanonicalPayload converts v into a plain, type-self-describing Go value
// suitable for internal/fingerprint.Of: unlike ToJSON it needs no
// accompanying schema.ValueType, since every Basic already carries its own
// Kind. Used by the row indexer and memoization key derivation, where
// callers have a runtime Value but no schema handy.
func CanonicalPayload(v Value) any {
	switch v.Kind() {
	case KindNull:
		return nil
	case KindBasic:
		return basicCanonical(v.Basic())
	case KindStruct:
		return fieldsCanonical(v.Struct())
	case KindUTable:
		return rowsCanonical(v.UTable())
	case KindLTable:
		return rowsCanonical(v.LTable())
	default:
		out := make([]any, 0, len(v.KTable()))
		for _, row := range v.KTable() {
			out = append(out, map[string]any{
				"key":  fieldsCanonical(row.Key),
				"rest": fieldsCanonical(row.Rest),
			})
		}
		return out
	}
}

func basicCanonical(b Basic) any {
	switch b.Kind() {
	case schema.KindStr:
		return b.StrVal()
	case schema.KindBytes:
		return b.BytesVal()
	case schema.KindBool:
		return b.BoolVal()
	case schema.KindInt64:
		return b.Int64Val()
	case schema.KindFloat32:
		return float64(b.Float32Val())
	case schema.KindFloat64:
		return b.Float64Val()
	case schema.KindRange:
		r := b.RangeVal()
		return []any{r.Start, r.End}
	case schema.KindUuid:
		return b.UuidVal().String()
	case schema.KindDate, schema.KindTime, schema.KindLocalDateTime, schema.KindOffsetDateTime:
		return b.TimeVal().Format(time.RFC3339Nano)
	case schema.KindTimeDelta:
		return b.DurationVal().String()
	case schema.KindJson:
		return b.JsonVal()
	case schema.KindVector:
		elems := b.VectorVal()
		out := make([]any, len(elems))
		for i, e := range elems {
			out[i] = basicCanonical(e)
		}
		return out
	case schema.KindUnion:
		return map[string]any{"idx": b.UnionIndex(), "val": basicCanonical(b.UnionVal())}
	default:
		return nil
	}
}

func fieldsCanonical(fields FieldValues) []any {
	out := make([]any, len(fields))
	for i, f := range fields {
		out[i] = CanonicalPayload(f)
	}
	return out
}

func rowsCanonical(rows []FieldValues) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = fieldsCanonical(r)
	}
	return out
}
