package value

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/indexflow/indexflow/internal/schema"
)

func TestConforms_NonNullableRejectsNull(t *testing.T) {
	err := Conforms(Null(), schema.EnrichedValueType{Typ: schema.BasicType(schema.Str())})
	assert.Error(t, err)
}

func TestConforms_NullableAcceptsNull(t *testing.T) {
	err := Conforms(Null(), schema.EnrichedValueType{Typ: schema.BasicType(schema.Str()), Nullable: true})
	assert.NoError(t, err)
}

func TestConforms_VectorDimensionMismatch(t *testing.T) {
	dim := uint32(3)
	vt := schema.EnrichedValueType{Typ: schema.BasicType(schema.Vector(schema.Float64(), &dim))}
	v := FromBasic(Vector([]Basic{Float64(1), Float64(2)}))
	assert.Error(t, Conforms(v, vt))
}

func TestConforms_KTableRejectsDuplicateKeys(t *testing.T) {
	vt := schema.EnrichedValueType{Typ: schema.TableType(schema.TableSchema{
		Kind:        schema.KTable,
		Row:         schema.StructSchema{Fields: []schema.FieldSchema{{Name: "id", ValueType: schema.EnrichedValueType{Typ: schema.BasicType(schema.Str())}}}},
		NumKeyParts: 1,
	})}
	v := FromKTable([]KRow{
		{Key: FieldValues{FromBasic(Str("a"))}},
		{Key: FieldValues{FromBasic(Str("a"))}},
	})
	assert.Error(t, Conforms(v, vt))
}
