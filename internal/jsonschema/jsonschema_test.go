package jsonschema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexflow/indexflow/internal/schema"
	"github.com/indexflow/indexflow/internal/value"
)

func marshal(t *testing.T, s Schema) string {
	t.Helper()
	b, err := json.Marshal(s)
	require.NoError(t, err)
	return string(b)
}

func TestBuild_BasicString(t *testing.T) {
	out, err := Build(schema.EnrichedValueType{Typ: schema.BasicType(schema.Str())}, Options{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"string"}`, marshal(t, out.Schema))

	v, err := out.Extractor.Extract([]byte(`"hello"`))
	require.NoError(t, err)
	assert.Equal(t, value.Str("hello"), v.Basic())
}

func TestBuild_WrappedTopLevel(t *testing.T) {
	out, err := Build(schema.EnrichedValueType{Typ: schema.BasicType(schema.Str())}, Options{
		TopLevelMustBeObject:         true,
		SupportsAdditionalProperties: true,
	})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"type":"object","properties":{"value":{"type":"string"}},"required":["value"],"additionalProperties":false}`,
		marshal(t, out.Schema))

	v, err := out.Extractor.Extract([]byte(`{"value":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, value.Str("hello"), v.Basic())
}

func TestBuild_NullableWithAlwaysRequired(t *testing.T) {
	structType := schema.StructType(schema.StructSchema{Fields: []schema.FieldSchema{
		{Name: "name", ValueType: schema.EnrichedValueType{Typ: schema.BasicType(schema.Str())}},
		{Name: "age", ValueType: schema.EnrichedValueType{Typ: schema.BasicType(schema.Int64()), Nullable: true}},
	}})
	out, err := Build(schema.EnrichedValueType{Typ: structType}, Options{FieldsAlwaysRequired: true})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(marshal(t, out.Schema)), &decoded))

	required, ok := decoded["required"].([]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []any{"name", "age"}, required)

	props := decoded["properties"].(map[string]any)
	ageType := props["age"].(map[string]any)["type"].([]any)
	assert.ElementsMatch(t, []any{"integer", "null"}, ageType)
}

func TestBuild_UuidWithoutFormatSupport(t *testing.T) {
	out, err := Build(schema.EnrichedValueType{Typ: schema.BasicType(schema.Uuid())}, Options{SupportsFormat: false})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"type":"string","description":"A UUID, e.g. 123e4567-e89b-12d3-a456-426614174000"}`,
		marshal(t, out.Schema))
}

func TestBuild_DescriptionConcatenation(t *testing.T) {
	structType := schema.StructType(schema.StructSchema{Fields: []schema.FieldSchema{
		{Name: "id", Description: "F", ValueType: schema.EnrichedValueType{Typ: schema.BasicType(schema.Uuid())}},
	}})
	out, err := Build(schema.EnrichedValueType{Typ: structType}, Options{})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(marshal(t, out.Schema)), &decoded))
	idField := decoded["properties"].(map[string]any)["id"].(map[string]any)
	assert.Equal(t, "F\n\nA UUID, e.g. 123e4567-e89b-12d3-a456-426614174000", idField["description"])
}

func TestBuild_ExtractDescriptions(t *testing.T) {
	structType := schema.StructType(schema.StructSchema{Fields: []schema.FieldSchema{
		{Name: "id", Description: "The identifier", ValueType: schema.EnrichedValueType{Typ: schema.BasicType(schema.Str())}},
	}})
	out, err := Build(schema.EnrichedValueType{Typ: structType}, Options{ExtractDescriptions: true})
	require.NoError(t, err)

	assert.Contains(t, out.ExtraInstructions, "id: The identifier")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(marshal(t, out.Schema)), &decoded))
	idField := decoded["properties"].(map[string]any)["id"].(map[string]any)
	_, hasDescription := idField["description"]
	assert.False(t, hasDescription, "description should be hoisted out, not inlined")
}

func TestJSONSchemaRoundTrip(t *testing.T) {
	structType := schema.StructType(schema.StructSchema{Fields: []schema.FieldSchema{
		{Name: "title", ValueType: schema.EnrichedValueType{Typ: schema.BasicType(schema.Str())}},
		{Name: "count", ValueType: schema.EnrichedValueType{Typ: schema.BasicType(schema.Int64())}},
		{Name: "active", ValueType: schema.EnrichedValueType{Typ: schema.BasicType(schema.Bool())}},
	}})
	evt := schema.EnrichedValueType{Typ: structType}

	out, err := Build(evt, Options{})
	require.NoError(t, err)

	original := value.FromStruct(value.FieldValues{
		value.FromBasic(value.Str("hello")),
		value.FromBasic(value.Int64(42)),
		value.FromBasic(value.Bool(true)),
	})

	asJSON, err := value.ToJSON(original, structType)
	require.NoError(t, err)
	raw, err := json.Marshal(asJSON)
	require.NoError(t, err)

	extracted, err := out.Extractor.Extract(raw)
	require.NoError(t, err)

	roundTripped, err := value.ToJSON(extracted, structType)
	require.NoError(t, err)
	assert.Equal(t, asJSON, roundTripped)
}
