package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexflow/indexflow/internal/schema"
)

func strArg() schema.EnrichedValueType {
	return schema.EnrichedValueType{Typ: schema.BasicType(schema.Str())}
}

func int64Arg() schema.EnrichedValueType {
	return schema.EnrichedValueType{Typ: schema.BasicType(schema.Int64())}
}

func TestArgsResolver_PositionalInOrder(t *testing.T) {
	r := NewArgsResolver("op", []schema.EnrichedValueType{strArg(), int64Arg()}, nil)

	h1, err := r.Arg("")
	require.NoError(t, err)
	_, err = h1.ExpectType(schema.BasicType(schema.Str()))
	require.NoError(t, err)

	h2, err := r.Arg("")
	require.NoError(t, err)
	_, err = h2.ExpectType(schema.BasicType(schema.Int64()))
	require.NoError(t, err)

	require.NoError(t, r.Done())
}

func TestArgsResolver_NamedArgument(t *testing.T) {
	r := NewArgsResolver("op", nil, map[string]schema.EnrichedValueType{"threshold": int64Arg()})

	h, err := r.Arg("threshold")
	require.NoError(t, err)
	_, err = h.ExpectType(schema.BasicType(schema.Int64()))
	require.NoError(t, err)

	require.NoError(t, r.Done())
}

func TestArgsResolver_MissingPositionalIsClientError(t *testing.T) {
	r := NewArgsResolver("op", nil, nil)
	_, err := r.Arg("")
	assert.Error(t, err)
}

func TestArgsResolver_MissingNamedIsClientError(t *testing.T) {
	r := NewArgsResolver("op", nil, nil)
	_, err := r.Arg("missing")
	assert.Error(t, err)
}

func TestArgsResolver_Done_LeftoverPositionalIsError(t *testing.T) {
	r := NewArgsResolver("op", []schema.EnrichedValueType{strArg(), int64Arg()}, nil)
	_, err := r.Arg("")
	require.NoError(t, err)
	assert.Error(t, r.Done(), "second positional argument was never consumed")
}

func TestArgsResolver_Done_LeftoverNamedIsError(t *testing.T) {
	r := NewArgsResolver("op", nil, map[string]schema.EnrichedValueType{"threshold": int64Arg()})
	assert.Error(t, r.Done(), "named argument was never consumed")
}

func TestExpectType_IncompatibleKindRejected(t *testing.T) {
	r := NewArgsResolver("op", []schema.EnrichedValueType{strArg()}, nil)
	h, err := r.Arg("")
	require.NoError(t, err)
	_, err = h.ExpectType(schema.BasicType(schema.Int64()))
	assert.Error(t, err)
}

func TestExpectType_Int64UpcastsToFloat64(t *testing.T) {
	r := NewArgsResolver("op", []schema.EnrichedValueType{int64Arg()}, nil)
	h, err := r.Arg("")
	require.NoError(t, err)
	_, err = h.ExpectType(schema.BasicType(schema.Float64()))
	assert.NoError(t, err, "Int64 must be implicitly upcastable to Float64")
}

func TestRequired_RejectsNullableArgument(t *testing.T) {
	r := NewArgsResolver("op", []schema.EnrichedValueType{{Typ: schema.BasicType(schema.Str()), Nullable: true}}, nil)
	h, err := r.Arg("")
	require.NoError(t, err)
	_, err = h.Required()
	assert.Error(t, err)
}

func TestOptional_AcceptsNullableArgument(t *testing.T) {
	r := NewArgsResolver("op", []schema.EnrichedValueType{{Typ: schema.BasicType(schema.Str()), Nullable: true}}, nil)
	h, err := r.Arg("")
	require.NoError(t, err)
	_, err = h.Optional()
	assert.NoError(t, err)
}
