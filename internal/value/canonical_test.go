package value

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/indexflow/indexflow/internal/fingerprint"
)

func TestCanonicalPayload_DistinctValuesDiffer(t *testing.T) {
	a := FromBasic(Str("hello"))
	b := FromBasic(Str("world"))
	fa, err := fingerprint.Of("test", CanonicalPayload(a))
	assert.NoError(t, err)
	fb, err := fingerprint.Of("test", CanonicalPayload(b))
	assert.NoError(t, err)
	assert.NotEqual(t, fa, fb, "distinct runtime values must not collide on the same fingerprint")
}

func TestCanonicalPayload_StructFieldOrderMatters(t *testing.T) {
	row := FromStruct(FieldValues{FromBasic(Str("a")), FromBasic(Int64(1))})
	other := FromStruct(FieldValues{FromBasic(Int64(1)), FromBasic(Str("a"))})
	f1, err := fingerprint.Of("test", CanonicalPayload(row))
	assert.NoError(t, err)
	f2, err := fingerprint.Of("test", CanonicalPayload(other))
	assert.NoError(t, err)
	assert.NotEqual(t, f1, f2)
}

func TestCanonicalPayload_UuidSelfDescribing(t *testing.T) {
	u := uuid.New()
	v := FromBasic(Uuid(u))
	assert.Equal(t, u.String(), CanonicalPayload(v))
}

func TestCanonicalPayload_VectorRecurses(t *testing.T) {
	v := FromBasic(Vector([]Basic{Float64(1.5), Float64(2.5)}))
	payload := CanonicalPayload(v)
	assert.Equal(t, []any{1.5, 2.5}, payload)
}
