package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOf_Stable(t *testing.T) {
	x := map[string]any{"b": 2, "a": 1, "nested": []any{1, 2, map[string]any{"z": 1, "y": 2}}}
	d1, err := Of("salt", x)
	require.NoError(t, err)
	d2, err := Of("salt", x)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestOf_MapKeyOrderIndependent(t *testing.T) {
	x := map[string]any{"a": 1, "b": 2}
	y := map[string]any{"b": 2, "a": 1}
	dx, err := Of("salt", x)
	require.NoError(t, err)
	dy, err := Of("salt", y)
	require.NoError(t, err)
	assert.Equal(t, dx, dy)
}

func TestOf_DistinctInputsDiffer(t *testing.T) {
	d1, err := Of("salt", map[string]any{"a": 1})
	require.NoError(t, err)
	d2, err := Of("salt", map[string]any{"a": 2})
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)
}

func TestOf_SaltDomainSeparates(t *testing.T) {
	d1, err := Of("cocoindex_auth", "same-payload")
	require.NoError(t, err)
	d2, err := Of("cocoindex_memo", "same-payload")
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)
}
