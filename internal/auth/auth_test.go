package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexflow/indexflow/internal/errs"
)

type apiKey struct {
	Token string
}

func TestAdd_DuplicateKeyRejected(t *testing.T) {
	r := New()
	require.NoError(t, r.Add("db", apiKey{Token: "a"}))

	err := r.Add("db", apiKey{Token: "b"})
	require.Error(t, err)
	assert.Equal(t, errs.KindClient, errs.Classify(err))
}

func TestAddTransient_IdenticalPayloadsShareKey(t *testing.T) {
	r := New()
	k1, err := r.AddTransient(apiKey{Token: "shared"})
	require.NoError(t, err)
	k2, err := r.AddTransient(apiKey{Token: "shared"})
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	got, err := Get[apiKey](r, k1)
	require.NoError(t, err)
	assert.Equal(t, "shared", got.Token)
}

func TestAddTransient_DistinctPayloadsDistinctKeys(t *testing.T) {
	r := New()
	k1, err := r.AddTransient(apiKey{Token: "one"})
	require.NoError(t, err)
	k2, err := r.AddTransient(apiKey{Token: "two"})
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestResolve_ReturnsRawPayload(t *testing.T) {
	r := New()
	require.NoError(t, r.Add("db", apiKey{Token: "a"}))

	raw, err := r.Resolve("db")
	require.NoError(t, err)
	assert.Equal(t, apiKey{Token: "a"}, raw)
}

func TestResolve_MissingKeyIsClientError(t *testing.T) {
	r := New()
	_, err := r.Resolve("nope")
	require.Error(t, err)
	assert.Equal(t, errs.KindClient, errs.Classify(err))
}

func TestGet_MissingKeyIsClientError(t *testing.T) {
	r := New()
	_, err := Get[apiKey](r, "nope")
	require.Error(t, err)
	assert.Equal(t, errs.KindClient, errs.Classify(err))
}

func TestGet_TypeMismatchIsInternalError(t *testing.T) {
	r := New()
	require.NoError(t, r.Add("db", apiKey{Token: "a"}))

	_, err := Get[string](r, "db")
	require.Error(t, err)
	assert.Equal(t, errs.KindInternal, errs.Classify(err))
}
