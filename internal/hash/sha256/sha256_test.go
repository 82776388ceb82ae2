package sha256

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasherDeterministic(t *testing.T) {
	t.Parallel()

	body := []byte(`{"raw":{"itemList":{"count":97}}}`)
	h := New()
	got, err := h.Hash(body)
	require.NoError(t, err)
	require.Len(t, got, 64)

	again, err := h.Hash(body)
	require.NoError(t, err)
	require.Equal(t, got, again)

	other, err := h.Hash([]byte(`{"raw":{"itemList":{"count":98}}}`))
	require.NoError(t, err)
	require.NotEqual(t, got, other)
}

func TestHasherKnownDigest(t *testing.T) {
	t.Parallel()

	got, err := New().Hash([]byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", got)
}

func TestHasherRejectsEmpty(t *testing.T) {
	t.Parallel()

	_, err := New().Hash(nil)
	require.Error(t, err)

	var zero Hasher
	got, err := zero.Hash([]byte("x"))
	require.NoError(t, err)
	require.Len(t, got, 64)
}
