package secrets

import (
	"crypto/hmac"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKey_CopiesInput(t *testing.T) {
	raw := []byte("0123456789abcdef0123456789abcdef")
	k, err := NewKey(raw)
	require.NoError(t, err)

	assert.Equal(t, "0123456789abcdef0123456789abcdef", string(raw), "caller's slice must survive sealing")
	assert.Equal(t, len(raw), k.Len())

	got, err := k.Bytes()
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestNewKey_Empty(t *testing.T) {
	_, err := NewKey(nil)
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, err = Generate(0)
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestGenerate(t *testing.T) {
	a, err := Generate(32)
	require.NoError(t, err)
	b, err := Generate(32)
	require.NoError(t, err)

	ab, err := a.Bytes()
	require.NoError(t, err)
	bb, err := b.Bytes()
	require.NoError(t, err)

	assert.Len(t, ab, 32)
	assert.NotEqual(t, ab, bb)
}

func TestMAC(t *testing.T) {
	raw := []byte("secret")
	k, err := NewKey(raw)
	require.NoError(t, err)

	got, err := k.MAC([]byte("message"))
	require.NoError(t, err)

	mac := hmac.New(sha256.New, raw)
	mac.Write([]byte("message"))
	assert.Equal(t, mac.Sum(nil), got)
}
