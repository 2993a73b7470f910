package secrets_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stresssense/stresssense/internal/secrets"
)

func TestNewManager_EmptyPepper(t *testing.T) {
	_, err := secrets.NewManager("")
	assert.ErrorIs(t, err, secrets.ErrEmptyPepper)
}

func TestGenerateKey_DefaultLength(t *testing.T) {
	m, err := secrets.NewManager("test-pepper")
	require.NoError(t, err)

	key, err := m.GenerateKey(0)
	require.NoError(t, err)
	assert.Len(t, key, secrets.DefaultKeyLength)

	for _, c := range key {
		isAlnum := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		assert.True(t, isAlnum, "key contains non-alphanumeric character %q", c)
	}
}

func TestGenerateKey_ExplicitLength(t *testing.T) {
	m, err := secrets.NewManager("test-pepper")
	require.NoError(t, err)

	key, err := m.GenerateKey(48)
	require.NoError(t, err)
	assert.Len(t, key, 48)
}

func TestHashKey_Deterministic(t *testing.T) {
	m, err := secrets.NewManager("test-pepper")
	require.NoError(t, err)

	first := m.HashKey("some-key")
	second := m.HashKey("some-key")
	assert.Equal(t, first, second)
	assert.Len(t, first, 64) // hex-encoded SHA-256
}

func TestHashKey_PepperChangesDigest(t *testing.T) {
	m1, err := secrets.NewManager("pepper-one")
	require.NoError(t, err)
	m2, err := secrets.NewManager("pepper-two")
	require.NoError(t, err)

	assert.NotEqual(t, m1.HashKey("some-key"), m2.HashKey("some-key"))
}

func TestVerifyKey_RoundTrip(t *testing.T) {
	m, err := secrets.NewManager("test-pepper")
	require.NoError(t, err)

	keyA, err := m.GenerateKey(0)
	require.NoError(t, err)
	keyB, err := m.GenerateKey(0)
	require.NoError(t, err)

	digestA := m.HashKey(keyA)
	digestB := m.HashKey(keyB)

	assert.True(t, m.VerifyKey(keyA, digestA), "key must verify against its own digest")
	assert.True(t, m.VerifyKey(keyB, digestB))
	assert.False(t, m.VerifyKey(keyA, digestB), "key A must not verify against key B's digest")
	assert.False(t, m.VerifyKey(keyB, digestA))
}

func TestVerifyKey_RejectsTampering(t *testing.T) {
	m, err := secrets.NewManager("test-pepper")
	require.NoError(t, err)

	digest := m.HashKey("original")
	assert.False(t, m.VerifyKey("original ", digest))
	assert.False(t, m.VerifyKey("Original", digest))
	assert.False(t, m.VerifyKey("", digest))
}
