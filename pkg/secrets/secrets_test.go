package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledVaultReadsEnvironment(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")

	m, err := NewVaultManager(VaultConfig{Enabled: false}, nil)
	require.NoError(t, err)
	defer m.Close()

	v, err := m.GetSecret(context.Background(), "gemini_api_key")
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)

	_, err = m.GetSecret(context.Background(), "missing-key")
	assert.ErrorIs(t, err, ErrSecretNotFound)
	assert.Equal(t, "fallback", m.GetSecretWithDefault(context.Background(), "missing-key", "fallback"))
}

func TestEnabledVaultNeedsAddressAndToken(t *testing.T) {
	_, err := NewVaultManager(VaultConfig{Enabled: true}, nil)
	assert.ErrorIs(t, err, ErrNoVaultAddress)

	_, err = NewVaultManager(VaultConfig{Enabled: true, Address: "http://127.0.0.1:8200"}, nil)
	assert.ErrorIs(t, err, ErrNoVaultToken)
}

func TestDefaultManager(t *testing.T) {
	SetManager(nil)
	_, err := GetSecret(context.Background(), "x")
	assert.ErrorIs(t, err, ErrManagerNotInitialized)
	assert.Equal(t, "d", GetSecretWithDefault(context.Background(), "x", "d"))

	t.Setenv("CALMA_TEST_SECRET", "s3cret")
	m, err := Init(VaultConfig{}, nil)
	require.NoError(t, err)
	defer m.Close()
	defer SetManager(nil)

	v, err := GetSecret(context.Background(), "calma.test.secret")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", v)
}
