package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher(t *testing.T) {
	hasher, err := NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	t.Run("hash and verify", func(t *testing.T) {
		hash, err := hasher.Hash("correct horse battery staple")
		require.NoError(t, err)
		assert.NotEqual(t, "correct horse battery staple", hash)

		assert.True(t, hasher.Verify("correct horse battery staple", hash))
		assert.False(t, hasher.Verify("wrong password", hash))
	})

	t.Run("same input yields different hashes", func(t *testing.T) {
		first, err := hasher.Hash("secret1")
		require.NoError(t, err)
		second, err := hasher.Hash("secret1")
		require.NoError(t, err)

		// bcrypt salts every hash
		assert.NotEqual(t, first, second)
		assert.True(t, hasher.Verify("secret1", first))
		assert.True(t, hasher.Verify("secret1", second))
	})

	t.Run("verify rejects garbage hash", func(t *testing.T) {
		assert.False(t, hasher.Verify("secret1", "not-a-bcrypt-hash"))
	})
}

func TestNewPasswordHasher_CostRange(t *testing.T) {
	_, err := NewPasswordHasher(bcrypt.MinCost - 1)
	assert.Error(t, err)

	_, err = NewPasswordHasher(bcrypt.MaxCost + 1)
	assert.Error(t, err)

	_, err = NewPasswordHasher(bcrypt.MinCost)
	assert.NoError(t, err)
}
