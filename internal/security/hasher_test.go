package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	t.Parallel()

	h := NewBcryptHasher(bcrypt.MinCost)

	t.Run("hash verifies and is salted", func(t *testing.T) {
		first, err := h.Hash("Secret123")
		require.NoError(t, err)
		second, err := h.Hash("Secret123")
		require.NoError(t, err)

		assert.NotEqual(t, first, second)
		assert.NotContains(t, first, "Secret123")
		assert.True(t, h.Verify("Secret123", first))
		assert.False(t, h.Verify("Secret124", first))
	})

	t.Run("empty password is rejected", func(t *testing.T) {
		_, err := h.Hash("")
		require.ErrorIs(t, err, ErrEmptyPassword)
	})

	t.Run("malformed hash never matches", func(t *testing.T) {
		assert.False(t, h.Verify("Secret123", "not-a-hash"))
		assert.False(t, h.Verify("Secret123", ""))
	})

	t.Run("lower cost hashes need upgrade", func(t *testing.T) {
		weak, err := bcrypt.GenerateFromPassword([]byte("Secret123"), bcrypt.MinCost)
		require.NoError(t, err)

		stronger := NewBcryptHasher(bcrypt.MinCost + 1)
		assert.True(t, stronger.NeedsUpgrade(string(weak)))
		assert.False(t, h.NeedsUpgrade(string(weak)))
		assert.True(t, h.NeedsUpgrade("$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$a2V5"))
	})

	t.Run("out of range cost falls back to default", func(t *testing.T) {
		assert.Equal(t, DefaultBcryptCost, NewBcryptHasher(0).cost)
		assert.Equal(t, DefaultBcryptCost, NewBcryptHasher(bcrypt.MaxCost+1).cost)
	})
}

func TestArgon2idHasher(t *testing.T) {
	t.Parallel()

	h := NewArgon2idHasher()

	hash, err := h.Hash("Secret123")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$"))

	assert.True(t, h.Verify("Secret123", hash))
	assert.False(t, h.Verify("secret123", hash))
	assert.False(t, h.NeedsUpgrade(hash))

	t.Run("malformed encodings never match", func(t *testing.T) {
		for _, encoded := range []string{
			"",
			"$argon2id$",
			"$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$a2V5",
			"$argon2id$v=18$m=65536,t=1,p=4$c2FsdA$a2V5",
			"$argon2id$v=19$m=65536,t=1,p=999$c2FsdA$a2V5",
			"$argon2id$v=19$m=65536,t=1,p=4$!!!$a2V5",
		} {
			assert.False(t, h.Verify("Secret123", encoded), encoded)
			assert.True(t, h.NeedsUpgrade(encoded), encoded)
		}
	})
}

func TestMultiHasher(t *testing.T) {
	t.Parallel()

	t.Run("unknown algorithm is rejected", func(t *testing.T) {
		_, err := NewHasher("md5", bcrypt.MinCost)
		require.Error(t, err)
	})

	t.Run("bcrypt preferred verifies argon2id hashes and flags them", func(t *testing.T) {
		m, err := NewHasher(AlgorithmBcrypt, bcrypt.MinCost)
		require.NoError(t, err)

		legacy, err := NewArgon2idHasher().Hash("Secret123")
		require.NoError(t, err)

		assert.True(t, m.Verify("Secret123", legacy))
		assert.True(t, m.NeedsUpgrade(legacy))

		current, err := m.Hash("Secret123")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(current, "$2a$"))
		assert.False(t, m.NeedsUpgrade(current))
	})

	t.Run("argon2id preferred flags bcrypt hashes", func(t *testing.T) {
		m, err := NewHasher(" Argon2id ", bcrypt.MinCost)
		require.NoError(t, err)

		legacy, err := NewBcryptHasher(bcrypt.MinCost).Hash("Secret123")
		require.NoError(t, err)

		assert.True(t, m.Verify("Secret123", legacy))
		assert.True(t, m.NeedsUpgrade(legacy))
	})

	t.Run("unrecognized hash format never matches", func(t *testing.T) {
		m, err := NewHasher("", bcrypt.MinCost)
		require.NoError(t, err)
		assert.False(t, m.Verify("Secret123", "plain:Secret123"))
	})
}
