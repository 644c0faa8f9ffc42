package users_test

import (
	"testing"

	"github.com/jrsteele09/go-portfolio-auth/users"
	"github.com/stretchr/testify/require"
)

func TestLegacyHash(t *testing.T) {
	tests := []struct {
		secret string
		want   string
	}{
		{"demo123", "1551618415"},
		{"secret1", "1970177921"},
		{"qwerty", "-946852072"},
		{"a", "97"},
		{"", "0"},
		// Non-BMP characters hash as two UTF-16 surrogate code units
		{"héllo😀", "291564465"},
	}

	for _, tt := range tests {
		t.Run(tt.secret, func(t *testing.T) {
			require.Equal(t, tt.want, users.LegacyHash(tt.secret))
			// Deterministic across calls
			require.Equal(t, users.LegacyHash(tt.secret), users.LegacyHash(tt.secret))
		})
	}
}

func TestHashSecret_Formats(t *testing.T) {
	t.Run("legacy", func(t *testing.T) {
		stored, err := users.HashSecret(users.FormatLegacy, "demo123")
		require.NoError(t, err)
		require.Equal(t, "1551618415", stored)
		require.Equal(t, users.FormatLegacy, users.FormatOf(stored))
		require.True(t, users.CheckSecret("demo123", stored))
		require.False(t, users.CheckSecret("demo124", stored))
	})

	t.Run("bcrypt", func(t *testing.T) {
		stored, err := users.HashSecret(users.FormatBcrypt, "demo123")
		require.NoError(t, err)
		require.Equal(t, users.FormatBcrypt, users.FormatOf(stored))
		require.True(t, users.CheckSecret("demo123", stored))
		require.False(t, users.CheckSecret("demo124", stored))
	})

	t.Run("empty stored secret never verifies", func(t *testing.T) {
		require.False(t, users.CheckSecret("", ""))
	})

	t.Run("format names", func(t *testing.T) {
		require.True(t, users.FormatLegacy.Valid())
		require.True(t, users.FormatBcrypt.Valid())
		require.False(t, users.CredentialFormat("md5").Valid())
	})
}

func TestUser_PublicDropsSecret(t *testing.T) {
	u := &users.User{IdentityKey: "alice", CredentialSecret: "123", Settings: users.DefaultSettings()}

	p := u.Public()
	require.Empty(t, p.CredentialSecret)
	require.Equal(t, "alice", p.IdentityKey)
	require.Equal(t, "123", u.CredentialSecret, "original must be untouched")
}
