package auth_test

import (
	"errors"
	"testing"

	"github.com/jrsteele09/go-portfolio-auth/auth"
	"github.com/stretchr/testify/require"
)

func TestValidator_ValidateProfileFields(t *testing.T) {
	v := auth.NewValidator()

	valid := auth.Profile{IdentityKey: "alice", Secret: "secret1", Email: "a@a.com", DisplayName: "Alice"}

	tests := []struct {
		name       string
		mutate     func(p *auth.Profile)
		requireKey bool
		field      string
	}{
		{name: "valid", mutate: func(p *auth.Profile) {}, requireKey: true},
		{name: "missing key", mutate: func(p *auth.Profile) { p.IdentityKey = "" }, requireKey: true, field: "profile"},
		{name: "missing key allowed for email backends", mutate: func(p *auth.Profile) { p.IdentityKey = "" }, requireKey: false},
		{name: "missing display name", mutate: func(p *auth.Profile) { p.DisplayName = "" }, requireKey: true, field: "profile"},
		{name: "missing email", mutate: func(p *auth.Profile) { p.Email = "" }, requireKey: true, field: "profile"},
		{name: "short key", mutate: func(p *auth.Profile) { p.IdentityKey = "al" }, requireKey: true, field: "identityKey"},
		{name: "three char key", mutate: func(p *auth.Profile) { p.IdentityKey = "ali" }, requireKey: true},
		{name: "short secret", mutate: func(p *auth.Profile) { p.Secret = "12345" }, requireKey: true, field: "secret"},
		// One astral character is two UTF-16 units
		{name: "secret counted in utf16 units", mutate: func(p *auth.Profile) { p.Secret = "ab😀cd" }, requireKey: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := v.ValidateProfileFields(p, tt.requireKey)
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, auth.ValidationFailedErr)
			var authErr *auth.Error
			require.True(t, errors.As(err, &authErr))
			require.Equal(t, tt.field, authErr.Field)
		})
	}
}

func TestValidator_ValidateEmail(t *testing.T) {
	v := auth.NewValidator()

	for _, email := range []string{"a@a.com", "first.last@sub.example.org"} {
		require.NoError(t, v.ValidateEmail(email), email)
	}
	for _, email := range []string{"a@a", "a a@b.com", "@b.com", "a@.com ", "plain"} {
		require.ErrorIs(t, v.ValidateEmail(email), auth.ValidationFailedErr, email)
	}
}

func TestValidator_ValidateNewSecret(t *testing.T) {
	v := auth.NewValidator()

	require.NoError(t, v.ValidateNewSecret("123456"))
	err := v.ValidateNewSecret("12345")
	require.ErrorIs(t, err, &auth.Error{Kind: auth.KindValidationFailed, Field: "newSecret"})
}

func TestValidator_ValidateCredentials(t *testing.T) {
	v := auth.NewValidator()

	require.NoError(t, v.ValidateCredentials(auth.Credentials{Key: "demo", Secret: "demo123"}))
	require.ErrorIs(t, v.ValidateCredentials(auth.Credentials{Key: " ", Secret: "x"}), auth.ValidationFailedErr)
	require.ErrorIs(t, v.ValidateCredentials(auth.Credentials{Key: "demo"}), auth.ValidationFailedErr)
}
