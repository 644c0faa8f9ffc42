package config

import (
	"github.com/jrsteele09/go-portfolio-auth/auth"
	"github.com/jrsteele09/go-portfolio-auth/identity/oidcprovider"
	"github.com/jrsteele09/go-portfolio-auth/users"
)

// BackendConfig selects the one credential backend of the process
type BackendConfig interface {
	GetAuthBackend() auth.BackendKind
	GetCredentialFormat() users.CredentialFormat
	GetOIDCConfig() oidcprovider.Config
}

type Backend struct {
	AuthBackend      string `env:"AUTH_BACKEND" envDefault:"local"`
	CredentialFormat string `env:"CREDENTIAL_FORMAT" envDefault:"legacy"`

	OIDCIssuer       string `env:"OIDC_ISSUER"`
	OIDCClientID     string `env:"OIDC_CLIENT_ID"`
	OIDCClientSecret string `env:"OIDC_CLIENT_SECRET"`
	OIDCSignupURL    string `env:"OIDC_SIGNUP_URL"`
	OIDCProfileURL   string `env:"OIDC_PROFILE_URL"`
	OIDCRevokeURL    string `env:"OIDC_REVOKE_URL"`
}

var _ BackendConfig = Backend{}

func (b Backend) GetAuthBackend() auth.BackendKind {
	return auth.BackendKind(b.AuthBackend)
}

func (b Backend) GetCredentialFormat() users.CredentialFormat {
	return users.CredentialFormat(b.CredentialFormat)
}

func (b Backend) GetOIDCConfig() oidcprovider.Config {
	return oidcprovider.Config{
		IssuerURL:    b.OIDCIssuer,
		ClientID:     b.OIDCClientID,
		ClientSecret: b.OIDCClientSecret,
		SignupURL:    b.OIDCSignupURL,
		ProfileURL:   b.OIDCProfileURL,
		RevokeURL:    b.OIDCRevokeURL,
	}
}
