package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-portfolio-auth/auth"
	"github.com/jrsteele09/go-portfolio-auth/internal/config"
	"github.com/jrsteele09/go-portfolio-auth/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestFromMap_Defaults(t *testing.T) {
	cfg, err := config.FromMap(map[string]string{})
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.GetPort())
	require.Equal(t, "DEV", cfg.GetEnv())
	require.Equal(t, zerolog.InfoLevel, cfg.GetLogLevel())
	require.Equal(t, 30*time.Minute, cfg.GetSessionTimeout())
	require.Equal(t, auth.BackendLocal, cfg.GetAuthBackend())
	require.Equal(t, users.FormatLegacy, cfg.GetCredentialFormat())
	require.Equal(t, "./data/portfolio.db", cfg.GetLocalDB())
	require.Equal(t, config.DocstoreMemory, cfg.GetDocstoreKind())
	require.Empty(t, cfg.GetAllowedOrigins())
}

func TestFromMap_Overrides(t *testing.T) {
	cfg, err := config.FromMap(map[string]string{
		"PORT":                 ":9090",
		"LOG_LEVEL":            "debug",
		"SESSION_TIMEOUT":      "5m",
		"AUTH_BACKEND":         "remote",
		"CREDENTIAL_FORMAT":    "bcrypt",
		"OIDC_ISSUER":          "https://id.example.com",
		"OIDC_CLIENT_ID":       "portfolio",
		"OIDC_SIGNUP_URL":      "https://id.example.com/signup",
		"DOCSTORE":             "s3",
		"S3_BUCKET":            "portfolio-docs",
		"S3_ENDPOINT":          "http://localhost:9000",
		"CORS_ALLOWED_ORIGINS": "http://localhost:3000, https://app.example.com",
	})
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.GetPort())
	require.Equal(t, zerolog.DebugLevel, cfg.GetLogLevel())
	require.Equal(t, 5*time.Minute, cfg.GetSessionTimeout())
	require.Equal(t, auth.BackendRemote, cfg.GetAuthBackend())
	require.Equal(t, users.FormatBcrypt, cfg.GetCredentialFormat())

	oidc := cfg.GetOIDCConfig()
	require.Equal(t, "https://id.example.com", oidc.IssuerURL)
	require.Equal(t, "portfolio", oidc.ClientID)
	require.Equal(t, "https://id.example.com/signup", oidc.SignupURL)

	s3 := cfg.GetS3Config()
	require.Equal(t, "portfolio-docs", s3.Bucket)
	require.Equal(t, "us-east-1", s3.Region)
	require.Equal(t, "http://localhost:9000", s3.Endpoint)

	origins := cfg.GetAllowedOrigins()
	require.True(t, origins.IsAllowedOrigin("http://localhost:3000"))
	require.True(t, origins.IsAllowedOrigin("https://app.example.com"))
	require.False(t, origins.IsAllowedOrigin("https://evil.example.com"))
}

func TestFromMap_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"unknown backend":       {"AUTH_BACKEND": "firebase"},
		"remote without issuer": {"AUTH_BACKEND": "remote", "OIDC_CLIENT_ID": "x"},
		"unknown format":        {"CREDENTIAL_FORMAT": "md5"},
		"unknown docstore":      {"DOCSTORE": "mongo"},
		"sqlite without dsn":    {"DOCSTORE": "sqlite"},
		"s3 without bucket":     {"DOCSTORE": "s3"},
		"bad timeout":           {"SESSION_TIMEOUT": "soon"},
		"zero timeout":          {"SESSION_TIMEOUT": "0s"},
		"bad log level":         {"LOG_LEVEL": "loud"},
	}
	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := config.FromMap(vars)
			require.Error(t, err)
		})
	}
}
