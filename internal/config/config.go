package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jrsteele09/go-portfolio-auth/auth"
	"github.com/jrsteele09/go-portfolio-auth/users"
	"github.com/rs/zerolog"
)

type Config interface {
	EnvConfig
	CorsConfig
	SessionConfig
	BackendConfig
	StorageConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() zerolog.Level
	GetStaticDir() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type SessionConfig interface {
	GetSessionTimeout() time.Duration
}

type mainConfig struct {
	EnvVars
	Cors
	Session
	Backend
	Storage
}

// New reads the configuration from the process environment
func New() (Config, error) {
	return parse(env.Options{})
}

// FromMap reads the configuration from vars instead of the process
// environment (primarily for testing)
func FromMap(vars map[string]string) (Config, error) {
	if vars == nil {
		vars = map[string]string{}
	}
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var c mainConfig
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return nil, fmt.Errorf("[config.New] parse env: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("[config.New] %w", err)
	}
	return c, nil
}

func (c mainConfig) validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be positive, got %s", c.Timeout)
	}

	switch c.GetAuthBackend() {
	case auth.BackendLocal:
	case auth.BackendRemote:
		if c.OIDCIssuer == "" || c.OIDCClientID == "" {
			return fmt.Errorf("AUTH_BACKEND=remote requires OIDC_ISSUER and OIDC_CLIENT_ID")
		}
	default:
		return fmt.Errorf("AUTH_BACKEND must be local or remote, got %q", c.AuthBackend)
	}

	if !users.CredentialFormat(c.CredentialFormat).Valid() {
		return fmt.Errorf("CREDENTIAL_FORMAT must be legacy or bcrypt, got %q", c.CredentialFormat)
	}

	switch c.GetDocstoreKind() {
	case DocstoreMemory:
	case DocstoreSQLite, DocstorePostgres:
		if c.DocstoreDSN == "" {
			return fmt.Errorf("DOCSTORE=%s requires DOCSTORE_DSN", c.Docstore)
		}
	case DocstoreS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("DOCSTORE=s3 requires S3_BUCKET")
		}
	default:
		return fmt.Errorf("DOCSTORE must be memory, sqlite, postgres or s3, got %q", c.Docstore)
	}
	return nil
}
