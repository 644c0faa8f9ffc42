package auth

import (
	"context"
	"time"

	"github.com/jrsteele09/go-portfolio-auth/users"
)

// BackendKind tags the AuthBackend variant selected at configuration time
type BackendKind string

const (
	BackendLocal  BackendKind = "local"
	BackendRemote BackendKind = "remote"
)

// Credentials are what a user submits to log in. Key is the identity key
// for the local backend and the email address for the remote backend.
type Credentials struct {
	Key    string
	Secret string
}

// Profile is what a user submits to register
type Profile struct {
	IdentityKey string
	Secret      string
	Email       string
	DisplayName string
}

// Identity is the authenticated principal handed out by a Backend. It never
// carries the credential secret.
type Identity struct {
	ID          string         `json:"id"` // local identity key or remote UID
	Email       string         `json:"email"`
	DisplayName string         `json:"displayName"`
	Settings    users.Settings `json:"settings"`
	CreatedAt   time.Time      `json:"createdAt"`
	LastLoginAt *time.Time     `json:"lastLogin,omitempty"`
}

// IdentityFromUser projects a credential record onto an Identity
func IdentityFromUser(u *users.User) *Identity {
	if u == nil {
		return nil
	}
	p := u.Public()
	return &Identity{
		ID:          p.IdentityKey,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		Settings:    p.Settings,
		CreatedAt:   p.CreatedAt,
		LastLoginAt: p.LastLoginAt,
	}
}

// Backend performs credential verification and creation.
type Backend interface {
	// Kind reports which variant this is
	Kind() BackendKind

	// Login verifies credentials and returns the authenticated identity
	Login(ctx context.Context, credentials Credentials) (*Identity, error)

	// Register creates an account and returns its identity
	Register(ctx context.Context, profile Profile) (*Identity, error)

	// Logout ends any backend-side session
	Logout(ctx context.Context) error

	// ChangePassword replaces the secret of identity after verifying oldSecret
	ChangePassword(ctx context.Context, identity *Identity, oldSecret, newSecret string) error
}

// StateNotifier is implemented by backends whose provider pushes
// authentication state changes independently of direct calls. The callback
// receives nil when the provider signs the user out.
type StateNotifier interface {
	OnStateChange(callback func(*Identity)) (unsubscribe func())
}
