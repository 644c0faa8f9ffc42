// Package local implements the self-contained AuthBackend: credentials are
// verified synchronously against a users.CredentialStore.
package local

import (
	"context"
	"time"

	"github.com/jrsteele09/go-portfolio-auth/auth"
	apperrors "github.com/jrsteele09/go-portfolio-auth/internal/errors"
	"github.com/jrsteele09/go-portfolio-auth/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var _ auth.Backend = (*Backend)(nil)

// DemoCredentials are the credentials of the seeded demo account, offered
// by the login form's "use demo credentials" shortcut.
var DemoCredentials = auth.Credentials{Key: "demo", Secret: "demo123"}

// Backend is the local AuthBackend
type Backend struct {
	store     users.CredentialStore
	validator *auth.Validator
	format    users.CredentialFormat // format used for newly written secrets
	nowTime   func() time.Time
}

// BackendOption defines a function type to modify the Backend instance.
type BackendOption func(*Backend)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) BackendOption {
	return func(b *Backend) {
		b.nowTime = nowFunc
	}
}

// WithCredentialFormat selects the format for newly written secrets.
// Existing secrets keep verifying in whatever format they were stored.
func WithCredentialFormat(format users.CredentialFormat) BackendOption {
	return func(b *Backend) {
		b.format = format
	}
}

func New(store users.CredentialStore, options ...BackendOption) (*Backend, error) {
	if store == nil {
		return nil, errors.New("[local.New] credential store is required")
	}
	b := &Backend{
		store:     store,
		validator: auth.NewValidator(),
		format:    users.FormatLegacy,
		nowTime:   time.Now,
	}
	for _, opt := range options {
		opt(b)
	}
	if !b.format.Valid() {
		return nil, errors.Errorf("[local.New] unknown credential format %q", b.format)
	}
	return b, nil
}

func (b *Backend) Kind() auth.BackendKind {
	return auth.BackendLocal
}

// Login checks the secret against the stored hash and stamps the last login
func (b *Backend) Login(ctx context.Context, credentials auth.Credentials) (*auth.Identity, error) {
	user, err := b.store.Lookup(ctx, credentials.Key)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, auth.InvalidCredentialsErr
	}
	if err != nil {
		return nil, auth.StoreFailure(errors.Wrap(err, "[local.Backend.Login] store.Lookup"))
	}

	if !users.CheckSecret(credentials.Secret, user.CredentialSecret) {
		return nil, auth.InvalidCredentialsErr
	}

	now := b.nowTime().UTC()
	user.LastLoginAt = &now
	if err := b.store.Update(ctx, user); err != nil {
		return nil, auth.StoreFailure(errors.Wrap(err, "[local.Backend.Login] store.Update"))
	}

	log.Info().Str("identity", user.IdentityKey).Msg("Local login succeeded")
	return auth.IdentityFromUser(user), nil
}

// Register validates the profile and inserts a new record with default settings
func (b *Backend) Register(ctx context.Context, profile auth.Profile) (*auth.Identity, error) {
	if err := b.validator.ValidateProfileFields(profile, true); err != nil {
		return nil, err
	}

	_, err := b.store.Lookup(ctx, profile.IdentityKey)
	if err == nil {
		return nil, auth.AlreadyExistsErr
	}
	if !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, auth.StoreFailure(errors.Wrap(err, "[local.Backend.Register] store.Lookup"))
	}

	if err := b.validator.ValidateEmail(profile.Email); err != nil {
		return nil, err
	}

	secret, err := users.HashSecret(b.format, profile.Secret)
	if err != nil {
		return nil, auth.ValidationFailed("secret", "password cannot be stored")
	}

	user := &users.User{
		IdentityKey:      profile.IdentityKey,
		CredentialSecret: secret,
		Email:            profile.Email,
		DisplayName:      profile.DisplayName,
		CreatedAt:        b.nowTime().UTC(),
		Settings:         users.DefaultSettings(),
	}
	if err := b.store.Insert(ctx, user); err != nil {
		if apperrors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, auth.AlreadyExistsErr
		}
		return nil, auth.StoreFailure(errors.Wrap(err, "[local.Backend.Register] store.Insert"))
	}

	log.Info().Str("identity", user.IdentityKey).Msg("Local account registered")
	return auth.IdentityFromUser(user), nil
}

// Logout has no backend-side state to clear
func (b *Backend) Logout(context.Context) error {
	return nil
}

// ChangePassword verifies oldSecret and rewrites the stored hash
func (b *Backend) ChangePassword(ctx context.Context, identity *auth.Identity, oldSecret, newSecret string) error {
	if identity == nil {
		return auth.SessionExpiredErr
	}

	user, err := b.store.Lookup(ctx, identity.ID)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return auth.NotFoundErr
	}
	if err != nil {
		return auth.StoreFailure(errors.Wrap(err, "[local.Backend.ChangePassword] store.Lookup"))
	}

	if !users.CheckSecret(oldSecret, user.CredentialSecret) {
		return &auth.Error{Kind: auth.KindInvalidCredentials, Field: "oldSecret", Message: "current password is incorrect"}
	}
	if err := b.validator.ValidateNewSecret(newSecret); err != nil {
		return err
	}

	secret, err := users.HashSecret(b.format, newSecret)
	if err != nil {
		return auth.ValidationFailed("newSecret", "password cannot be stored")
	}
	user.CredentialSecret = secret
	if err := b.store.Update(ctx, user); err != nil {
		return auth.StoreFailure(errors.Wrap(err, "[local.Backend.ChangePassword] store.Update"))
	}

	log.Info().Str("identity", user.IdentityKey).Msg("Local password changed")
	return nil
}
