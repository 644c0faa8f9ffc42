// Package remote implements the AuthBackend that delegates credentials to an
// external identity provider and keeps profile and scoped data documents in
// a remote document store.
package remote

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-portfolio-auth/auth"
	"github.com/jrsteele09/go-portfolio-auth/docstore"
	"github.com/jrsteele09/go-portfolio-auth/identity"
	"github.com/jrsteele09/go-portfolio-auth/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const codeDocstoreUnavailable = "docstore/unavailable"

var (
	_ auth.Backend       = (*Backend)(nil)
	_ auth.StateNotifier = (*Backend)(nil)
)

// ProfileDocument is the users/<uid> document
type ProfileDocument struct {
	Email       string         `json:"email"`
	DisplayName string         `json:"displayName"`
	Settings    users.Settings `json:"settings"`
	CreatedAt   time.Time      `json:"createdAt"`
	LastLogin   *time.Time     `json:"lastLogin,omitempty"`
}

// Backend is the remote AuthBackend. It is constructed not ready: Start
// initialises the provider and opens the readiness gate. Calls made before
// that wait on the gate instead of failing.
type Backend struct {
	provider  identity.Provider
	docs      docstore.Store
	validator *auth.Validator
	nowTime   func() time.Time

	startMu sync.Mutex
	started bool
	ready   chan struct{}
}

// BackendOption defines a function type to modify the Backend instance.
type BackendOption func(*Backend)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) BackendOption {
	return func(b *Backend) {
		b.nowTime = nowFunc
	}
}

func New(provider identity.Provider, docs docstore.Store, options ...BackendOption) (*Backend, error) {
	if provider == nil {
		return nil, errors.New("[remote.New] identity provider is required")
	}
	if docs == nil {
		return nil, errors.New("[remote.New] document store is required")
	}
	b := &Backend{
		provider:  provider,
		docs:      docs,
		validator: auth.NewValidator(),
		nowTime:   time.Now,
		ready:     make(chan struct{}),
	}
	for _, opt := range options {
		opt(b)
	}
	return b, nil
}

// Start initialises the provider and opens the readiness gate. A failed
// Start may be retried; once started further calls are no-ops.
func (b *Backend) Start(ctx context.Context) error {
	b.startMu.Lock()
	defer b.startMu.Unlock()

	if b.started {
		return nil
	}
	if err := b.provider.Init(ctx); err != nil {
		return MapProviderError(err)
	}
	b.started = true
	close(b.ready)

	log.Info().Msg("Remote auth backend ready")
	return nil
}

// Ready reports whether Start has completed
func (b *Backend) Ready() bool {
	select {
	case <-b.ready:
		return true
	default:
		return false
	}
}

func (b *Backend) awaitReady(ctx context.Context) error {
	select {
	case <-b.ready:
		return nil
	case <-ctx.Done():
		return auth.NetworkFailure(identity.CodeTimeout, errors.Wrap(ctx.Err(), "[remote.Backend] waiting for readiness"))
	}
}

func (b *Backend) Kind() auth.BackendKind {
	return auth.BackendRemote
}

// Login authenticates with the provider, stamps lastLogin on the profile
// document and reads the profile back into the identity. An account whose
// registration never wrote its documents gets them written here.
func (b *Backend) Login(ctx context.Context, credentials auth.Credentials) (*auth.Identity, error) {
	if err := b.awaitReady(ctx); err != nil {
		return nil, err
	}

	account, err := b.provider.Authenticate(ctx, credentials.Key, credentials.Secret)
	if err != nil {
		return nil, MapProviderError(err)
	}

	profile, err := b.completeLogin(ctx, account)
	if err != nil {
		return nil, b.abandon(ctx, account.UID, err)
	}

	log.Info().Str("uid", account.UID).Msg("Remote login succeeded")
	return identityFrom(account, profile), nil
}

func (b *Backend) completeLogin(ctx context.Context, account *identity.Account) (*ProfileDocument, error) {
	now := b.nowTime().UTC()

	profile, ok, err := b.ProfileDocument(ctx, account.UID)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Warn().Str("uid", account.UID).Msg("Account has no profile document, writing initial documents")
		return b.writeInitialDocuments(ctx, account, now)
	}

	if err := b.writeDocument(ctx, docstore.CollectionUsers, account.UID, docstore.Document{"lastLogin": now}); err != nil {
		return nil, err
	}
	profile.LastLogin = &now
	return profile, nil
}

// Register creates the provider account, sets its display name and writes
// the initial scoped data and profile documents. The profile is written last
// so its presence marks a completed registration.
func (b *Backend) Register(ctx context.Context, profile auth.Profile) (*auth.Identity, error) {
	if err := b.validator.ValidateProfileFields(profile, false); err != nil {
		return nil, err
	}
	if err := b.validator.ValidateEmail(profile.Email); err != nil {
		return nil, err
	}
	if err := b.awaitReady(ctx); err != nil {
		return nil, err
	}

	account, err := b.provider.CreateAccount(ctx, profile.Email, profile.Secret)
	if err != nil {
		return nil, MapProviderError(err)
	}

	doc, err := b.completeRegistration(ctx, account, profile.DisplayName)
	if err != nil {
		log.Err(err).Str("uid", account.UID).Msg("Remote account created but registration did not complete")
		return nil, b.abandon(ctx, account.UID, err)
	}

	log.Info().Str("uid", account.UID).Msg("Remote account registered")
	return identityFrom(account, doc), nil
}

func (b *Backend) completeRegistration(ctx context.Context, account *identity.Account, displayName string) (*ProfileDocument, error) {
	if err := b.provider.UpdateProfile(ctx, account.UID, identity.ProfileFields{DisplayName: &displayName}); err != nil {
		return nil, MapProviderError(err)
	}
	account.DisplayName = displayName
	return b.writeInitialDocuments(ctx, account, b.nowTime().UTC())
}

// writeInitialDocuments creates portfolios/<uid> unless it already exists and
// then the users/<uid> profile.
func (b *Backend) writeInitialDocuments(ctx context.Context, account *identity.Account, now time.Time) (*ProfileDocument, error) {
	_, exists, err := b.Documents().ReadDocument(ctx, docstore.CollectionPortfolios, account.UID)
	if err != nil {
		if auth.KindOf(err) != "" {
			return nil, err
		}
		return nil, auth.NetworkFailure(codeDocstoreUnavailable, errors.Wrap(err, "[remote.Backend] read initial portfolio"))
	}
	if !exists {
		portfolio := docstore.Document{"owner": account.UID, "portfolio": []any{}, "settings": users.DefaultSettings()}
		if err := b.writeDocument(ctx, docstore.CollectionPortfolios, account.UID, portfolio); err != nil {
			return nil, err
		}
	}

	doc := ProfileDocument{
		Email:       account.Email,
		DisplayName: account.DisplayName,
		Settings:    users.DefaultSettings(),
		CreatedAt:   now,
		LastLogin:   &now,
	}
	if err := b.SaveProfileDocument(ctx, account.UID, doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// abandon ends the provider session opened by a call that then failed, so
// the provider is never left signed in behind an error.
func (b *Backend) abandon(ctx context.Context, uid string, cause error) error {
	if err := b.provider.EndSession(context.WithoutCancel(ctx)); err != nil {
		log.Err(err).Str("uid", uid).Msg("Failed to end provider session after a failed call")
	}
	return cause
}

// Logout ends the provider session. Before Start there is no provider
// session to end, so it returns at once.
func (b *Backend) Logout(ctx context.Context) error {
	if !b.Ready() {
		return nil
	}
	return MapProviderError(b.provider.EndSession(ctx))
}

// ChangePassword re-authenticates with oldSecret and then updates the secret
func (b *Backend) ChangePassword(ctx context.Context, id *auth.Identity, oldSecret, newSecret string) error {
	if id == nil {
		return auth.SessionExpiredErr
	}
	if err := b.awaitReady(ctx); err != nil {
		return err
	}

	if _, err := b.provider.Authenticate(ctx, id.Email, oldSecret); err != nil {
		mapped := MapProviderError(err)
		if errors.Is(mapped, auth.InvalidCredentialsErr) {
			return &auth.Error{Kind: auth.KindInvalidCredentials, Field: "oldSecret", Code: identity.CodeOf(err), Message: "current password is incorrect", Err: err}
		}
		return mapped
	}
	if err := b.validator.ValidateNewSecret(newSecret); err != nil {
		return err
	}

	if err := b.provider.UpdateProfile(ctx, id.ID, identity.ProfileFields{Secret: &newSecret}); err != nil {
		return MapProviderError(err)
	}

	log.Info().Str("uid", id.ID).Msg("Remote password changed")
	return nil
}

// OnStateChange forwards provider-side sign-in/sign-out transitions
func (b *Backend) OnStateChange(callback func(*auth.Identity)) func() {
	return b.provider.OnStateChange(func(account *identity.Account) {
		if account == nil {
			callback(nil)
			return
		}
		callback(identityFrom(account, nil))
	})
}

// ProfileDocument reads users/<uid>
func (b *Backend) ProfileDocument(ctx context.Context, uid string) (*ProfileDocument, bool, error) {
	if err := b.awaitReady(ctx); err != nil {
		return nil, false, err
	}

	doc, ok, err := b.docs.ReadDocument(ctx, docstore.CollectionUsers, uid)
	if err != nil {
		return nil, false, auth.NetworkFailure(codeDocstoreUnavailable, errors.Wrap(err, "[remote.Backend.ProfileDocument] read"))
	}
	if !ok {
		return nil, false, nil
	}

	var profile ProfileDocument
	if err := docstore.Decode(doc, &profile); err != nil {
		return nil, false, &auth.Error{Kind: auth.KindMalformedStore, Message: auth.MalformedStoreErr.Message, Err: err}
	}
	return &profile, true, nil
}

// SaveProfileDocument merges profile into users/<uid>
func (b *Backend) SaveProfileDocument(ctx context.Context, uid string, profile ProfileDocument) error {
	doc, err := docstore.Encode(profile)
	if err != nil {
		return errors.Wrap(err, "[remote.Backend.SaveProfileDocument] encode")
	}
	return b.writeDocument(ctx, docstore.CollectionUsers, uid, doc)
}

// MirrorSettings merges settings into users/<uid> so the next login reads them
func (b *Backend) MirrorSettings(ctx context.Context, uid string, settings users.Settings) error {
	return b.writeDocument(ctx, docstore.CollectionUsers, uid, docstore.Document{"settings": settings})
}

func (b *Backend) writeDocument(ctx context.Context, collection, id string, doc docstore.Document) error {
	if err := b.awaitReady(ctx); err != nil {
		return err
	}
	if err := b.docs.WriteDocument(ctx, collection, id, doc, true); err != nil {
		return auth.NetworkFailure(codeDocstoreUnavailable, errors.Wrapf(err, "[remote.Backend] write %s/%s", collection, id))
	}
	return nil
}

func identityFrom(account *identity.Account, profile *ProfileDocument) *auth.Identity {
	id := &auth.Identity{
		ID:          account.UID,
		Email:       account.Email,
		DisplayName: account.DisplayName,
		Settings:    users.DefaultSettings(),
	}
	if profile == nil {
		return id
	}
	if profile.DisplayName != "" {
		id.DisplayName = profile.DisplayName
	}
	if id.Email == "" {
		id.Email = profile.Email
	}
	id.Settings = withDefaults(profile.Settings)
	id.CreatedAt = profile.CreatedAt
	id.LastLoginAt = profile.LastLogin
	return id
}

func withDefaults(s users.Settings) users.Settings {
	d := users.DefaultSettings()
	if s.Theme == "" && s.Currency == "" {
		return d
	}
	if s.Theme == "" {
		s.Theme = d.Theme
	}
	if s.Currency == "" {
		s.Currency = d.Currency
	}
	return s
}
