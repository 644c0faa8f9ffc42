package userdata

import (
	"context"
	"errors"

	"github.com/jrsteele09/go-portfolio-auth/auth"
	apperrors "github.com/jrsteele09/go-portfolio-auth/internal/errors"
	"github.com/jrsteele09/go-portfolio-auth/users"
	"github.com/rs/zerolog/log"
)

// SettingsMirror copies saved settings onto the account record the backend
// hands out at login, so the next login starts with them.
type SettingsMirror interface {
	MirrorSettings(ctx context.Context, owner string, settings users.Settings) error
}

// Scope loads and saves the data of one identity at a time
type Scope struct {
	repo   Repo
	mirror SettingsMirror
}

// ScopeOption defines a function type to modify the Scope instance.
type ScopeOption func(*Scope)

// WithSettingsMirror mirrors every saved settings value through m
func WithSettingsMirror(m SettingsMirror) ScopeOption {
	return func(s *Scope) {
		s.mirror = m
	}
}

func NewScope(repo Repo, options ...ScopeOption) (*Scope, error) {
	if repo == nil {
		return nil, errors.New("[userdata.NewScope] repo is required")
	}
	s := &Scope{repo: repo}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Load returns the owner's data, or an empty portfolio with the identity's
// settings when nothing has been stored yet. Corrupt stored data is logged
// and treated as absent.
func (s *Scope) Load(ctx context.Context, id *auth.Identity) (*ScopedData, error) {
	if id == nil {
		return nil, auth.SessionExpiredErr
	}

	data, ok, err := s.repo.Read(ctx, id.ID)
	if apperrors.Is(err, apperrors.ErrMalformedStore) {
		log.Warn().Err(err).Str("identity", id.ID).Msg("Discarding malformed user data")
		ok, err = false, nil
	}
	if err != nil {
		return nil, err
	}

	if !ok {
		return &ScopedData{Owner: id.ID, Portfolio: []Holding{}, Settings: fallbackSettings(id.Settings)}, nil
	}
	if data.Portfolio == nil {
		data.Portfolio = []Holding{}
	}
	if data.Settings == (users.Settings{}) {
		data.Settings = fallbackSettings(id.Settings)
	}
	return data, nil
}

// Save applies update to the owner's data and persists the full object
func (s *Scope) Save(ctx context.Context, id *auth.Identity, update Update) (*ScopedData, error) {
	if id == nil {
		return nil, auth.SessionExpiredErr
	}
	if err := update.Settings.Validate(); err != nil {
		return nil, err
	}
	if update.Portfolio != nil {
		if err := validatePortfolio(*update.Portfolio); err != nil {
			return nil, err
		}
	}

	data, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if update.Portfolio != nil {
		data.Portfolio = append([]Holding{}, *update.Portfolio...)
	}
	data.Settings = update.Settings.Apply(data.Settings)

	if err := s.repo.Write(ctx, data); err != nil {
		return nil, err
	}

	if s.mirror != nil {
		if err := s.mirror.MirrorSettings(ctx, id.ID, data.Settings); err != nil {
			log.Err(err).Str("identity", id.ID).Msg("Failed to mirror settings onto the account")
		}
	}
	return data, nil
}

func fallbackSettings(s users.Settings) users.Settings {
	if s == (users.Settings{}) {
		return users.DefaultSettings()
	}
	return s
}

// CredentialMirror mirrors settings onto the local credential record
type CredentialMirror struct {
	Store users.CredentialStore
}

var _ SettingsMirror = CredentialMirror{}

func (m CredentialMirror) MirrorSettings(ctx context.Context, owner string, settings users.Settings) error {
	user, err := m.Store.Lookup(ctx, owner)
	if err != nil {
		return err
	}
	user.Settings = settings
	return m.Store.Update(ctx, user)
}
