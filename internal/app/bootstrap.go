// Package app assembles the configured backend, stores and session manager
// shared by the server and the command line client.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jrsteele09/go-portfolio-auth/auth"
	"github.com/jrsteele09/go-portfolio-auth/auth/local"
	"github.com/jrsteele09/go-portfolio-auth/auth/remote"
	"github.com/jrsteele09/go-portfolio-auth/docstore"
	"github.com/jrsteele09/go-portfolio-auth/docstore/s3docs"
	"github.com/jrsteele09/go-portfolio-auth/docstore/sqldocs"
	"github.com/jrsteele09/go-portfolio-auth/identity"
	"github.com/jrsteele09/go-portfolio-auth/identity/oidcprovider"
	"github.com/jrsteele09/go-portfolio-auth/internal/config"
	"github.com/jrsteele09/go-portfolio-auth/kvstore"
	"github.com/jrsteele09/go-portfolio-auth/sessions"
	"github.com/jrsteele09/go-portfolio-auth/userdata"
	"github.com/jrsteele09/go-portfolio-auth/users"
	"github.com/jrsteele09/go-portfolio-auth/users/kvrepo"
	"github.com/rs/zerolog/log"
)

const (
	resumeTimeout = 10 * time.Second
	startRetry    = 5 * time.Second
)

// App is a wired session manager plus the resources it owns
type App struct {
	Manager *sessions.Manager
	Remote  *remote.Backend // nil unless AUTH_BACKEND=remote

	cancel  context.CancelFunc
	closers []func() error
}

type options struct {
	ui          sessions.UI
	kv          kvstore.Store
	credentials users.CredentialStore
	docs        docstore.Store
	provider    identity.Provider
}

// Option overrides a component that would otherwise be built from config
type Option func(*options)

func WithUI(ui sessions.UI) Option {
	return func(o *options) {
		o.ui = ui
	}
}

// WithKVStore replaces the sqlite file named by LOCAL_DB
func WithKVStore(kv kvstore.Store) Option {
	return func(o *options) {
		o.kv = kv
	}
}

// WithCredentialStore replaces the credential collection kept in the kv store
func WithCredentialStore(store users.CredentialStore) Option {
	return func(o *options) {
		o.credentials = store
	}
}

// WithDocstore replaces the document store selected by DOCSTORE
func WithDocstore(docs docstore.Store) Option {
	return func(o *options) {
		o.docs = docs
	}
}

// WithProvider replaces the OIDC identity provider
func WithProvider(provider identity.Provider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// Build wires the backend selected by cfg and resumes any persisted session
func Build(ctx context.Context, cfg config.Config, opts ...Option) (a *App, err error) {
	if cfg == nil {
		return nil, errors.New("[app.Build] config is required")
	}
	o := options{ui: sessions.NopUI{}}
	for _, opt := range opts {
		opt(&o)
	}

	a = &App{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if o.kv == nil {
		kv, err := openLocalDB(ctx, cfg.GetLocalDB())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, kv.Close)
		o.kv = kv
	}

	var (
		backend auth.Backend
		repo    userdata.Repo
		mirror  userdata.SettingsMirror
	)
	switch cfg.GetAuthBackend() {
	case auth.BackendLocal:
		if o.credentials == nil {
			o.credentials = kvrepo.New(o.kv)
		}
		lb, err := local.New(o.credentials, local.WithCredentialFormat(cfg.GetCredentialFormat()))
		if err != nil {
			return nil, fmt.Errorf("[app.Build] %w", err)
		}
		backend, repo, mirror = lb, userdata.NewKVRepo(o.kv), userdata.CredentialMirror{Store: o.credentials}

	case auth.BackendRemote:
		if o.docs == nil {
			o.docs, err = a.openDocstore(ctx, cfg)
			if err != nil {
				return nil, err
			}
		}
		if o.provider == nil {
			o.provider, err = oidcprovider.New(cfg.GetOIDCConfig())
			if err != nil {
				return nil, fmt.Errorf("[app.Build] %w", err)
			}
		}
		rb, err := remote.New(o.provider, o.docs)
		if err != nil {
			return nil, fmt.Errorf("[app.Build] %w", err)
		}
		a.Remote = rb
		backend, repo, mirror = rb, userdata.NewDocRepo(rb.Documents()), rb

	default:
		return nil, fmt.Errorf("[app.Build] unknown auth backend %q", cfg.GetAuthBackend())
	}

	scope, err := userdata.NewScope(repo, userdata.WithSettingsMirror(mirror))
	if err != nil {
		return nil, fmt.Errorf("[app.Build] %w", err)
	}
	a.Manager, err = sessions.NewManager(backend, scope, sessions.NewSnapshotStore(o.kv),
		sessions.WithTimeout(cfg.GetSessionTimeout()),
		sessions.WithUI(o.ui),
	)
	if err != nil {
		return nil, fmt.Errorf("[app.Build] %w", err)
	}

	if a.Remote != nil {
		startCtx, cancel := context.WithCancel(context.Background())
		a.cancel = cancel
		go startRemote(startCtx, a.Remote)
	}

	resumeCtx, cancel := context.WithTimeout(ctx, resumeTimeout)
	defer cancel()
	if a.Manager.Resume(resumeCtx) {
		log.Info().Str("identity", a.Manager.Current().Session.Identity.ID).Msg("Resumed previous session")
	}

	log.Info().
		Str("backend", string(backend.Kind())).
		Dur("timeout", cfg.GetSessionTimeout()).
		Msg("Session manager ready")
	return a, nil
}

// Close stops the manager and releases the stores
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.Manager != nil {
		a.Manager.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// openLocalDB opens the sqlite file holding the local persisted keys
func openLocalDB(ctx context.Context, path string) (*kvstore.SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("[app.openLocalDB] %w", err)
		}
	}
	kv, err := kvstore.OpenSQLite(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("[app.openLocalDB] %w", err)
	}
	return kv, nil
}

// OpenDocstore builds the document store selected by DOCSTORE
func OpenDocstore(ctx context.Context, cfg config.StorageConfig) (docstore.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.GetDocstoreKind() {
	case config.DocstoreMemory:
		return docstore.NewMemory(), noop, nil
	case config.DocstoreSQLite, config.DocstorePostgres:
		dialect := sqldocs.DialectSQLite
		if cfg.GetDocstoreKind() == config.DocstorePostgres {
			dialect = sqldocs.DialectPostgres
		}
		store, err := sqldocs.Open(ctx, dialect, cfg.GetDocstoreDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("[app.OpenDocstore] %w", err)
		}
		return store, store.Close, nil
	case config.DocstoreS3:
		store, err := s3docs.Open(ctx, cfg.GetS3Config())
		if err != nil {
			return nil, nil, fmt.Errorf("[app.OpenDocstore] %w", err)
		}
		return store, noop, nil
	}
	return nil, nil, fmt.Errorf("[app.OpenDocstore] unknown docstore %q", cfg.GetDocstoreKind())
}

func (a *App) openDocstore(ctx context.Context, cfg config.StorageConfig) (docstore.Store, error) {
	docs, closeDocs, err := OpenDocstore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeDocs)
	return docs, nil
}

// startRemote retries provider initialisation until it succeeds. Requests
// made meanwhile wait at the backend's readiness gate.
func startRemote(ctx context.Context, rb *remote.Backend) {
	for {
		err := rb.Start(ctx)
		if err == nil {
			return
		}
		log.Err(err).Dur("retry", startRetry).Msg("Identity provider unavailable")
		select {
		case <-ctx.Done():
			return
		case <-time.After(startRetry):
		}
	}
}
