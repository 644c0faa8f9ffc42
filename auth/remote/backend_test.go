package remote_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-portfolio-auth/auth"
	"github.com/jrsteele09/go-portfolio-auth/auth/remote"
	"github.com/jrsteele09/go-portfolio-auth/docstore"
	"github.com/jrsteele09/go-portfolio-auth/identity"
	"github.com/jrsteele09/go-portfolio-auth/identity/fakeprovider"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	provider *fakeprovider.Provider
	docs     *docstore.Memory
	backend  *remote.Backend
}

func newFixture(t *testing.T, started bool) *fixture {
	f := &fixture{provider: fakeprovider.New(), docs: docstore.NewMemory()}
	b, err := remote.New(f.provider, f.docs, remote.WithNowTime(func() time.Time { return testNow }))
	require.NoError(t, err)
	f.backend = b
	if started {
		require.NoError(t, b.Start(context.Background()))
	}
	return f
}

// flakyDocs records every call and fails writes while failWrites is set
type flakyDocs struct {
	*docstore.Memory

	mu         sync.Mutex
	failWrites bool
	calls      []string
}

func newFlakyDocs() *flakyDocs {
	return &flakyDocs{Memory: docstore.NewMemory()}
}

func (d *flakyDocs) SetFailWrites(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failWrites = fail
}

func (d *flakyDocs) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string{}, d.calls...)
}

func (d *flakyDocs) ReadDocument(ctx context.Context, collection, id string) (docstore.Document, bool, error) {
	d.mu.Lock()
	d.calls = append(d.calls, "read "+collection+"/"+id)
	d.mu.Unlock()
	return d.Memory.ReadDocument(ctx, collection, id)
}

func (d *flakyDocs) WriteDocument(ctx context.Context, collection, id string, doc docstore.Document, merge bool) error {
	d.mu.Lock()
	d.calls = append(d.calls, "write "+collection+"/"+id)
	fail := d.failWrites
	d.mu.Unlock()
	if fail {
		return errors.New("docstore offline")
	}
	return d.Memory.WriteDocument(ctx, collection, id, doc, merge)
}

var alice = auth.Profile{Secret: "secret1", Email: "alice@x.io", DisplayName: "Alice"}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := remote.New(nil, docstore.NewMemory())
	require.ErrorContains(t, err, "identity provider is required")

	_, err = remote.New(fakeprovider.New(), nil)
	require.ErrorContains(t, err, "document store is required")
}

func TestBackend_ReadinessGate(t *testing.T) {
	f := newFixture(t, false)
	require.False(t, f.backend.Ready())

	t.Run("cancelled wait fails with a network failure", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := f.backend.Login(ctx, auth.Credentials{Key: "a@x.io", Secret: "secret1"})
		require.ErrorIs(t, err, auth.NetworkFailureErr)
	})

	t.Run("queued call proceeds once started", func(t *testing.T) {
		result := make(chan error, 1)
		go func() {
			_, err := f.backend.Register(context.Background(), alice)
			result <- err
		}()

		select {
		case err := <-result:
			t.Fatalf("register finished before start: %v", err)
		case <-time.After(20 * time.Millisecond):
		}

		require.NoError(t, f.backend.Start(context.Background()))
		require.NoError(t, <-result)
		require.True(t, f.backend.Ready())
		require.NoError(t, f.backend.Start(context.Background()))
	})
}

func TestBackend_RegisterWritesDocuments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	id, err := f.backend.Register(ctx, alice)
	require.NoError(t, err)
	require.NotEmpty(t, id.ID)
	require.Equal(t, "Alice", id.DisplayName)
	require.Equal(t, "dark", id.Settings.Theme)

	profile, ok, err := f.backend.ProfileDocument(ctx, id.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "alice@x.io", profile.Email)
	require.Equal(t, "Alice", profile.DisplayName)
	require.Equal(t, "USD", profile.Settings.Currency)
	require.Equal(t, testNow, profile.CreatedAt)

	portfolio, ok, err := f.docs.ReadDocument(ctx, docstore.CollectionPortfolios, id.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []any{}, portfolio["portfolio"])
	require.Equal(t, id.ID, portfolio["owner"])
}

func TestBackend_RegisterThenLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	registered, err := f.backend.Register(ctx, alice)
	require.NoError(t, err)
	require.NoError(t, f.backend.Logout(ctx))

	later := testNow.Add(time.Hour)
	b, err := remote.New(f.provider, f.docs, remote.WithNowTime(func() time.Time { return later }))
	require.NoError(t, err)
	require.NoError(t, b.Start(ctx))

	id, err := b.Login(ctx, auth.Credentials{Key: "alice@x.io", Secret: "secret1"})
	require.NoError(t, err)
	require.Equal(t, registered.ID, id.ID)
	require.Equal(t, "Alice", id.DisplayName)
	require.NotNil(t, id.LastLoginAt)
	require.Equal(t, later, *id.LastLoginAt)
	require.Equal(t, testNow, id.CreatedAt)
}

func TestBackend_ErrorMapping(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	_, err := f.backend.Register(ctx, alice)
	require.NoError(t, err)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := f.backend.Register(ctx, alice)
		require.ErrorIs(t, err, auth.AlreadyExistsErr)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := f.backend.Login(ctx, auth.Credentials{Key: "alice@x.io", Secret: "nope!!"})
		require.ErrorIs(t, err, auth.InvalidCredentialsErr)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := f.backend.Login(ctx, auth.Credentials{Key: "bob@x.io", Secret: "secret1"})
		require.ErrorIs(t, err, auth.InvalidCredentialsErr)
	})

	t.Run("local validation runs first", func(t *testing.T) {
		_, err := f.backend.Register(ctx, auth.Profile{Secret: "123", Email: "c@x.io", DisplayName: "C"})
		require.ErrorIs(t, err, &auth.Error{Kind: auth.KindValidationFailed, Field: "secret"})

		_, err = f.backend.Register(ctx, auth.Profile{Secret: "secret1", Email: "no-at-sign", DisplayName: "C"})
		require.ErrorIs(t, err, &auth.Error{Kind: auth.KindValidationFailed, Field: "email"})
	})

	t.Run("provider weak password", func(t *testing.T) {
		f.provider.MinSecretLength = 10
		defer func() { f.provider.MinSecretLength = 6 }()
		_, err := f.backend.Register(ctx, auth.Profile{Secret: "secret1", Email: "d@x.io", DisplayName: "D"})
		require.ErrorIs(t, err, &auth.Error{Kind: auth.KindValidationFailed, Field: "secret"})
	})

	t.Run("network failure", func(t *testing.T) {
		f.provider.Hook = func(string) error { return identity.NewError(identity.CodeNetworkFailed, errors.New("offline")) }
		defer func() { f.provider.Hook = nil }()
		_, err := f.backend.Login(ctx, auth.Credentials{Key: "alice@x.io", Secret: "secret1"})
		require.ErrorIs(t, err, auth.NetworkFailureErr)
	})

	t.Run("unmapped provider code", func(t *testing.T) {
		f.provider.Hook = func(string) error { return identity.NewError("auth/too-many-requests", nil) }
		defer func() { f.provider.Hook = nil }()
		_, err := f.backend.Login(ctx, auth.Credentials{Key: "alice@x.io", Secret: "secret1"})
		require.ErrorIs(t, err, &auth.Error{Kind: auth.KindProviderError, Code: "auth/too-many-requests"})
	})
}

func TestBackend_ChangePassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	id, err := f.backend.Register(ctx, alice)
	require.NoError(t, err)

	t.Run("no identity", func(t *testing.T) {
		require.ErrorIs(t, f.backend.ChangePassword(ctx, nil, "secret1", "newpass1"), auth.SessionExpiredErr)
	})

	t.Run("wrong old secret", func(t *testing.T) {
		err := f.backend.ChangePassword(ctx, id, "wrong1", "newpass1")
		require.ErrorIs(t, err, &auth.Error{Kind: auth.KindInvalidCredentials, Field: "oldSecret"})
	})

	t.Run("short new secret", func(t *testing.T) {
		err := f.backend.ChangePassword(ctx, id, "secret1", "abc")
		require.ErrorIs(t, err, &auth.Error{Kind: auth.KindValidationFailed, Field: "newSecret"})
	})

	t.Run("success", func(t *testing.T) {
		require.NoError(t, f.backend.ChangePassword(ctx, id, "secret1", "newpass1"))

		_, err := f.backend.Login(ctx, auth.Credentials{Key: "alice@x.io", Secret: "secret1"})
		require.ErrorIs(t, err, auth.InvalidCredentialsErr)
		_, err = f.backend.Login(ctx, auth.Credentials{Key: "alice@x.io", Secret: "newpass1"})
		require.NoError(t, err)
	})
}

func TestBackend_ForwardsProviderSignOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	var states []*auth.Identity
	unsubscribe := f.backend.OnStateChange(func(id *auth.Identity) { states = append(states, id) })

	_, err := f.backend.Register(ctx, alice)
	require.NoError(t, err)
	f.provider.SignOutRemotely()

	require.Len(t, states, 2)
	require.Equal(t, "alice@x.io", states[0].Email)
	require.Nil(t, states[1])

	unsubscribe()
	f.provider.SignOutRemotely()
	require.Len(t, states, 2)
}

func TestBackend_SaveProfileDocumentMerges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	id, err := f.backend.Register(ctx, alice)
	require.NoError(t, err)

	profile, _, err := f.backend.ProfileDocument(ctx, id.ID)
	require.NoError(t, err)
	profile.Settings.Theme = "light"
	require.NoError(t, f.backend.SaveProfileDocument(ctx, id.ID, *profile))

	got, _, err := f.backend.ProfileDocument(ctx, id.ID)
	require.NoError(t, err)
	require.Equal(t, "light", got.Settings.Theme)
	require.Equal(t, "Alice", got.DisplayName)
}

func TestMapProviderError(t *testing.T) {
	tests := []struct {
		code string
		want auth.ErrorKind
	}{
		{identity.CodeUserNotFound, auth.KindInvalidCredentials},
		{identity.CodeWrongPassword, auth.KindInvalidCredentials},
		{identity.CodeInvalidCredential, auth.KindInvalidCredentials},
		{identity.CodeEmailInUse, auth.KindAlreadyExists},
		{identity.CodeWeakPassword, auth.KindValidationFailed},
		{identity.CodeInvalidEmail, auth.KindValidationFailed},
		{identity.CodeNetworkFailed, auth.KindNetworkFailure},
		{identity.CodeTimeout, auth.KindNetworkFailure},
		{"auth/operation-not-allowed", auth.KindProviderError},
	}
	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			require.Equal(t, tc.want, auth.KindOf(remote.MapProviderError(identity.NewError(tc.code, nil))))
		})
	}

	require.NoError(t, remote.MapProviderError(nil))
	require.Equal(t, auth.KindNetworkFailure, auth.KindOf(remote.MapProviderError(context.DeadlineExceeded)))
	require.Equal(t, auth.KindProviderError, auth.KindOf(remote.MapProviderError(errors.New("boom"))))
	require.Same(t, auth.SessionExpiredErr, remote.MapProviderError(auth.SessionExpiredErr))
}

func TestBackend_MirrorSettings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	id, err := f.backend.Register(ctx, alice)
	require.NoError(t, err)

	settings := id.Settings
	settings.Currency = "EUR"
	require.NoError(t, f.backend.MirrorSettings(ctx, id.ID, settings))

	again, err := f.backend.Login(ctx, auth.Credentials{Key: "alice@x.io", Secret: "secret1"})
	require.NoError(t, err)
	require.Equal(t, "EUR", again.Settings.Currency)
	require.Equal(t, "dark", again.Settings.Theme)
}

func TestBackend_DocumentsWaitForStart(t *testing.T) {
	ctx := context.Background()
	docs := newFlakyDocs()
	b, err := remote.New(fakeprovider.New(), docs)
	require.NoError(t, err)

	result := make(chan error, 1)
	go func() {
		_, _, err := b.Documents().ReadDocument(ctx, docstore.CollectionPortfolios, "uid-1")
		result <- err
	}()

	select {
	case err := <-result:
		t.Fatalf("read finished before start: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
	require.Empty(t, docs.Calls())

	require.NoError(t, b.Start(ctx))
	require.NoError(t, <-result)
	require.Equal(t, []string{"read portfolios/uid-1"}, docs.Calls())
}

func TestBackend_LogoutBeforeStartReturnsAtOnce(t *testing.T) {
	f := newFixture(t, false)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	require.NoError(t, f.backend.Logout(ctx))
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestBackend_IncompleteRegistration(t *testing.T) {
	ctx := context.Background()
	docs := newFlakyDocs()
	provider := fakeprovider.New()
	b, err := remote.New(provider, docs, remote.WithNowTime(func() time.Time { return testNow }))
	require.NoError(t, err)
	require.NoError(t, b.Start(ctx))

	docs.SetFailWrites(true)
	_, err = b.Register(ctx, alice)
	require.ErrorIs(t, err, auth.NetworkFailureErr)
	require.Nil(t, provider.Current(), "provider must not stay signed in")

	docs.SetFailWrites(false)
	_, err = b.Register(ctx, alice)
	require.ErrorIs(t, err, auth.AlreadyExistsErr)

	t.Run("login writes the missing documents", func(t *testing.T) {
		id, err := b.Login(ctx, auth.Credentials{Key: alice.Email, Secret: alice.Secret})
		require.NoError(t, err)
		require.Equal(t, "Alice", id.DisplayName)

		profile, ok, err := b.ProfileDocument(ctx, id.ID)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, alice.Email, profile.Email)
		require.Equal(t, testNow, profile.CreatedAt)

		portfolio, ok, err := docs.ReadDocument(ctx, docstore.CollectionPortfolios, id.ID)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []any{}, portfolio["portfolio"])
	})
}

func TestBackend_LoginFailureEndsProviderSession(t *testing.T) {
	ctx := context.Background()
	docs := newFlakyDocs()
	provider := fakeprovider.New()
	b, err := remote.New(provider, docs, remote.WithNowTime(func() time.Time { return testNow }))
	require.NoError(t, err)
	require.NoError(t, b.Start(ctx))

	_, err = b.Register(ctx, alice)
	require.NoError(t, err)
	require.NoError(t, b.Logout(ctx))

	docs.SetFailWrites(true)
	_, err = b.Login(ctx, auth.Credentials{Key: alice.Email, Secret: alice.Secret})
	require.ErrorIs(t, err, auth.NetworkFailureErr)
	require.Nil(t, provider.Current())
}
