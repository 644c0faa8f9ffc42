package userdata_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-portfolio-auth/auth"
	"github.com/jrsteele09/go-portfolio-auth/docstore"
	"github.com/jrsteele09/go-portfolio-auth/internal/utils"
	"github.com/jrsteele09/go-portfolio-auth/kvstore"
	"github.com/jrsteele09/go-portfolio-auth/userdata"
	"github.com/jrsteele09/go-portfolio-auth/users"
	fakeuserrepo "github.com/jrsteele09/go-portfolio-auth/users/repofake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var alice = &auth.Identity{ID: "alice", Email: "alice@x.io", DisplayName: "Alice", Settings: users.DefaultSettings()}

func holding(symbol, qty, price string) userdata.Holding {
	return userdata.Holding{
		Symbol:       symbol,
		Quantity:     decimal.RequireFromString(qty),
		AveragePrice: decimal.RequireFromString(price),
		Currency:     "USD",
		AddedAt:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newKVScope(t *testing.T) (*userdata.Scope, *kvstore.Memory) {
	kv := kvstore.NewMemory()
	scope, err := userdata.NewScope(userdata.NewKVRepo(kv))
	require.NoError(t, err)
	return scope, kv
}

func TestNewScope_RequiresRepo(t *testing.T) {
	_, err := userdata.NewScope(nil)
	require.ErrorContains(t, err, "repo is required")
}

func TestSettingsPatch_MergeOntoDefaults(t *testing.T) {
	merged := userdata.SettingsPatch{Theme: utils.Ptr(users.ThemeLight)}.Apply(users.Settings{Theme: "dark", Currency: "USD", NotificationsEnabled: true})
	require.Equal(t, users.Settings{Theme: "light", Currency: "USD", NotificationsEnabled: true}, merged)

	merged = userdata.SettingsPatch{Currency: utils.Ptr("eur"), NotificationsEnabled: utils.Ptr(false)}.Apply(merged)
	require.Equal(t, users.Settings{Theme: "light", Currency: "EUR", NotificationsEnabled: false}, merged)
}

func TestSettingsPatch_Validate(t *testing.T) {
	tests := []struct {
		name  string
		patch userdata.SettingsPatch
		field string
	}{
		{"empty", userdata.SettingsPatch{}, ""},
		{"known currency", userdata.SettingsPatch{Currency: utils.Ptr("GBP")}, ""},
		{"lower case currency", userdata.SettingsPatch{Currency: utils.Ptr("jpy")}, ""},
		{"unknown currency", userdata.SettingsPatch{Currency: utils.Ptr("XYZ1")}, "currency"},
		{"unknown theme", userdata.SettingsPatch{Theme: utils.Ptr("neon")}, "theme"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.patch.Validate()
			if tc.field == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, &auth.Error{Kind: auth.KindValidationFailed, Field: tc.field})
		})
	}
}

func TestScope_LoadFallsBackToIdentitySettings(t *testing.T) {
	scope, _ := newKVScope(t)

	id := *alice
	id.Settings.Theme = users.ThemeLight
	data, err := scope.Load(context.Background(), &id)
	require.NoError(t, err)
	require.Equal(t, "alice", data.Owner)
	require.Empty(t, data.Portfolio)
	require.NotNil(t, data.Portfolio)
	require.Equal(t, users.ThemeLight, data.Settings.Theme)

	data, err = scope.Load(context.Background(), &auth.Identity{ID: "bob"})
	require.NoError(t, err)
	require.Equal(t, users.DefaultSettings(), data.Settings)
}

func TestScope_RejectsMissingIdentity(t *testing.T) {
	scope, _ := newKVScope(t)

	_, err := scope.Load(context.Background(), nil)
	require.ErrorIs(t, err, auth.SessionExpiredErr)
	_, err = scope.Save(context.Background(), nil, userdata.Update{})
	require.ErrorIs(t, err, auth.SessionExpiredErr)
}

func TestScope_SaveMergesSettingsAndKeepsPortfolio(t *testing.T) {
	ctx := context.Background()
	scope, kv := newKVScope(t)

	portfolio := []userdata.Holding{holding("AAPL", "10", "150.25"), holding("MSFT", "2.5", "300")}
	_, err := scope.Save(ctx, alice, userdata.Update{Portfolio: &portfolio})
	require.NoError(t, err)

	saved, err := scope.Save(ctx, alice, userdata.Update{Settings: userdata.SettingsPatch{Theme: utils.Ptr("light")}})
	require.NoError(t, err)
	require.Equal(t, users.Settings{Theme: "light", Currency: "USD", NotificationsEnabled: true}, saved.Settings)
	require.Len(t, saved.Portfolio, 2)

	loaded, err := scope.Load(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, "AAPL", loaded.Portfolio[0].Symbol)
	require.Equal(t, "MSFT", loaded.Portfolio[1].Symbol)
	require.True(t, decimal.RequireFromString("2.5").Equal(loaded.Portfolio[1].Quantity))
	require.Equal(t, "light", loaded.Settings.Theme)

	_, err = kv.Get(ctx, "tradingPortfolio_alice")
	require.NoError(t, err)

	bob, err := scope.Load(ctx, &auth.Identity{ID: "bob"})
	require.NoError(t, err)
	require.Empty(t, bob.Portfolio)
}

func TestScope_SaveValidation(t *testing.T) {
	scope, kv := newKVScope(t)

	_, err := scope.Save(context.Background(), alice, userdata.Update{Settings: userdata.SettingsPatch{Currency: utils.Ptr("ZZZ")}})
	require.ErrorIs(t, err, &auth.Error{Kind: auth.KindValidationFailed, Field: "currency"})

	bad := []userdata.Holding{holding("", "1", "1")}
	_, err = scope.Save(context.Background(), alice, userdata.Update{Portfolio: &bad})
	require.ErrorIs(t, err, &auth.Error{Kind: auth.KindValidationFailed, Field: "portfolio"})

	bad = []userdata.Holding{holding("AAPL", "-1", "1")}
	_, err = scope.Save(context.Background(), alice, userdata.Update{Portfolio: &bad})
	require.ErrorIs(t, err, &auth.Error{Kind: auth.KindValidationFailed, Field: "portfolio"})

	_, err = kv.Get(context.Background(), "tradingPortfolio_alice")
	require.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestKVRepo_ReadsLegacyArrayAndDiscardsCorruptData(t *testing.T) {
	ctx := context.Background()
	scope, kv := newKVScope(t)

	require.NoError(t, kv.Set(ctx, "tradingPortfolio_alice", []byte(`[{"symbol":"BTC","quantity":0.5,"averagePrice":"42000"}]`)))
	data, err := scope.Load(ctx, alice)
	require.NoError(t, err)
	require.Len(t, data.Portfolio, 1)
	require.Equal(t, "BTC", data.Portfolio[0].Symbol)
	require.True(t, decimal.RequireFromString("0.5").Equal(data.Portfolio[0].Quantity))
	require.Equal(t, users.DefaultSettings(), data.Settings)

	require.NoError(t, kv.Set(ctx, "tradingPortfolio_alice", []byte(`{broken`)))
	data, err = scope.Load(ctx, alice)
	require.NoError(t, err)
	require.Empty(t, data.Portfolio)
}

func TestDocRepo_RoundTrip(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemory()
	scope, err := userdata.NewScope(userdata.NewDocRepo(docs))
	require.NoError(t, err)

	require.NoError(t, docs.WriteDocument(ctx, docstore.CollectionPortfolios, "uid-1", docstore.Document{"owner": "uid-1", "portfolio": []any{}}, true))

	id := &auth.Identity{ID: "uid-1", Settings: users.DefaultSettings()}
	portfolio := []userdata.Holding{holding("ETH", "3", "2000")}
	_, err = scope.Save(ctx, id, userdata.Update{Portfolio: &portfolio, Settings: userdata.SettingsPatch{Currency: utils.Ptr("EUR")}})
	require.NoError(t, err)

	loaded, err := scope.Load(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "ETH", loaded.Portfolio[0].Symbol)
	require.Equal(t, "EUR", loaded.Settings.Currency)

	doc, ok, err := docs.ReadDocument(ctx, docstore.CollectionPortfolios, "uid-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "uid-1", doc["owner"])
}

func TestCredentialMirror(t *testing.T) {
	ctx := context.Background()
	repo := fakeuserrepo.NewFakeUserRepo(&users.User{IdentityKey: "alice", Settings: users.DefaultSettings()})
	scope, err := userdata.NewScope(userdata.NewKVRepo(kvstore.NewMemory()), userdata.WithSettingsMirror(userdata.CredentialMirror{Store: repo}))
	require.NoError(t, err)

	_, err = scope.Save(ctx, alice, userdata.Update{Settings: userdata.SettingsPatch{Theme: utils.Ptr("light")}})
	require.NoError(t, err)

	u, err := repo.Lookup(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "light", u.Settings.Theme)

	// a failing mirror does not fail the save
	_, err = scope.Save(ctx, &auth.Identity{ID: "ghost"}, userdata.Update{Settings: userdata.SettingsPatch{Theme: utils.Ptr("light")}})
	require.NoError(t, err)
}
