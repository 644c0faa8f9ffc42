package kvstore_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/go-portfolio-auth/kvstore"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]kvstore.Store {
	t.Helper()

	sqlite, err := kvstore.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]kvstore.Store{
		"memory": kvstore.NewMemory(),
		"sqlite": sqlite,
	}
}

func TestStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(ctx, "missing")
			require.ErrorIs(t, err, kvstore.ErrNotFound)

			require.NoError(t, store.Set(ctx, "tradingUsers", []byte(`{"a":1}`)))
			value, err := store.Get(ctx, "tradingUsers")
			require.NoError(t, err)
			require.JSONEq(t, `{"a":1}`, string(value))

			require.NoError(t, store.Set(ctx, "tradingUsers", []byte(`{"b":2}`)))
			value, err = store.Get(ctx, "tradingUsers")
			require.NoError(t, err)
			require.JSONEq(t, `{"b":2}`, string(value))

			require.NoError(t, store.Delete(ctx, "tradingUsers"))
			_, err = store.Get(ctx, "tradingUsers")
			require.ErrorIs(t, err, kvstore.ErrNotFound)

			// Deleting twice is fine
			require.NoError(t, store.Delete(ctx, "tradingUsers"))
		})
	}
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()

	value := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", value))
	value[0] = 'x'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "abc", string(got))

	got[1] = 'y'
	again, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "abc", string(again))
}
