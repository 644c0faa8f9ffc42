package sessions_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-portfolio-auth/auth"
	apperrors "github.com/jrsteele09/go-portfolio-auth/internal/errors"
	"github.com/jrsteele09/go-portfolio-auth/kvstore"
	"github.com/jrsteele09/go-portfolio-auth/sessions"
	"github.com/stretchr/testify/require"
)

func TestSnapshotStore(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory()
	store := sessions.NewSnapshotStore(kv)

	_, err := store.Read(ctx)
	require.ErrorIs(t, err, kvstore.ErrNotFound)

	at := time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Write(ctx, &auth.Identity{ID: "demo", DisplayName: "Usuario Demo"}, at))

	raw, err := kv.Get(ctx, sessions.SnapshotKey)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"timestamp":1716195600000`)

	snap, err := store.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, "demo", snap.Identity.ID)
	require.True(t, at.Equal(snap.Time()))

	require.NoError(t, store.Clear(ctx))
	_, err = store.Read(ctx)
	require.ErrorIs(t, err, kvstore.ErrNotFound)

	for _, bad := range []string{`{oops`, `{"timestamp":1}`, `{"user":{"id":""},"timestamp":1}`} {
		require.NoError(t, kv.Set(ctx, sessions.SnapshotKey, []byte(bad)))
		_, err = store.Read(ctx)
		require.ErrorIs(t, err, apperrors.ErrMalformedStore, bad)
	}
}
