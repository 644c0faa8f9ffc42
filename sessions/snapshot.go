package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jrsteele09/go-portfolio-auth/auth"
	apperrors "github.com/jrsteele09/go-portfolio-auth/internal/errors"
	"github.com/jrsteele09/go-portfolio-auth/kvstore"
)

// SnapshotKey is where the live session is persisted for Resume
const SnapshotKey = "tradingSession"

// Snapshot is the persisted form of the live session: who, and when the
// session was last touched (epoch milliseconds).
type Snapshot struct {
	Identity  *auth.Identity `json:"user"`
	Timestamp int64          `json:"timestamp"`
}

// Time returns the snapshot timestamp
func (s Snapshot) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// SnapshotStore persists the Snapshot in a kvstore.Store
type SnapshotStore struct {
	kv kvstore.Store
}

func NewSnapshotStore(kv kvstore.Store) *SnapshotStore {
	return &SnapshotStore{kv: kv}
}

// Read returns kvstore.ErrNotFound when no snapshot is stored and
// errors.ErrMalformedStore when it cannot be parsed.
func (s *SnapshotStore) Read(ctx context.Context) (*Snapshot, error) {
	raw, err := s.kv.Get(ctx, SnapshotKey)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrMalformedStore, "[SnapshotStore.Read] %v", err)
	}
	if snap.Identity == nil || snap.Identity.ID == "" {
		return nil, apperrors.Wrapf(apperrors.ErrMalformedStore, "[SnapshotStore.Read] snapshot has no user")
	}
	return &snap, nil
}

func (s *SnapshotStore) Write(ctx context.Context, id *auth.Identity, at time.Time) error {
	raw, err := json.Marshal(Snapshot{Identity: id, Timestamp: at.UnixMilli()})
	if err != nil {
		return fmt.Errorf("[SnapshotStore.Write] marshal: %w", err)
	}
	return s.kv.Set(ctx, SnapshotKey, raw)
}

func (s *SnapshotStore) Clear(ctx context.Context) error {
	return s.kv.Delete(ctx, SnapshotKey)
}
