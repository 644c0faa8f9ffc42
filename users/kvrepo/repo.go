// Package kvrepo persists the credential collection as a single JSON object
// in a kvstore.Store.
package kvrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-portfolio-auth/internal/errors"
	"github.com/jrsteele09/go-portfolio-auth/kvstore"
	"github.com/jrsteele09/go-portfolio-auth/users"
	"github.com/rs/zerolog/log"
)

const (
	// CollectionKey is the fixed key holding the whole credential collection
	CollectionKey = "tradingUsers"

	DemoIdentityKey = "demo"
	DemoSecret      = "demo123"
)

var _ users.CredentialStore = (*Repo)(nil)

// collection maps identity key to user record
type collection map[string]*users.User

// Repo is a CredentialStore over a kvstore.Store. Every mutation reads the
// entire collection, changes one entry and writes the entire collection
// back. The mutex only orders writers inside this process; other processes
// sharing the store can still interleave and lose updates.
type Repo struct {
	store   kvstore.Store
	nowTime func() time.Time
	lock    sync.Mutex
}

type RepoOption func(*Repo)

// WithNowTime sets the clock used for the demo account's creation time
func WithNowTime(nowFunc func() time.Time) RepoOption {
	return func(r *Repo) {
		r.nowTime = nowFunc
	}
}

func New(store kvstore.Store, options ...RepoOption) *Repo {
	r := &Repo{
		store:   store,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Lookup holds the lock too: load can reseed and rewrite the collection.
func (r *Repo) Lookup(ctx context.Context, identityKey string) (*users.User, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	all, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	user, ok := all[identityKey]
	if !ok || user == nil {
		return nil, apperrors.ErrNotFound
	}
	return user.Clone(), nil
}

func (r *Repo) Insert(ctx context.Context, user *users.User) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	all, err := r.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := all[user.IdentityKey]; ok {
		return apperrors.ErrAlreadyExists
	}
	all[user.IdentityKey] = user.Clone()
	return r.save(ctx, all)
}

func (r *Repo) Update(ctx context.Context, user *users.User) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	all, err := r.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := all[user.IdentityKey]; !ok {
		return apperrors.ErrNotFound
	}
	all[user.IdentityKey] = user.Clone()
	return r.save(ctx, all)
}

// load reads the whole collection. A missing collection is seeded with the
// demo account; an unreadable one is discarded and reseeded.
func (r *Repo) load(ctx context.Context) (collection, error) {
	raw, err := r.store.Get(ctx, CollectionKey)
	if apperrors.Is(err, kvstore.ErrNotFound) {
		return r.reset(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("[kvrepo.load] store.Get: %w", err)
	}

	var all collection
	if err := json.Unmarshal(raw, &all); err != nil || all == nil {
		log.Warn().Err(err).Str("key", CollectionKey).Msg("Discarding malformed credential collection")
		return r.reset(ctx)
	}
	return all, nil
}

func (r *Repo) reset(ctx context.Context) (collection, error) {
	all := r.defaultCollection()
	if err := r.save(ctx, all); err != nil {
		return nil, err
	}
	return all, nil
}

func (r *Repo) save(ctx context.Context, all collection) error {
	raw, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("[kvrepo.save] json.Marshal: %w", err)
	}
	if err := r.store.Set(ctx, CollectionKey, raw); err != nil {
		return fmt.Errorf("[kvrepo.save] store.Set: %w", err)
	}
	return nil
}

func (r *Repo) defaultCollection() collection {
	return collection{
		DemoIdentityKey: DemoUser(r.nowTime()),
	}
}

// DemoUser returns the account seeded into an empty or corrupt store
func DemoUser(createdAt time.Time) *users.User {
	return &users.User{
		IdentityKey:      DemoIdentityKey,
		CredentialSecret: users.LegacyHash(DemoSecret),
		Email:            "demo@trading.com",
		DisplayName:      "Usuario Demo",
		CreatedAt:        createdAt.UTC(),
		Settings:         users.DefaultSettings(),
	}
}
