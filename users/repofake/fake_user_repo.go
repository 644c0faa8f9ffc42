package fakeuserrepo

import (
	"context"
	"sync"

	apperrors "github.com/jrsteele09/go-portfolio-auth/internal/errors"
	"github.com/jrsteele09/go-portfolio-auth/users"
)

var _ users.CredentialStore = (*FakeUserRepo)(nil)

// FakeUserRepo is an in-memory CredentialStore. Records are copied on the
// way in and out so callers never share state with the store.
type FakeUserRepo struct {
	users map[string]*users.User
	lock  sync.RWMutex

	// Writes counts successful Insert/Update calls
	Writes int
}

func NewFakeUserRepo(seed ...*users.User) *FakeUserRepo {
	ur := &FakeUserRepo{
		users: make(map[string]*users.User),
	}
	for _, u := range seed {
		ur.users[u.IdentityKey] = u.Clone()
	}
	return ur
}

func (ur *FakeUserRepo) Lookup(_ context.Context, identityKey string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[identityKey]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return user.Clone(), nil
}

func (ur *FakeUserRepo) Insert(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, ok := ur.users[user.IdentityKey]; ok {
		return apperrors.ErrAlreadyExists
	}
	ur.users[user.IdentityKey] = user.Clone()
	ur.Writes++
	return nil
}

func (ur *FakeUserRepo) Update(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, ok := ur.users[user.IdentityKey]; !ok {
		return apperrors.ErrNotFound
	}
	ur.users[user.IdentityKey] = user.Clone()
	ur.Writes++
	return nil
}
