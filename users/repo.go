package users

import "context"

// CredentialStore maps identity keys to user records.
//
// Implementations persisting to a shared medium rewrite the whole collection
// on every mutation; two writers racing on the same medium overwrite each
// other and the last write wins.
type CredentialStore interface {
	// Lookup returns the record for identityKey or errors.ErrNotFound
	Lookup(ctx context.Context, identityKey string) (*User, error)

	// Insert adds a new record, failing with errors.ErrAlreadyExists if the key is taken
	Insert(ctx context.Context, user *User) error

	// Update replaces an existing record, failing with errors.ErrNotFound if absent
	Update(ctx context.Context, user *User) error
}
