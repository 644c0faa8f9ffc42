// Package identity defines the remote identity provider consumed by the
// remote AuthBackend.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Provider error codes. They follow the codes hosted identity services
// report so provider implementations can pass them through unchanged.
const (
	CodeUserNotFound       = "auth/user-not-found"
	CodeWrongPassword      = "auth/wrong-password"
	CodeInvalidCredential  = "auth/invalid-credential"
	CodeEmailInUse         = "auth/email-already-in-use"
	CodeWeakPassword       = "auth/weak-password"
	CodeInvalidEmail       = "auth/invalid-email"
	CodeNetworkFailed      = "auth/network-request-failed"
	CodeTimeout            = "auth/timeout"
	CodeNotInitialized     = "auth/app-not-initialized"
	CodeRequiresRecentAuth = "auth/requires-recent-login"
	CodeInternal           = "auth/internal-error"
)

// Account is the provider's view of an authenticated user
type Account struct {
	UID         string
	Email       string
	DisplayName string
}

// ProfileFields are the mutable profile attributes. Nil fields are left unchanged.
type ProfileFields struct {
	DisplayName *string
	Secret      *string
}

// Provider is an external identity service keyed by email + secret.
// Implementations push sign-in/sign-out transitions to OnStateChange
// subscribers in addition to returning results from direct calls.
type Provider interface {
	// Init prepares the provider client (discovery, connections). Must be
	// called before any other method.
	Init(ctx context.Context) error

	CreateAccount(ctx context.Context, email, secret string) (*Account, error)
	Authenticate(ctx context.Context, email, secret string) (*Account, error)
	EndSession(ctx context.Context) error
	UpdateProfile(ctx context.Context, uid string, fields ProfileFields) error

	// OnStateChange registers callback; it receives nil on sign-out
	OnStateChange(callback func(*Account)) (unsubscribe func())
}

// ProviderError is a failure reported by a Provider
type ProviderError struct {
	Code string
	Err  error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewError creates a ProviderError
func NewError(code string, err error) *ProviderError {
	return &ProviderError{Code: code, Err: err}
}

// CodeOf extracts the provider code from err, or "" if err is not a ProviderError
func CodeOf(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// Listeners is a set of OnStateChange callbacks
type Listeners struct {
	mu        sync.Mutex
	nextID    int
	callbacks map[int]func(*Account)
}

// Add registers callback and returns a function removing it
func (l *Listeners) Add(callback func(*Account)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.callbacks == nil {
		l.callbacks = make(map[int]func(*Account))
	}
	id := l.nextID
	l.nextID++
	l.callbacks[id] = callback

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.callbacks, id)
	}
}

// Notify calls every registered callback with account. Callbacks run
// outside the lock so they may unsubscribe.
func (l *Listeners) Notify(account *Account) {
	l.mu.Lock()
	callbacks := make([]func(*Account), 0, len(l.callbacks))
	for _, cb := range l.callbacks {
		callbacks = append(callbacks, cb)
	}
	l.mu.Unlock()

	for _, cb := range callbacks {
		var a *Account
		if account != nil {
			c := *account
			a = &c
		}
		cb(a)
	}
}
