// Package fakeprovider is an in-memory identity.Provider for tests and local development.
package fakeprovider

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-portfolio-auth/identity"
)

type account struct {
	identity.Account
	secret string
}

// Provider keeps accounts in memory keyed by lower-cased email
type Provider struct {
	mu          sync.Mutex
	initialized bool
	accounts    map[string]*account
	current     *identity.Account
	listeners   identity.Listeners

	// Hook, when set, runs at the start of every call with the operation
	// name ("create", "authenticate", "end", "update"). A non-nil return is
	// reported as the call's error. Tests use it to inject failures or block.
	Hook func(op string) error

	// MinSecretLength mirrors the provider-side weak password rule
	MinSecretLength int
}

var _ identity.Provider = (*Provider)(nil)

// New creates a Provider
func New() *Provider {
	return &Provider{
		accounts:        make(map[string]*account),
		MinSecretLength: 6,
	}
}

func (p *Provider) Init(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initialized = true
	return nil
}

func (p *Provider) CreateAccount(ctx context.Context, email, secret string) (*identity.Account, error) {
	if err := p.before(ctx, "create"); err != nil {
		return nil, err
	}

	p.mu.Lock()
	key := strings.ToLower(email)
	if !strings.Contains(email, "@") {
		p.mu.Unlock()
		return nil, identity.NewError(identity.CodeInvalidEmail, nil)
	}
	if _, ok := p.accounts[key]; ok {
		p.mu.Unlock()
		return nil, identity.NewError(identity.CodeEmailInUse, nil)
	}
	if len(secret) < p.MinSecretLength {
		p.mu.Unlock()
		return nil, identity.NewError(identity.CodeWeakPassword, nil)
	}
	a := &account{
		Account: identity.Account{UID: uuid.NewString(), Email: email},
		secret:  secret,
	}
	p.accounts[key] = a
	signedIn := a.Account
	p.current = &signedIn
	p.mu.Unlock()

	p.listeners.Notify(&signedIn)
	out := signedIn
	return &out, nil
}

func (p *Provider) Authenticate(ctx context.Context, email, secret string) (*identity.Account, error) {
	if err := p.before(ctx, "authenticate"); err != nil {
		return nil, err
	}

	p.mu.Lock()
	a, ok := p.accounts[strings.ToLower(email)]
	if !ok {
		p.mu.Unlock()
		return nil, identity.NewError(identity.CodeUserNotFound, nil)
	}
	if a.secret != secret {
		p.mu.Unlock()
		return nil, identity.NewError(identity.CodeWrongPassword, nil)
	}
	signedIn := a.Account
	p.current = &signedIn
	p.mu.Unlock()

	p.listeners.Notify(&signedIn)
	out := signedIn
	return &out, nil
}

func (p *Provider) EndSession(ctx context.Context) error {
	if err := p.before(ctx, "end"); err != nil {
		return err
	}

	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()

	p.listeners.Notify(nil)
	return nil
}

func (p *Provider) UpdateProfile(ctx context.Context, uid string, fields identity.ProfileFields) error {
	if err := p.before(ctx, "update"); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil || p.current.UID != uid {
		return identity.NewError(identity.CodeRequiresRecentAuth, nil)
	}
	for _, a := range p.accounts {
		if a.UID != uid {
			continue
		}
		if fields.DisplayName != nil {
			a.DisplayName = *fields.DisplayName
			p.current.DisplayName = *fields.DisplayName
		}
		if fields.Secret != nil {
			if len(*fields.Secret) < p.MinSecretLength {
				return identity.NewError(identity.CodeWeakPassword, nil)
			}
			a.secret = *fields.Secret
		}
		return nil
	}
	return identity.NewError(identity.CodeUserNotFound, nil)
}

func (p *Provider) OnStateChange(callback func(*identity.Account)) func() {
	return p.listeners.Add(callback)
}

// SignOutRemotely simulates the provider ending the session on its own
// (revoked token, account disabled) and pushes the nil state.
func (p *Provider) SignOutRemotely() {
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
	p.listeners.Notify(nil)
}

// Current returns the signed-in account, if any
func (p *Provider) Current() *identity.Account {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	c := *p.current
	return &c
}

func (p *Provider) before(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return identity.NewError(identity.CodeTimeout, err)
	}

	p.mu.Lock()
	initialized := p.initialized
	hook := p.Hook
	p.mu.Unlock()

	if !initialized {
		return identity.NewError(identity.CodeNotInitialized, nil)
	}
	if hook != nil {
		return hook(op)
	}
	return nil
}
