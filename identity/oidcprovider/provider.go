// Package oidcprovider implements identity.Provider against an OpenID Connect
// issuer. Sign-in uses the resource owner password grant and the returned
// ID token is verified against the issuer's published keys. Account creation,
// profile updates and token revocation go to REST endpoints configured
// alongside the issuer.
package oidcprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-portfolio-auth/identity"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Config describes the issuer and its companion endpoints
type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	SignupURL    string
	ProfileURL   string
	RevokeURL    string // optional, RFC 7009
	HTTPClient   *http.Client
}

type session struct {
	account identity.Account
	token   *oauth2.Token
}

// Provider is an identity.Provider backed by an OIDC issuer
type Provider struct {
	cfg Config

	mu       sync.Mutex
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
	current  *session

	listeners identity.Listeners
}

var _ identity.Provider = (*Provider)(nil)

// New creates a Provider. Init must be called before use.
func New(cfg Config) (*Provider, error) {
	if cfg.IssuerURL == "" {
		return nil, errors.New("[oidcprovider.New] IssuerURL is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("[oidcprovider.New] ClientID is required")
	}
	if cfg.SignupURL == "" {
		return nil, errors.New("[oidcprovider.New] SignupURL is required")
	}
	if cfg.ProfileURL == "" {
		return nil, errors.New("[oidcprovider.New] ProfileURL is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Provider{cfg: cfg}, nil
}

// Init runs OIDC discovery and builds the token verifier
func (p *Provider) Init(ctx context.Context) error {
	ctx = p.clientContext(ctx)

	provider, err := oidc.NewProvider(ctx, p.cfg.IssuerURL)
	if err != nil {
		return identity.NewError(codeForTransport(err), errors.Wrap(err, "[oidcprovider.Init] discovery"))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.oauth = &oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}
	p.verifier = provider.Verifier(&oidc.Config{ClientID: p.cfg.ClientID})

	log.Info().Str("issuer", p.cfg.IssuerURL).Msg("oidc provider initialised")
	return nil
}

func (p *Provider) CreateAccount(ctx context.Context, email, secret string) (*identity.Account, error) {
	if _, _, err := p.ready(); err != nil {
		return nil, err
	}

	body := map[string]string{"email": email, "password": secret}
	if err := p.postJSON(ctx, p.cfg.HTTPClient, p.cfg.SignupURL, body); err != nil {
		return nil, err
	}

	// A freshly created account is signed in, like hosted identity services do
	return p.Authenticate(ctx, email, secret)
}

func (p *Provider) Authenticate(ctx context.Context, email, secret string) (*identity.Account, error) {
	oauthConfig, verifier, err := p.ready()
	if err != nil {
		return nil, err
	}
	ctx = p.clientContext(ctx)

	token, err := oauthConfig.PasswordCredentialsToken(ctx, email, secret)
	if err != nil {
		return nil, identity.NewError(codeForTokenError(err), errors.Wrap(err, "[oidcprovider.Authenticate] token"))
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, identity.NewError(identity.CodeInternal, errors.New("[oidcprovider.Authenticate] no id_token in token response"))
	}

	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, identity.NewError(identity.CodeInvalidCredential, errors.Wrap(err, "[oidcprovider.Authenticate] verify id_token"))
	}

	var claims struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, identity.NewError(identity.CodeInternal, errors.Wrap(err, "[oidcprovider.Authenticate] claims"))
	}
	if claims.Email == "" {
		claims.Email = email
	}

	account := identity.Account{UID: claims.Sub, Email: claims.Email, DisplayName: claims.Name}

	p.mu.Lock()
	p.current = &session{account: account, token: token}
	p.mu.Unlock()

	p.listeners.Notify(&account)
	return &account, nil
}

// EndSession forgets the signed-in account and revokes its token when a
// revocation endpoint is configured. Revocation failures are logged only.
func (p *Provider) EndSession(ctx context.Context) error {
	p.mu.Lock()
	current := p.current
	p.current = nil
	p.mu.Unlock()

	if current != nil && p.cfg.RevokeURL != "" {
		if err := p.revoke(ctx, current.token); err != nil {
			log.Err(err).Str("uid", current.account.UID).Msg("token revocation failed")
		}
	}

	p.listeners.Notify(nil)
	return nil
}

func (p *Provider) UpdateProfile(ctx context.Context, uid string, fields identity.ProfileFields) error {
	oauthConfig, _, err := p.ready()
	if err != nil {
		return err
	}

	p.mu.Lock()
	current := p.current
	p.mu.Unlock()
	if current == nil || current.account.UID != uid {
		return identity.NewError(identity.CodeRequiresRecentAuth, nil)
	}

	body := map[string]string{"uid": uid}
	if fields.DisplayName != nil {
		body["displayName"] = *fields.DisplayName
	}
	if fields.Secret != nil {
		body["password"] = *fields.Secret
	}

	client := oauthConfig.Client(p.clientContext(ctx), current.token)
	if err := p.postJSON(ctx, client, p.cfg.ProfileURL, body); err != nil {
		return err
	}

	if fields.DisplayName != nil {
		p.mu.Lock()
		if p.current != nil && p.current.account.UID == uid {
			p.current.account.DisplayName = *fields.DisplayName
		}
		p.mu.Unlock()
	}
	return nil
}

func (p *Provider) OnStateChange(callback func(*identity.Account)) func() {
	return p.listeners.Add(callback)
}

func (p *Provider) ready() (*oauth2.Config, *oidc.IDTokenVerifier, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.oauth == nil || p.verifier == nil {
		return nil, nil, identity.NewError(identity.CodeNotInitialized, nil)
	}
	return p.oauth, p.verifier, nil
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	ctx = oidc.ClientContext(ctx, p.cfg.HTTPClient)
	return context.WithValue(ctx, oauth2.HTTPClient, p.cfg.HTTPClient)
}

func (p *Provider) revoke(ctx context.Context, token *oauth2.Token) error {
	value := token.RefreshToken
	hint := "refresh_token"
	if value == "" {
		value = token.AccessToken
		hint = "access_token"
	}

	form := url.Values{"token": {value}, "token_type_hint": {hint}, "client_id": {p.cfg.ClientID}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.RevokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "[oidcprovider.revoke] request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if p.cfg.ClientSecret != "" {
		req.SetBasicAuth(p.cfg.ClientID, p.cfg.ClientSecret)
	}

	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "[oidcprovider.revoke] do")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("[oidcprovider.revoke] unexpected status %d", resp.StatusCode)
	}
	return nil
}

// errorBody is the error envelope returned by the signup and profile endpoints
type errorBody struct {
	Error string `json:"error"`
}

func (p *Provider) postJSON(ctx context.Context, client *http.Client, endpoint string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return identity.NewError(identity.CodeInternal, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return identity.NewError(identity.CodeInternal, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return identity.NewError(codeForTransport(err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var eb errorBody
	_ = json.NewDecoder(resp.Body).Decode(&eb)
	code := eb.Error
	if code == "" {
		code = codeForStatus(resp.StatusCode)
	}
	return identity.NewError(code, errors.Errorf("%s returned %d", endpoint, resp.StatusCode))
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusConflict:
		return identity.CodeEmailInUse
	case http.StatusUnauthorized, http.StatusForbidden:
		return identity.CodeRequiresRecentAuth
	case http.StatusNotFound:
		return identity.CodeUserNotFound
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return identity.CodeTimeout
	default:
		return identity.CodeInternal
	}
}

func codeForTokenError(err error) string {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		switch re.ErrorCode {
		case "invalid_grant":
			return identity.CodeInvalidCredential
		case "":
			if re.Response != nil {
				return codeForStatus(re.Response.StatusCode)
			}
		}
		return "auth/" + strings.ReplaceAll(re.ErrorCode, "_", "-")
	}
	return codeForTransport(err)
}

func codeForTransport(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return identity.CodeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return identity.CodeTimeout
		}
		return identity.CodeNetworkFailed
	}
	return identity.CodeInternal
}
