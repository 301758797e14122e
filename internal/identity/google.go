package identity

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const (
	googleIssuerURL = "https://accounts.google.com"
	googleRevokeURL = "https://oauth2.googleapis.com/revoke"
)

// ProviderSession is the outcome of a completed authorization-code exchange.
type ProviderSession struct {
	Identity    ExternalIdentity
	AccessToken string
}

// Provider abstracts the external OAuth identity provider.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*ProviderSession, error)
	VerifyIDToken(ctx context.Context, rawIDToken string) (*ExternalIdentity, error)
	Revoke(ctx context.Context, accessToken string) error
}

// GoogleProvider implements Provider against Google's OIDC endpoints.
type GoogleProvider struct {
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
	httpClient   *http.Client
}

// NewGoogleProvider discovers Google's OIDC configuration and builds the
// verifier and OAuth2 code-flow configuration.
func NewGoogleProvider(ctx context.Context, clientID, clientSecret, redirectURL string) (*GoogleProvider, error) {
	provider, err := oidc.NewProvider(ctx, googleIssuerURL)
	if err != nil {
		return nil, fmt.Errorf("identity: discover google oidc: %w", err)
	}

	return &GoogleProvider{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
		oauth2Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  redirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		httpClient: http.DefaultClient,
	}, nil
}

// Name returns the provider name recorded on external logins.
func (p *GoogleProvider) Name() string { return "Google" }

// AuthCodeURL builds the consent-screen redirect URL for the given state.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauth2Config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for tokens and verifies the embedded
// ID token before trusting any of its claims.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*ProviderSession, error) {
	oauth2Token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("identity: exchange code: %w", err)
	}
	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("identity: missing id_token in token response")
	}
	ext, err := p.VerifyIDToken(ctx, rawIDToken)
	if err != nil {
		return nil, err
	}
	return &ProviderSession{Identity: *ext, AccessToken: oauth2Token.AccessToken}, nil
}

// VerifyIDToken checks the assertion's authenticity with Google and maps its
// claims to an ExternalIdentity.
func (p *GoogleProvider) VerifyIDToken(ctx context.Context, rawIDToken string) (*ExternalIdentity, error) {
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("identity: verify id token: %w", err)
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("identity: parse id token claims: %w", err)
	}
	if strings.TrimSpace(claims.Name) == "" {
		claims.Name = claims.Email
	}

	return &ExternalIdentity{
		Email:       claims.Email,
		DisplayName: claims.Name,
		Provider:    p.Name(),
		ProviderKey: idToken.Subject,
	}, nil
}

// Revoke invalidates the provider access token. Callers treat failures as
// non-fatal; local sign-out proceeds regardless.
func (p *GoogleProvider) Revoke(ctx context.Context, accessToken string) error {
	form := url.Values{"token": {accessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, googleRevokeURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("identity: build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity: revoke token: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("identity: revoke token: status %d", res.StatusCode)
	}
	return nil
}

var _ Provider = (*GoogleProvider)(nil)
