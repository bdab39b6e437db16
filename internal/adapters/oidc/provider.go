package oidc

// Package oidc adapts the configured OpenID Connect providers to the
// ports.ProviderGateway interface. The protocol exchange itself (discovery,
// code exchange, JWKS validation) is delegated to coreos/go-oidc.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/oauth2"

	domainauth "github.com/cloudpivot/ssogate/internal/domain/auth"
)

// Provider wraps a single OIDC identity provider.
type Provider struct {
	name       string
	config     *oauth2.Config
	httpClient *http.Client

	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier

	// Optional JMESPath expressions for providers that carry email or
	// display name in non-standard claims.
	emailExpr string
	nameExpr  string
}

// ProviderConfig holds configuration for one OIDC provider.
type ProviderConfig struct {
	Name         string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	DiscoveryURL string
	EmailClaim   string // JMESPath over the raw claims, tried after "email"
	NameClaim    string // JMESPath over the raw claims, tried after "name"
	HTTPClient   *http.Client // Optional, defaults to a 30s-timeout client
}

// NewProvider creates a provider, performing the discovery fetch once.
func NewProvider(ctx context.Context, cfg ProviderConfig) (*Provider, error) {
	if cfg.Name == "" {
		return nil, errors.New("provider name is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if cfg.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}
	if cfg.EmailClaim != "" {
		if _, err := jmespath.Compile(cfg.EmailClaim); err != nil {
			return nil, fmt.Errorf("compile email claim expression: %w", err)
		}
	}
	if cfg.NameClaim != "" {
		if _, err := jmespath.Compile(cfg.NameClaim); err != nil {
			return nil, fmt.Errorf("compile name claim expression: %w", err)
		}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	p := &Provider{
		name:       cfg.Name,
		httpClient: httpClient,
		emailExpr:  cfg.EmailClaim,
		nameExpr:   cfg.NameClaim,
	}

	// Initialize go-oidc provider and verifier (single discovery fetch)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	issuer := strings.TrimSuffix(cfg.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery for %s: %w", cfg.Name, err)
	}
	p.oidcProvider = op
	p.verifier = op.Verifier(&gooidc.Config{ClientID: cfg.ClientID})

	scope := cfg.Scope
	if scope == "" {
		scope = "openid email profile"
	}
	p.config = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       strings.Fields(scope),
		Endpoint:     op.Endpoint(),
	}

	return p, nil
}

// Name returns the allow-list name of this provider.
func (p *Provider) Name() string { return p.name }

// BeginLogin generates state and nonce and builds the provider auth URL.
func (p *Provider) BeginLogin(_ context.Context) (authURL, state, nonce string, err error) {
	state, err = generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err = generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	authURL = p.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("response_type", "code"),
	)
	return authURL, state, nonce, nil
}

// CompleteLogin exchanges the authorization code, verifies the ID token, and
// returns the asserted identity with its raw claim set.
func (p *Provider) CompleteLogin(ctx context.Context, code, nonce string) (domainauth.Identity, error) {
	if code == "" {
		return domainauth.Identity{}, errors.New("authorization code is required")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("exchange code for token: %w", err)
	}

	claims, err := p.verifyIDToken(ctx, tok, nonce)
	if err != nil {
		return domainauth.Identity{}, err
	}

	// Fill gaps from the userinfo endpoint when the ID token is sparse.
	if p.email(claims) == "" {
		if uiErr := p.mergeUserInfo(ctx, tok.AccessToken, claims); uiErr != nil {
			return domainauth.Identity{}, fmt.Errorf("get user info: %w", uiErr)
		}
	}

	email := p.email(claims)
	name := p.displayName(claims)
	if name == "" {
		name = email
	}

	return domainauth.Identity{
		Email:    email,
		Name:     name,
		Provider: p.name,
		Claims:   claims,
	}, nil
}

// verifyIDToken validates the id_token signature and nonce and decodes the
// full claim set verbatim.
func (p *Provider) verifyIDToken(ctx context.Context, tok *oauth2.Token, expectedNonce string) (domainauth.Claims, error) {
	rawID, ok := tok.Extra("id_token").(string)
	if !ok || rawID == "" {
		return nil, errors.New("missing id_token in token response")
	}

	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return nil, fmt.Errorf("verify id_token: %w", err)
	}
	if expectedNonce != "" && idTok.Nonce != expectedNonce {
		return nil, errors.New("invalid nonce")
	}

	var claims domainauth.Claims
	if claimsErr := idTok.Claims(&claims); claimsErr != nil {
		return nil, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	return claims, nil
}

// mergeUserInfo fetches the userinfo document and adds any claims the ID
// token did not carry. ID token claims win on conflict.
func (p *Provider) mergeUserInfo(ctx context.Context, accessToken string, claims domainauth.Claims) error {
	ui, err := p.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	if err != nil {
		return fmt.Errorf("fetch user info: %w", err)
	}
	var uiClaims domainauth.Claims
	if claimsErr := ui.Claims(&uiClaims); claimsErr != nil {
		return fmt.Errorf("decode user info: %w", claimsErr)
	}
	for k, v := range uiClaims {
		if _, exists := claims[k]; !exists {
			claims[k] = v
		}
	}
	return nil
}

// email resolves the email claim, consulting the configured JMESPath
// expression when the standard claim is absent.
func (p *Provider) email(claims domainauth.Claims) string {
	if v := claims.String("email"); v != "" {
		return v
	}
	return searchString(p.emailExpr, claims)
}

// displayName resolves the display name claim the same way.
func (p *Provider) displayName(claims domainauth.Claims) string {
	if v := claims.String("name"); v != "" {
		return v
	}
	return searchString(p.nameExpr, claims)
}

// searchString evaluates a JMESPath expression against the claim set and
// returns the result when it is a non-empty string.
func searchString(expr string, claims domainauth.Claims) string {
	if expr == "" {
		return ""
	}
	res, err := jmespath.Search(expr, map[string]any(claims))
	if err != nil {
		return ""
	}
	if s, ok := res.(string); ok {
		return s
	}
	return ""
}

// generateRandomString generates a cryptographically secure URL-safe random
// string of exact length.
func generateRandomString(length int) (string, error) {
	nBytes := (length*3 + 3) / 4
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) < length {
		return "", fmt.Errorf("short random string: %d < %d", len(s), length)
	}
	return s[:length], nil
}
