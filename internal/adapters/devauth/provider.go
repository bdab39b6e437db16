package devauth

// Package devauth provides a local, network-free ProviderGateway for
// development and testing (AUTH_MODE=mock). Every exchange asserts the
// configured identity regardless of code or state.

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	domainauth "github.com/cloudpivot/ssogate/internal/domain/auth"
	"github.com/cloudpivot/ssogate/internal/ports"
)

// ProviderName is the allow-list name the mock provider answers to.
const ProviderName = "dev"

// Config holds the identity the mock provider asserts and where its
// callback-shaped redirect points.
type Config struct {
	Email       string
	Name        string
	CallbackURL string
}

// Provider implements ports.ProviderGateway without any IdP.
type Provider struct {
	email       string
	name        string
	callbackURL string
	seq         atomic.Int64
}

// NewProvider creates a mock provider.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Email == "" {
		return nil, errors.New("dev auth email is required")
	}
	name := cfg.Name
	if name == "" {
		name = cfg.Email
	}
	callbackURL := cfg.CallbackURL
	if callbackURL == "" {
		callbackURL = "/auth/" + ProviderName + "/callback"
	}
	return &Provider{email: cfg.Email, name: name, callbackURL: callbackURL}, nil
}

// Begin returns a callback-shaped URL so the browser loops straight back to
// the application.
func (p *Provider) Begin(_ context.Context, _ ports.BeginInput) (string, string, string, error) {
	n := p.seq.Add(1)
	state := fmt.Sprintf("dev-state-%d", n)
	nonce := fmt.Sprintf("dev-nonce-%d", n)
	authURL := fmt.Sprintf("%s?code=dev-code-%d&state=%s", p.callbackURL, n, state)
	return authURL, state, nonce, nil
}

// Exchange asserts the configured identity.
func (p *Provider) Exchange(_ context.Context, _ ports.ExchangeInput) (domainauth.Identity, error) {
	return domainauth.Identity{
		Email:    p.email,
		Name:     p.name,
		Provider: ProviderName,
		Claims: domainauth.Claims{
			"email": p.email,
			"name":  p.name,
			"sub":   "dev-" + p.email,
		},
	}, nil
}

var _ ports.ProviderGateway = (*Provider)(nil)
