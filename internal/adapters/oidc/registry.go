package oidc

import (
	"context"
	"sort"

	domainauth "github.com/cloudpivot/ssogate/internal/domain/auth"
	apperrors "github.com/cloudpivot/ssogate/internal/errors"
	"github.com/cloudpivot/ssogate/internal/ports"
)

// Registry is the ports.ProviderGateway over the configured providers.
// The provider set is fixed at construction; names outside it fail with an
// UnknownProvider error before any network contact.
type Registry struct {
	providers map[string]gateway
}

// gateway is the per-provider surface the registry needs. The concrete
// *Provider implements it; tests substitute fakes.
type gateway interface {
	BeginLogin(ctx context.Context) (authURL, state, nonce string, err error)
	CompleteLogin(ctx context.Context, code, nonce string) (domainauth.Identity, error)
}

// NewRegistry creates a registry over the given providers.
func NewRegistry(providers ...*Provider) *Registry {
	r := &Registry{providers: make(map[string]gateway, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// register adds a gateway under a name. Used by tests.
func (r *Registry) register(name string, g gateway) {
	r.providers[name] = g
}

// Names returns the sorted allow-list of provider names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Begin implements ports.ProviderGateway.
func (r *Registry) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	p, ok := r.providers[in.Provider]
	if !ok {
		return "", "", "", apperrors.UnknownProvider(in.Provider)
	}
	return p.BeginLogin(ctx)
}

// Exchange implements ports.ProviderGateway. Protocol failures surface as
// ProviderRejected; a response without an email claim as NoUserInfo.
func (r *Registry) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	p, ok := r.providers[in.Provider]
	if !ok {
		return domainauth.Identity{}, apperrors.UnknownProvider(in.Provider)
	}

	identity, err := p.CompleteLogin(ctx, in.Code, in.Nonce)
	if err != nil {
		return domainauth.Identity{}, apperrors.ProviderRejected(err, "identity provider rejected the login")
	}
	if identity.Email == "" {
		return domainauth.Identity{}, apperrors.NoUserInfo(in.Provider)
	}
	return identity, nil
}

var _ ports.ProviderGateway = (*Registry)(nil)
