package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters and internal/data; orchestration
// in internal/service.

import (
	"context"
	"time"

	domainauth "github.com/cloudpivot/ssogate/internal/domain/auth"
	"github.com/cloudpivot/ssogate/internal/domain/model"
)

// BeginInput carries inputs for initiating an auth flow.
type BeginInput struct {
	Provider string
}

// ExchangeInput groups parameters for the code/token exchange on callback.
type ExchangeInput struct {
	Provider string
	Code     string
	State    string
	Nonce    string
}

// ProviderGateway initiates and completes authentication flows against the
// configured identity providers. Implementations must reject provider names
// outside the allow-list without contacting any provider.
type ProviderGateway interface {
	// Begin starts the login flow and returns the provider auth URL, an opaque state, and a nonce.
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)

	// Exchange completes the login flow, verifying state and nonce, and returns the asserted identity.
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.Identity, error)
}

// UpsertUserInput carries provider-asserted identity attributes for user reconciliation.
type UpsertUserInput struct {
	Email    string
	Name     string
	Provider string
	Claims   domainauth.Claims
}

// UserStore persists and resolves local user records.
type UserStore interface {
	// Upsert creates the user on first login for an email, otherwise updates
	// name, provider, and claims on the existing row. It must be atomic with
	// respect to concurrent callbacks for the same email.
	Upsert(ctx context.Context, in UpsertUserInput) (*model.User, error)

	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// CreateTokenInput carries attributes of a newly issued credential record.
type CreateTokenInput struct {
	UserID      string
	AccessToken string
	ExpiresAt   time.Time
}

// TokenStore persists credential records for revocation at logout.
type TokenStore interface {
	Create(ctx context.Context, in CreateTokenInput) (*model.Token, error)
	GetByValue(ctx context.Context, value string) (*model.Token, error)
	DeleteByValue(ctx context.Context, value string) error
}

// TokenCache is an optional fast path for the per-request revocation check.
// Entries mirror credential records: marked at login, invalidated at logout.
// A cache miss is not authoritative; callers fall back to the TokenStore.
type TokenCache interface {
	MarkValid(ctx context.Context, value string, ttl time.Duration) error
	Invalidate(ctx context.Context, value string) error
	// IsValid returns (true, nil) on a cache hit. (false, nil) means unknown.
	IsValid(ctx context.Context, value string) (bool, error)
}
