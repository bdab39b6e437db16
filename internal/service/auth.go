package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudpivot/ssogate/internal/domain/model"
	apperrors "github.com/cloudpivot/ssogate/internal/errors"
	"github.com/cloudpivot/ssogate/internal/ports"
	"github.com/cloudpivot/ssogate/internal/token"
)

// bearerPrefix is the transport prefix optionally carried by the cookie value.
const bearerPrefix = "Bearer "

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Gateway ports.ProviderGateway
	Users   ports.UserStore
	Tokens  ports.TokenStore
	Codec   *token.Codec
	// Cache is optional; when nil every revocation check hits the token store.
	Cache  ports.TokenCache
	Logger *slog.Logger
}

// AuthService orchestrates the authentication session lifecycle: provider
// redirect, callback reconciliation, credential issuance, per-request
// authentication, and revocation at logout.
type AuthService struct {
	gateway ports.ProviderGateway
	users   ports.UserStore
	tokens  ports.TokenStore
	codec   *token.Codec
	cache   ports.TokenCache
	logger  *slog.Logger
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		gateway: opts.Gateway,
		users:   opts.Users,
		tokens:  opts.Tokens,
		codec:   opts.Codec,
		cache:   opts.Cache,
		logger:  logger,
	}
}

// CredentialTTL returns the lifetime of issued credentials, for the cookie
// max-age.
func (s *AuthService) CredentialTTL() time.Duration {
	return s.codec.TTL()
}

// BeginLoginResult contains the result of beginning a login flow.
type BeginLoginResult struct {
	AuthURL string
	State   string
	Nonce   string
}

// BeginLogin validates the provider name against the allow-list and returns
// the provider redirect with state and nonce. Unknown providers fail without
// contacting anything.
func (s *AuthService) BeginLogin(ctx context.Context, in ports.BeginInput) (*BeginLoginResult, error) {
	if in.Provider == "" {
		return nil, apperrors.UnknownProvider(in.Provider)
	}

	authURL, state, nonce, err := s.gateway.Begin(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("begin auth flow: %w", err)
	}
	return &BeginLoginResult{AuthURL: authURL, State: state, Nonce: nonce}, nil
}

// CompleteLoginInput groups parameters for completing a login flow.
type CompleteLoginInput struct {
	Provider string
	Code     string
	State    string
	Nonce    string
}

// IssuedCredential is the outcome of a successful login: the encoded bearer
// credential for the transport layer plus the reconciled user.
type IssuedCredential struct {
	Value     string
	ExpiresAt time.Time
	User      *model.User
}

// CompleteLogin exchanges the callback for provider-asserted claims,
// reconciles the local user record, and issues exactly one new credential.
// All failures are fully non-persisting except the user upsert, which is
// deliberately committed before credential issuance so an aborted request
// can never leave a credential without its user.
func (s *AuthService) CompleteLogin(ctx context.Context, in CompleteLoginInput) (*IssuedCredential, error) {
	if in.Code == "" {
		return nil, apperrors.Validation("authorization code is required")
	}

	identity, err := s.gateway.Exchange(ctx, ports.ExchangeInput{
		Provider: in.Provider,
		Code:     in.Code,
		State:    in.State,
		Nonce:    in.Nonce,
	})
	if err != nil {
		return nil, err
	}

	user, err := s.users.Upsert(ctx, ports.UpsertUserInput{
		Email:    identity.Email,
		Name:     identity.Name,
		Provider: identity.Provider,
		Claims:   identity.Claims,
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile user: %w", err)
	}

	value, expiresAt, err := s.codec.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue credential: %w", err)
	}

	// Persisting the record is the final step; nothing before it needs undoing
	// if the request is aborted here.
	if _, err := s.tokens.Create(ctx, ports.CreateTokenInput{
		UserID:      user.ID,
		AccessToken: value,
		ExpiresAt:   expiresAt,
	}); err != nil {
		return nil, fmt.Errorf("persist credential record: %w", err)
	}

	s.cacheMarkValid(ctx, value, time.Until(expiresAt))

	s.logger.InfoContext(ctx, "login completed",
		"provider", identity.Provider, "user_id", user.ID)

	return &IssuedCredential{Value: value, ExpiresAt: expiresAt, User: user}, nil
}

// TryAuthenticate resolves the user for the presented credential, or nil when
// no credential is presented or the credential is invalid, expired, revoked,
// or orphaned. It never fails for a bad credential; only infrastructure
// errors surface.
func (s *AuthService) TryAuthenticate(ctx context.Context, credential string) (*model.User, error) {
	user, err := s.authenticate(ctx, credential)
	if err != nil {
		if apperrors.IsUnauthenticated(err) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// RequireAuthenticate resolves the user for the presented credential and
// fails with an Unauthenticated error when it cannot. Credential decode
// failures are authentication failures, not server errors.
func (s *AuthService) RequireAuthenticate(ctx context.Context, credential string) (*model.User, error) {
	return s.authenticate(ctx, credential)
}

// authenticate is the shared per-request resolution: decode, revocation
// check, user lookup. Every credential-level failure maps to Unauthenticated.
func (s *AuthService) authenticate(ctx context.Context, credential string) (*model.User, error) {
	value := StripBearer(credential)
	if value == "" {
		return nil, apperrors.Unauthenticated("no credential presented")
	}

	subjectID, err := s.codec.Verify(value)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrExpired):
			return nil, apperrors.Unauthenticated("credential expired")
		case errors.Is(err, token.ErrBadSignature):
			return nil, apperrors.Unauthenticated("credential signature invalid")
		default:
			return nil, apperrors.Unauthenticated("credential malformed")
		}
	}

	revoked, err := s.credentialRevoked(ctx, value)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, apperrors.Unauthenticated("credential revoked")
	}

	user, err := s.users.GetByID(ctx, subjectID)
	if err != nil {
		// A user deleted after issuance is indistinguishable from a bad token.
		if apperrors.IsNotFound(err) {
			return nil, apperrors.Unauthenticated("credential subject unknown")
		}
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	return user, nil
}

// credentialRevoked cross-checks the persisted credential record so logout
// revokes a credential before its natural expiry. The encoded token stays
// cryptographically valid; presence of the record is what keeps it live.
func (s *AuthService) credentialRevoked(ctx context.Context, value string) (bool, error) {
	if s.cache != nil {
		ok, err := s.cache.IsValid(ctx, value)
		if err != nil {
			s.logger.WarnContext(ctx, "token cache lookup failed", "error", err)
		} else if ok {
			return false, nil
		}
	}

	record, err := s.tokens.GetByValue(ctx, value)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return true, nil
		}
		return false, fmt.Errorf("lookup credential record: %w", err)
	}
	if record.Expired(time.Now()) {
		return true, nil
	}

	// Only the login path marks the cache. Re-marking here could race Logout:
	// a store read that started before the delete would resurrect the cache
	// entry after Invalidate, keeping a revoked credential live until expiry.
	return false, nil
}

// Logout revokes the presented credential. Absent credentials and unknown
// values are no-ops; logout always succeeds from the caller's perspective
// unless the store itself fails.
func (s *AuthService) Logout(ctx context.Context, credential string) error {
	value := StripBearer(credential)
	if value == "" {
		return nil
	}

	if err := s.tokens.DeleteByValue(ctx, value); err != nil {
		return fmt.Errorf("delete credential record: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, value); err != nil {
			s.logger.WarnContext(ctx, "token cache invalidate failed", "error", err)
		}
	}
	return nil
}

// cacheMarkValid records the credential in the cache, best effort.
func (s *AuthService) cacheMarkValid(ctx context.Context, value string, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	if err := s.cache.MarkValid(ctx, value, ttl); err != nil {
		s.logger.WarnContext(ctx, "token cache mark failed", "error", err)
	}
}

// StripBearer removes the optional transport prefix from a credential value.
func StripBearer(credential string) string {
	return strings.TrimPrefix(credential, bearerPrefix)
}
