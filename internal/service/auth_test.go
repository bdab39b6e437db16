package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/cloudpivot/ssogate/internal/domain/auth"
	"github.com/cloudpivot/ssogate/internal/domain/model"
	apperrors "github.com/cloudpivot/ssogate/internal/errors"
	mockauth "github.com/cloudpivot/ssogate/internal/mocks/auth"
	"github.com/cloudpivot/ssogate/internal/ports"
	"github.com/cloudpivot/ssogate/internal/token"
)

type fixture struct {
	svc     *AuthService
	gateway *mockauth.MockProviderGateway
	users   *mockauth.MemoryUserStore
	tokens  *mockauth.MemoryTokenStore
	cache   *mockauth.MemoryTokenCache
	codec   *token.Codec
}

func newFixture(t *testing.T, opts ...func(*AuthServiceOptions)) *fixture {
	t.Helper()

	codec, err := token.NewCodec(token.CodecConfig{
		SigningSecret: "test-signing-secret",
		TTL:           30 * time.Minute,
	})
	require.NoError(t, err)

	f := &fixture{
		gateway: &mockauth.MockProviderGateway{},
		users:   mockauth.NewMemoryUserStore(),
		tokens:  mockauth.NewMemoryTokenStore(),
		cache:   mockauth.NewMemoryTokenCache(),
		codec:   codec,
	}
	serviceOpts := AuthServiceOptions{
		Gateway: f.gateway,
		Users:   f.users,
		Tokens:  f.tokens,
		Cache:   f.cache,
		Codec:   codec,
	}
	for _, opt := range opts {
		opt(&serviceOpts)
	}
	f.svc = NewAuthService(serviceOpts)
	return f
}

func login(t *testing.T, f *fixture) *IssuedCredential {
	t.Helper()
	cred, err := f.svc.CompleteLogin(context.Background(), CompleteLoginInput{
		Provider: "google",
		Code:     "auth-code",
		State:    "state",
		Nonce:    "nonce",
	})
	require.NoError(t, err)
	return cred
}

func TestBeginLoginReturnsProviderRedirect(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.BeginLogin(context.Background(), ports.BeginInput{Provider: "google"})
	require.NoError(t, err)
	assert.Contains(t, result.AuthURL, "https://")
	assert.NotEmpty(t, result.State)
	assert.NotEmpty(t, result.Nonce)
	require.Len(t, f.gateway.BeginCalls, 1)
	assert.Equal(t, "google", f.gateway.BeginCalls[0].Provider)
}

func TestBeginLoginEmptyProvider(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.BeginLogin(context.Background(), ports.BeginInput{})
	assert.True(t, apperrors.IsUnknownProvider(err))
	assert.Empty(t, f.gateway.BeginCalls)
}

func TestCompleteLoginIssuesCredential(t *testing.T) {
	f := newFixture(t)

	cred := login(t, f)
	assert.NotEmpty(t, cred.Value)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), cred.ExpiresAt, 5*time.Second)
	assert.Equal(t, "user@example.com", cred.User.Email)

	assert.Equal(t, 1, f.users.Count())
	assert.Equal(t, 1, f.tokens.Count())

	record, err := f.tokens.GetByValue(context.Background(), cred.Value)
	require.NoError(t, err)
	assert.Equal(t, cred.User.ID, record.UserID)
}

func TestCompleteLoginRequiresCode(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CompleteLogin(context.Background(), CompleteLoginInput{Provider: "google"})
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, f.gateway.ExchangeCalls)
}

func TestCompleteLoginProviderRejectedPersistsNothing(t *testing.T) {
	f := newFixture(t)
	f.gateway.ExchangeFunc = func(context.Context, ports.ExchangeInput) (domainauth.Identity, error) {
		return domainauth.Identity{}, apperrors.ProviderRejected(nil, "state mismatch")
	}

	_, err := f.svc.CompleteLogin(context.Background(), CompleteLoginInput{
		Provider: "google", Code: "auth-code",
	})
	assert.True(t, apperrors.IsProviderRejected(err))
	assert.Equal(t, 0, f.users.Count())
	assert.Equal(t, 0, f.tokens.Count())
}

func TestCompleteLoginRepeatIsSameUserNewCredential(t *testing.T) {
	f := newFixture(t)

	first := login(t, f)
	second := login(t, f)

	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, 1, f.users.Count())
	assert.Equal(t, 2, f.tokens.Count())
}

func TestCompleteLoginConcurrentSameEmail(t *testing.T) {
	f := newFixture(t)

	const n = 8
	creds := make([]*IssuedCredential, n)
	var wg sync.WaitGroup
	for i := range creds {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cred, err := f.svc.CompleteLogin(context.Background(), CompleteLoginInput{
				Provider: "google", Code: "auth-code",
			})
			assert.NoError(t, err)
			creds[i] = cred
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, f.users.Count())
	assert.Equal(t, n, f.tokens.Count())
	for _, cred := range creds[1:] {
		assert.Equal(t, creds[0].User.ID, cred.User.ID)
	}
}

func TestTryAuthenticateAbsentCredential(t *testing.T) {
	f := newFixture(t)

	user, err := f.svc.TryAuthenticate(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestTryAuthenticateGarbageCredential(t *testing.T) {
	f := newFixture(t)

	user, err := f.svc.TryAuthenticate(context.Background(), "not-a-credential")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestTryAuthenticateResolvesUser(t *testing.T) {
	f := newFixture(t)
	cred := login(t, f)

	user, err := f.svc.TryAuthenticate(context.Background(), cred.Value)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, cred.User.ID, user.ID)
}

func TestTryAuthenticateStripsBearerPrefix(t *testing.T) {
	f := newFixture(t)
	cred := login(t, f)

	user, err := f.svc.TryAuthenticate(context.Background(), "Bearer "+cred.Value)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, cred.User.ID, user.ID)
}

func TestRequireAuthenticateInvalidCredential(t *testing.T) {
	f := newFixture(t)

	for _, credential := range []string{"", "garbage", "Bearer garbage"} {
		_, err := f.svc.RequireAuthenticate(context.Background(), credential)
		assert.True(t, apperrors.IsUnauthenticated(err), "credential %q", credential)
	}
}

func TestRequireAuthenticateExpiredCredential(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	expiredCodec, err := token.NewCodec(token.CodecConfig{
		SigningSecret: "test-signing-secret",
		TTL:           30 * time.Minute,
		Now:           func() time.Time { return past },
	})
	require.NoError(t, err)

	f := newFixture(t)
	value, _, err := expiredCodec.Issue("some-user-id")
	require.NoError(t, err)

	_, err = f.svc.RequireAuthenticate(context.Background(), value)
	assert.True(t, apperrors.IsUnauthenticated(err))
}

func TestRequireAuthenticateForeignSignature(t *testing.T) {
	foreignCodec, err := token.NewCodec(token.CodecConfig{
		SigningSecret: "some-other-secret",
		TTL:           30 * time.Minute,
	})
	require.NoError(t, err)

	f := newFixture(t)
	value, _, err := foreignCodec.Issue("some-user-id")
	require.NoError(t, err)

	_, err = f.svc.RequireAuthenticate(context.Background(), value)
	assert.True(t, apperrors.IsUnauthenticated(err))
}

func TestRequireAuthenticateUnknownSubject(t *testing.T) {
	f := newFixture(t)

	// Forge a record-less credential with the real codec: valid signature,
	// no persisted record and no user. The revocation check rejects it.
	value, _, err := f.codec.Issue("missing-user-id")
	require.NoError(t, err)

	_, err = f.svc.RequireAuthenticate(context.Background(), value)
	assert.True(t, apperrors.IsUnauthenticated(err))
}

func TestLogoutRevokesCredential(t *testing.T) {
	f := newFixture(t)
	cred := login(t, f)

	require.NoError(t, f.svc.Logout(context.Background(), cred.Value))

	// The credential is still cryptographically valid but no longer accepted.
	_, err := f.svc.RequireAuthenticate(context.Background(), cred.Value)
	assert.True(t, apperrors.IsUnauthenticated(err))

	user, err := f.svc.TryAuthenticate(context.Background(), cred.Value)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestLogoutIdempotent(t *testing.T) {
	f := newFixture(t)
	cred := login(t, f)

	require.NoError(t, f.svc.Logout(context.Background(), cred.Value))
	require.NoError(t, f.svc.Logout(context.Background(), cred.Value))
	require.NoError(t, f.svc.Logout(context.Background(), ""))
	require.NoError(t, f.svc.Logout(context.Background(), "never-issued"))
}

func TestLogoutOnlyRevokesPresentedCredential(t *testing.T) {
	f := newFixture(t)
	first := login(t, f)
	second := login(t, f)

	require.NoError(t, f.svc.Logout(context.Background(), first.Value))

	_, err := f.svc.RequireAuthenticate(context.Background(), first.Value)
	assert.True(t, apperrors.IsUnauthenticated(err))

	user, err := f.svc.RequireAuthenticate(context.Background(), second.Value)
	require.NoError(t, err)
	assert.Equal(t, second.User.ID, user.ID)
}

func TestLogoutInterleavedStoreReadDoesNotResurrectCredential(t *testing.T) {
	f := newFixture(t)
	store := &staleReadTokenStore{TokenStore: f.tokens}
	f.svc = NewAuthService(AuthServiceOptions{
		Gateway: f.gateway,
		Users:   f.users,
		Tokens:  store,
		Cache:   f.cache,
		Codec:   f.codec,
	})

	cred := login(t, f)
	record, err := f.tokens.GetByValue(context.Background(), cred.Value)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(context.Background(), cred.Value))
	store.armStale(record)

	// A store read that began before the delete may still resolve the user
	// once; it must not repopulate the cache for later requests.
	user, err := f.svc.TryAuthenticate(context.Background(), cred.Value)
	require.NoError(t, err)
	require.NotNil(t, user)

	user, err = f.svc.TryAuthenticate(context.Background(), cred.Value)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestAuthenticateWithoutCache(t *testing.T) {
	f := newFixture(t, func(opts *AuthServiceOptions) {
		opts.Cache = nil
	})
	cred := login(t, f)

	user, err := f.svc.RequireAuthenticate(context.Background(), cred.Value)
	require.NoError(t, err)
	assert.Equal(t, cred.User.ID, user.ID)

	require.NoError(t, f.svc.Logout(context.Background(), cred.Value))
	_, err = f.svc.RequireAuthenticate(context.Background(), cred.Value)
	assert.True(t, apperrors.IsUnauthenticated(err))
}

func TestCacheFailureFallsBackToStore(t *testing.T) {
	f := newFixture(t, func(opts *AuthServiceOptions) {
		opts.Cache = failingCache{}
	})
	cred := login(t, f)

	user, err := f.svc.RequireAuthenticate(context.Background(), cred.Value)
	require.NoError(t, err)
	assert.Equal(t, cred.User.ID, user.ID)
}

// staleReadTokenStore replays a captured record for one GetByValue call,
// standing in for a row read that started before a concurrent logout deleted
// it.
type staleReadTokenStore struct {
	ports.TokenStore
	mu    sync.Mutex
	stale *model.Token
}

func (s *staleReadTokenStore) armStale(record *model.Token) {
	s.mu.Lock()
	s.stale = record
	s.mu.Unlock()
}

func (s *staleReadTokenStore) GetByValue(ctx context.Context, value string) (*model.Token, error) {
	s.mu.Lock()
	record := s.stale
	s.stale = nil
	s.mu.Unlock()
	if record != nil && record.AccessToken == value {
		return record, nil
	}
	return s.TokenStore.GetByValue(ctx, value)
}

type failingCache struct{}

func (failingCache) MarkValid(context.Context, string, time.Duration) error {
	return assert.AnError
}

func (failingCache) Invalidate(context.Context, string) error { return assert.AnError }

func (failingCache) IsValid(context.Context, string) (bool, error) { return false, assert.AnError }
