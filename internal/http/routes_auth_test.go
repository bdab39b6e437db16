package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/cloudpivot/ssogate/internal/domain/auth"
	apperrors "github.com/cloudpivot/ssogate/internal/errors"
	mockauth "github.com/cloudpivot/ssogate/internal/mocks/auth"
	"github.com/cloudpivot/ssogate/internal/ports"
	"github.com/cloudpivot/ssogate/internal/service"
	"github.com/cloudpivot/ssogate/internal/token"
)

type routerFixture struct {
	handler http.Handler
	gateway *mockauth.MockProviderGateway
	users   *mockauth.MemoryUserStore
	tokens  *mockauth.MemoryTokenStore
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	codec, err := token.NewCodec(token.CodecConfig{
		SigningSecret: "test-signing-secret",
		TTL:           30 * time.Minute,
	})
	require.NoError(t, err)

	f := &routerFixture{
		gateway: &mockauth.MockProviderGateway{},
		users:   mockauth.NewMemoryUserStore(),
		tokens:  mockauth.NewMemoryTokenStore(),
	}
	// Only "google" is on the allow-list in these tests.
	f.gateway.BeginFunc = func(_ context.Context, in ports.BeginInput) (string, string, string, error) {
		if in.Provider != "google" {
			return "", "", "", apperrors.UnknownProvider(in.Provider)
		}
		return "https://idp.example.com/authorize?state=test-state", "test-state", "test-nonce", nil
	}
	f.gateway.ExchangeFunc = func(_ context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
		if in.Provider != "google" {
			return domainauth.Identity{}, apperrors.UnknownProvider(in.Provider)
		}
		return domainauth.Identity{
			Email:    "user@example.com",
			Name:     "Example User",
			Provider: in.Provider,
			Claims:   domainauth.Claims{"email": "user@example.com", "name": "Example User"},
		}, nil
	}

	svc := service.NewAuthService(service.AuthServiceOptions{
		Gateway: f.gateway,
		Users:   f.users,
		Tokens:  f.tokens,
		Codec:   codec,
	})
	f.handler = NewRouter(RouterServices{Auth: svc, Cookies: CookieSettings{}})
	return f
}

func (f *routerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

// loginThroughRouter walks the full redirect flow and returns the issued
// credential cookie.
func loginThroughRouter(t *testing.T, f *routerFixture) *http.Cookie {
	t.Helper()

	rec := f.do(httptest.NewRequest(http.MethodGet, "/login/google", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Contains(t, rec.Header().Get("Location"), "https://idp.example.com/")

	callback := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=auth-code&state=test-state", nil)
	for _, c := range rec.Result().Cookies() {
		callback.AddCookie(c)
	}
	rec = f.do(callback)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/dashboard", rec.Header().Get("Location"))

	cred := findCookie(rec.Result().Cookies(), CredentialCookie)
	require.NotNil(t, cred)
	require.NotEmpty(t, cred.Value)
	return cred
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLoginRedirectsToProvider(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/login/google", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "https://idp.example.com/")

	cookies := rec.Result().Cookies()
	state := findCookie(cookies, "oauth_state")
	require.NotNil(t, state)
	assert.Equal(t, "test-state", state.Value)
	assert.True(t, state.HttpOnly)

	nonce := findCookie(cookies, "oauth_nonce")
	require.NotNil(t, nonce)
	assert.Equal(t, "test-nonce", nonce.Value)
}

func TestLoginUnknownProvider(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/login/github", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unknown_provider", body["error"])
}

func TestLoginWhileAuthenticatedGoesHome(t *testing.T) {
	f := newRouterFixture(t)
	cred := loginThroughRouter(t, f)
	beginCallsAfterLogin := len(f.gateway.BeginCalls)

	req := httptest.NewRequest(http.MethodGet, "/login/google", nil)
	req.AddCookie(cred)
	rec := f.do(req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Len(t, f.gateway.BeginCalls, beginCallsAfterLogin)
}

func TestCallbackMissingParams(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=test-state", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing_code")

	rec = f.do(httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=auth-code", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing_state")
}

func TestCallbackStateMismatch(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/login/google", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	callback := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=auth-code&state=forged", nil)
	for _, c := range rec.Result().Cookies() {
		callback.AddCookie(c)
	}
	rec = f.do(callback)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_state")
	assert.Empty(t, f.gateway.ExchangeCalls)
}

func TestCallbackWithoutFlowCookies(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=auth-code&state=test-state", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_state")
}

func TestCallbackIssuesCredentialCookie(t *testing.T) {
	f := newRouterFixture(t)

	cred := loginThroughRouter(t, f)
	assert.True(t, cred.HttpOnly)
	assert.Equal(t, int((30 * time.Minute).Seconds()), cred.MaxAge)

	assert.Equal(t, 1, f.users.Count())
	assert.Equal(t, 1, f.tokens.Count())
}

func TestCallbackProviderRejected(t *testing.T) {
	f := newRouterFixture(t)
	f.gateway.ExchangeFunc = func(context.Context, ports.ExchangeInput) (domainauth.Identity, error) {
		return domainauth.Identity{}, apperrors.ProviderRejected(nil, "exchange refused")
	}

	rec := f.do(httptest.NewRequest(http.MethodGet, "/login/google", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	callback := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=auth-code&state=test-state", nil)
	for _, c := range rec.Result().Cookies() {
		callback.AddCookie(c)
	}
	rec = f.do(callback)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "provider_rejected")
	assert.Equal(t, 0, f.tokens.Count())

	// Flow cookies are cleared on failure too, so a retry starts fresh.
	cookies := rec.Result().Cookies()
	state := findCookie(cookies, "oauth_state")
	require.NotNil(t, state)
	assert.Less(t, state.MaxAge, 0)
	nonce := findCookie(cookies, "oauth_nonce")
	require.NotNil(t, nonce)
	assert.Less(t, nonce.MaxAge, 0)
}

func TestStatusAnonymous(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/auth/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["isAuthenticated"])
	assert.NotContains(t, body, "user")
}

func TestStatusAuthenticated(t *testing.T) {
	f := newRouterFixture(t)
	cred := loginThroughRouter(t, f)

	req := httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	req.AddCookie(cred)
	rec := f.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		IsAuthenticated bool `json:"isAuthenticated"`
		User            struct {
			Email       string          `json:"email"`
			Name        string          `json:"name"`
			SSOMetadata json.RawMessage `json:"sso_metadata"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.IsAuthenticated)
	assert.Equal(t, "user@example.com", body.User.Email)
	assert.Equal(t, "Example User", body.User.Name)
	assert.JSONEq(t, `{"email":"user@example.com","name":"Example User"}`, string(body.User.SSOMetadata))
}

func TestStatusWithGarbageCredential(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	req.AddCookie(&http.Cookie{Name: CredentialCookie, Value: "garbage"})
	rec := f.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"isAuthenticated":false`)
}

func TestLogoutWithoutCredentialRedirectsHome(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/logout", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestLogoutRevokesAndClearsCookie(t *testing.T) {
	f := newRouterFixture(t)
	cred := loginThroughRouter(t, f)

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(cred)
	rec := f.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Logged out successfully")

	cleared := findCookie(rec.Result().Cookies(), CredentialCookie)
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)

	// The revoked credential no longer authenticates before natural expiry.
	req = httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	req.AddCookie(cred)
	rec = f.do(req)
	assert.Contains(t, rec.Body.String(), `"isAuthenticated":false`)
}

func TestCredentialAcceptedWithBearerPrefix(t *testing.T) {
	f := newRouterFixture(t)
	cred := loginThroughRouter(t, f)

	req := httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	req.AddCookie(&http.Cookie{Name: CredentialCookie, Value: "Bearer " + cred.Value})
	rec := f.do(req)
	assert.Contains(t, rec.Body.String(), `"isAuthenticated":true`)
}

func TestCredentialAcceptedFromAuthorizationHeader(t *testing.T) {
	f := newRouterFixture(t)
	cred := loginThroughRouter(t, f)

	req := httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	req.Header.Set("Authorization", "Bearer "+cred.Value)
	rec := f.do(req)
	assert.Contains(t, rec.Body.String(), `"isAuthenticated":true`)
}
