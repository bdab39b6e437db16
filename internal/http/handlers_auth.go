package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cloudpivot/ssogate/internal/domain/model"
	apperrors "github.com/cloudpivot/ssogate/internal/errors"
	"github.com/cloudpivot/ssogate/internal/ports"
	"github.com/cloudpivot/ssogate/internal/service"
)

// AuthServiceInterface defines the interface for auth service operations.
type AuthServiceInterface interface {
	BeginLogin(ctx context.Context, in ports.BeginInput) (*service.BeginLoginResult, error)
	CompleteLogin(ctx context.Context, in service.CompleteLoginInput) (*service.IssuedCredential, error)
	TryAuthenticate(ctx context.Context, credential string) (*model.User, error)
	RequireAuthenticate(ctx context.Context, credential string) (*model.User, error)
	Logout(ctx context.Context, credential string) error
	CredentialTTL() time.Duration
}

// AuthHandlers provides HTTP handlers for the login/logout lifecycle.
type AuthHandlers struct {
	Svc     AuthServiceInterface
	Cookies CookieSettings
	Logger  *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Login handles the login initiation endpoint.
// GET /login/{provider}.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")

	// An already-authenticated user is sent home; re-login is a no-op.
	if user, err := h.Svc.TryAuthenticate(r.Context(), credentialFromRequest(r)); err == nil && user != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	result, err := h.Svc.BeginLogin(r.Context(), ports.BeginInput{Provider: provider})
	if err != nil {
		if !apperrors.IsUnknownProvider(err) {
			h.logger().ErrorContext(r.Context(), "begin login failed", "provider", provider, "error", err)
		}
		WriteAppError(w, err)
		return
	}

	// State and nonce survive the provider round-trip in short-lived cookies.
	h.Cookies.set(w, stateCookie, result.State, int(oauthCookieTTL.Seconds()))
	h.Cookies.set(w, nonceCookie, result.Nonce, int(oauthCookieTTL.Seconds()))

	http.Redirect(w, r, result.AuthURL, http.StatusFound)
}

// Callback handles the provider redirect back to the service.
// GET /auth/{provider}/callback?code=<code>&state=<state>.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_code",
			Err:     errors.New("authorization code is required"),
		})
		return
	}
	if state == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_state",
			Err:     errors.New("state parameter is required"),
		})
		return
	}

	sc, err := r.Cookie(stateCookie)
	if err != nil || sc.Value != state {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_state",
			Err:     errors.New("invalid or missing state parameter"),
		})
		return
	}
	nc, err := r.Cookie(nonceCookie)
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_nonce",
			Err:     errors.New("missing nonce parameter"),
		})
		return
	}

	cred, err := h.Svc.CompleteLogin(r.Context(), service.CompleteLoginInput{
		Provider: provider,
		Code:     code,
		State:    state,
		Nonce:    nc.Value,
	})
	if err != nil {
		h.logger().ErrorContext(r.Context(), "login completion failed", "provider", provider, "error", err)
		// Stale flow cookies would shadow a retried login's state and nonce.
		h.Cookies.clear(w, stateCookie)
		h.Cookies.clear(w, nonceCookie)
		WriteAppError(w, err)
		return
	}

	h.Cookies.set(w, CredentialCookie, cred.Value, int(h.Svc.CredentialTTL().Seconds()))
	h.Cookies.clear(w, stateCookie)
	h.Cookies.clear(w, nonceCookie)

	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// Status returns the current authentication status.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	user, err := h.Svc.TryAuthenticate(r.Context(), credentialFromRequest(r))
	if err != nil {
		h.logger().WarnContext(r.Context(), "auth status resolution failed", "error", err)
	}
	if user == nil {
		WriteJSON(w, http.StatusOK, map[string]any{"isAuthenticated": false})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"isAuthenticated": true,
		"user": map[string]any{
			"email":        user.Email,
			"name":         user.Name,
			"sso_metadata": json.RawMessage(user.SSOMetadata),
		},
	})
}

// Logout revokes the presented credential and clears the cookie.
// GET /logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	credential := credentialFromRequest(r)
	if credential == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	if err := h.Svc.Logout(r.Context(), credential); err != nil {
		h.logger().WarnContext(r.Context(), "logout failed", "error", err)
	}

	h.Cookies.clear(w, CredentialCookie)
	WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}
