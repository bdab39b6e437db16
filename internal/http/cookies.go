package httpx

import (
	"net/http"
	"time"
)

// Cookie names used by the auth flow.
const (
	// CredentialCookie carries the signed bearer credential, optionally with
	// a "Bearer " prefix.
	CredentialCookie = "access_token"
	stateCookie      = "oauth_state"
	nonceCookie      = "oauth_nonce"
)

// oauthCookieTTL bounds how long an interrupted login flow stays resumable.
const oauthCookieTTL = 10 * time.Minute

// CookieSettings controls the attributes of cookies the service sets.
// Production uses Secure + SameSite=Strict; development relaxes to Lax so the
// cross-site redirect from the provider still carries the cookie over http.
type CookieSettings struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

func (s CookieSettings) sameSite() http.SameSite {
	if s.SameSite == 0 {
		return http.SameSiteLaxMode
	}
	return s.SameSite
}

// set writes a cookie with the configured attributes.
func (s CookieSettings) set(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   s.Domain,
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: s.sameSite(),
		MaxAge:   maxAge,
	})
}

// clear expires a cookie immediately, mirroring the attributes used when
// setting it for cross-browser deletion compatibility.
func (s CookieSettings) clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   s.Domain,
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: s.sameSite(),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
	})
}

// credentialFromRequest extracts the raw bearer credential from the request:
// the access_token cookie, or the Authorization header for non-browser
// clients. The value may carry a "Bearer " prefix; the service strips it.
func credentialFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CredentialCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return r.Header.Get("Authorization")
}
