package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// PageHandlers serves the landing and dashboard pages. Responses are plain
// text or JSON; there is no template layer.
type PageHandlers struct{}

// Index is the landing page, reachable with or without a credential.
// GET /.
func (h *PageHandlers) Index(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r.Context())
	if !ok {
		writeText(w, "this is landing, you are not logged in, you are not allowed to access dashboard")
		return
	}
	writeText(w, fmt.Sprintf("this is landing, you are logged in as %s you can now access dashboard", user.Name))
}

// Dashboard requires authentication; anonymous visitors are sent to the
// landing page rather than refused.
// GET /dashboard.
func (h *PageHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	writeText(w, fmt.Sprintf("this is dashboard, you are logged in as %s using email: %s", user.Name, user.Email))
}

// Whoami returns the authenticated profile including the provider claims
// stored at login. Runs behind RequireAuth.
// GET /whoami.
func (h *PageHandlers) Whoami(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r.Context())
	if !ok {
		// RequireAuth guards this route; a missing user here is a wiring bug.
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     fmt.Errorf("authentication required"),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"message":      fmt.Sprintf("Logged in as %s", user.Name),
		"email":        user.Email,
		"provider":     user.Provider,
		"sso_metadata": json.RawMessage(user.SSOMetadata),
	})
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := fmt.Fprintln(w, body); err != nil {
		return
	}
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		return
	}
}
