package httpx

import (
	"log/slog"
	"net/http"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Auth    AuthServiceInterface
	Cookies CookieSettings
	Logger  *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	authHandlers := &AuthHandlers{Svc: services.Auth, Cookies: services.Cookies, Logger: logger}
	pageHandlers := &PageHandlers{}

	registerAuthRoutes(mux, authHandlers)
	registerPageRoutes(mux, pageHandlers, services.Auth, logger)
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	var handler http.Handler = mux
	handler = Logging(logger)(handler)
	handler = Recover(logger)(handler)
	return handler
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("GET /login/{provider}", h.Login)
	mux.HandleFunc("GET /auth/{provider}/callback", h.Callback)
	mux.HandleFunc("GET /auth/status", h.Status)
	mux.HandleFunc("GET /logout", h.Logout)
}

func registerPageRoutes(mux *http.ServeMux, h *PageHandlers, auth AuthServiceInterface, logger *slog.Logger) {
	optional := OptionalAuth(auth, logger)
	required := RequireAuth(auth)

	mux.Handle("GET /{$}", optional(http.HandlerFunc(h.Index)))
	// Dashboard resolves the user itself so anonymous visitors get a redirect
	// to the landing page instead of a 401.
	mux.Handle("GET /dashboard", optional(http.HandlerFunc(h.Dashboard)))
	mux.Handle("GET /whoami", required(http.HandlerFunc(h.Whoami)))
}
