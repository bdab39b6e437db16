package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cloudpivot/ssogate/config"
	httpx "github.com/cloudpivot/ssogate/internal/http"
	"github.com/cloudpivot/ssogate/internal/service"
)

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config *config.AppConfig
	Auth   *service.AuthService
	Logger *slog.Logger
}

// NewHTTPServer builds the HTTP server with the full middleware-wrapped router.
func NewHTTPServer(cfg HTTPServerConfig) *http.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	appCfg := cfg.Config
	handler := httpx.NewRouter(httpx.RouterServices{
		Auth:    cfg.Auth,
		Cookies: cookieSettings(appCfg),
		Logger:  logger,
	})

	addr := appCfg.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}

	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// cookieSettings derives cookie attributes from the environment: production
// gets Secure + SameSite=Strict, development Lax without Secure so the flow
// works over plain http.
func cookieSettings(cfg *config.AppConfig) httpx.CookieSettings {
	settings := httpx.CookieSettings{
		Domain:   cfg.HTTP.CookieDomain,
		SameSite: http.SameSiteLaxMode,
	}
	if cfg.IsProduction() {
		settings.Secure = true
		settings.SameSite = http.SameSiteStrictMode
	}
	return settings
}

// RunHTTPServer serves until the context is canceled or SIGINT/SIGTERM
// arrives, then shuts the server down gracefully.
func RunHTTPServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}

		logger.Info("HTTP server stopped")
		return nil
	})

	return g.Wait()
}
