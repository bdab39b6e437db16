package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/cloudpivot/ssogate/config"
	"github.com/cloudpivot/ssogate/internal/adapters/devauth"
	"github.com/cloudpivot/ssogate/internal/adapters/oidc"
	redisadapter "github.com/cloudpivot/ssogate/internal/adapters/redis"
	"github.com/cloudpivot/ssogate/internal/data"
	"github.com/cloudpivot/ssogate/internal/ports"
	"github.com/cloudpivot/ssogate/internal/service"
	"github.com/cloudpivot/ssogate/internal/token"
)

// AuthDeps contains dependencies for building the auth service.
type AuthDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// devSigningSecret keeps mock mode usable without a configured key. Never
// accepted in production.
const devSigningSecret = "insecure-dev-signing-secret"

// BuildAuthService wires the provider gateway, credential codec, stores, and
// optional validity cache into the auth service.
func BuildAuthService(ctx context.Context, deps AuthDeps) (*service.AuthService, error) {
	cfg := deps.Config

	codec, err := buildCodec(cfg, deps.Logger)
	if err != nil {
		return nil, err
	}

	gateway, err := buildGateway(ctx, cfg, deps.Logger)
	if err != nil {
		return nil, err
	}

	var cache ports.TokenCache
	if deps.RedisClient != nil {
		cache = redisadapter.NewTokenCache(deps.RedisClient)
	}

	return service.NewAuthService(service.AuthServiceOptions{
		Gateway: gateway,
		Users:   data.NewUserRepo(deps.DB),
		Tokens:  data.NewTokenRepo(deps.DB),
		Codec:   codec,
		Cache:   cache,
		Logger:  deps.Logger,
	}), nil
}

func buildCodec(cfg *config.AppConfig, logger *slog.Logger) (*token.Codec, error) {
	secret := cfg.Auth.Token.SigningSecret
	if secret == "" {
		if cfg.IsProduction() || cfg.Auth.Mode != config.AuthModeMock {
			return nil, errors.New("SECRET_KEY is required")
		}
		if logger != nil {
			logger.Warn("SECRET_KEY not set; using insecure dev signing secret")
		}
		secret = devSigningSecret
	}

	return token.NewCodec(token.CodecConfig{
		SigningSecret: secret,
		TTL:           cfg.Auth.Token.TTL,
	})
}

// buildGateway constructs the provider gateway for the configured auth mode.
//
//nolint:ireturn // callers program against the port.
func buildGateway(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (ports.ProviderGateway, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		if cfg.IsProduction() {
			return nil, errors.New("mock auth mode is not allowed in production")
		}
		return devauth.NewProvider(devauth.Config{
			Email:       cfg.Auth.DevAuth.Email,
			Name:        cfg.Auth.DevAuth.Name,
			CallbackURL: callbackURL(cfg.HTTP.BaseURL, devauth.ProviderName),
		})

	case config.AuthModeOAuth:
		return buildOIDCRegistry(ctx, cfg, logger)

	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
}

// buildOIDCRegistry creates one provider per configured IdP under the fixed
// allow-list names.
func buildOIDCRegistry(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*oidc.Registry, error) {
	providerConfigs := map[string]config.ProviderConfig{
		"google":    cfg.Auth.Google,
		"microsoft": cfg.Auth.Microsoft,
	}

	providers := make([]*oidc.Provider, 0, len(providerConfigs))
	for name, pc := range providerConfigs {
		if !pc.Configured() {
			if logger != nil {
				logger.Info("identity provider not configured, skipping", "provider", name)
			}
			continue
		}

		p, err := oidc.NewProvider(ctx, oidc.ProviderConfig{
			Name:         name,
			ClientID:     pc.ClientID,
			ClientSecret: pc.ClientSecret,
			RedirectURL:  callbackURL(cfg.HTTP.BaseURL, name),
			Scope:        pc.Scope,
			DiscoveryURL: pc.DiscoveryURL,
			EmailClaim:   pc.EmailClaim,
			NameClaim:    pc.NameClaim,
		})
		if err != nil {
			return nil, fmt.Errorf("configure provider %s: %w", name, err)
		}
		providers = append(providers, p)

		if logger != nil {
			logger.Info("identity provider configured", "provider", name)
		}
	}

	if len(providers) == 0 {
		return nil, errors.New("no identity providers configured; set GOOGLE_* or MICROSOFT_* credentials")
	}
	return oidc.NewRegistry(providers...), nil
}

// callbackURL builds the per-provider OAuth callback URL from the app base URL.
func callbackURL(baseURL, provider string) string {
	return strings.TrimSuffix(baseURL, "/") + "/auth/" + provider + "/callback"
}
