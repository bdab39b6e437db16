package bootstrap

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudpivot/ssogate/config"
	"github.com/cloudpivot/ssogate/internal/adapters/devauth"
	"github.com/cloudpivot/ssogate/internal/ports"
)

func baseConfig() *config.AppConfig {
	return &config.AppConfig{
		Env: config.EnvDevelopment,
		Auth: config.AuthConfig{
			Mode: config.AuthModeOAuth,
			Token: config.TokenConfig{
				SigningSecret: "test-secret",
				TTL:           30 * time.Minute,
			},
		},
		HTTP: config.HTTPConfig{BaseURL: "http://localhost:8080"},
	}
}

func TestBuildCodecRequiresSecretForOAuth(t *testing.T) {
	cfg := baseConfig()
	cfg.Auth.Token.SigningSecret = ""

	_, err := buildCodec(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SECRET_KEY")
}

func TestBuildCodecMockModeFallsBackToDevSecret(t *testing.T) {
	cfg := baseConfig()
	cfg.Auth.Mode = config.AuthModeMock
	cfg.Auth.Token.SigningSecret = ""

	codec, err := buildCodec(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, codec.TTL())
}

func TestBuildCodecNoDevSecretInProduction(t *testing.T) {
	cfg := baseConfig()
	cfg.Env = config.EnvProduction
	cfg.Auth.Mode = config.AuthModeMock
	cfg.Auth.Token.SigningSecret = ""

	_, err := buildCodec(cfg, nil)
	require.Error(t, err)
}

func TestBuildGatewayMockMode(t *testing.T) {
	cfg := baseConfig()
	cfg.Auth.Mode = config.AuthModeMock
	cfg.Auth.DevAuth = config.DevAuthConfig{Email: "dev@example.com", Name: "Dev User"}

	gateway, err := buildGateway(context.Background(), cfg, nil)
	require.NoError(t, err)

	authURL, state, nonce, err := gateway.Begin(context.Background(), ports.BeginInput{Provider: devauth.ProviderName})
	require.NoError(t, err)
	assert.Contains(t, authURL, "http://localhost:8080/auth/dev/callback?code=")
	assert.NotEmpty(t, state)
	assert.NotEmpty(t, nonce)
}

func TestBuildGatewayMockModeRejectedInProduction(t *testing.T) {
	cfg := baseConfig()
	cfg.Env = config.EnvProduction
	cfg.Auth.Mode = config.AuthModeMock

	_, err := buildGateway(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "production")
}

func TestBuildGatewayOAuthWithoutProviders(t *testing.T) {
	cfg := baseConfig()

	_, err := buildGateway(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no identity providers configured")
}

func TestCallbackURL(t *testing.T) {
	assert.Equal(t, "https://app.example.com/auth/google/callback",
		callbackURL("https://app.example.com", "google"))
	assert.Equal(t, "https://app.example.com/auth/microsoft/callback",
		callbackURL("https://app.example.com/", "microsoft"))
}

func TestCookieSettingsByEnvironment(t *testing.T) {
	cfg := baseConfig()
	cfg.HTTP.CookieDomain = "app.example.com"

	dev := cookieSettings(cfg)
	assert.False(t, dev.Secure)
	assert.Equal(t, http.SameSiteLaxMode, dev.SameSite)
	assert.Equal(t, "app.example.com", dev.Domain)

	cfg.Env = config.EnvProduction
	prod := cookieSettings(cfg)
	assert.True(t, prod.Secure)
	assert.Equal(t, http.SameSiteStrictMode, prod.SameSite)
}
