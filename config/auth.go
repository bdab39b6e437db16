package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeOAuth uses OAuth/OIDC for authentication.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModeMock uses mock/dev authentication (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "oauth", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oauth, mock)", v)
	}
}

// ProviderConfig contains OAuth/OIDC configuration for a single identity
// provider. Provider entries are registered under a fixed allow-list of
// names; see bootstrap.BuildAuthService.
type ProviderConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
	Scope        string `env:"SCOPE"         envDefault:"openid email profile"`

	// EmailClaim and NameClaim are optional JMESPath expressions evaluated
	// against the raw claim set when the standard claims are absent
	// (e.g. "preferred_username" for Microsoft tenants without a mail claim).
	EmailClaim string `env:"EMAIL_CLAIM"`
	NameClaim  string `env:"NAME_CLAIM"`
}

// Configured reports whether the provider has the minimum required settings.
func (p ProviderConfig) Configured() bool {
	return p.ClientID != "" && p.ClientSecret != "" && p.DiscoveryURL != ""
}

// TokenConfig contains settings for the signed bearer credential.
type TokenConfig struct {
	// SigningSecret is the symmetric HS256 signing key. Required outside
	// mock auth mode.
	SigningSecret string `env:"SECRET_KEY"`

	// TTL is the credential lifetime from issuance.
	TTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"30m"`
}

// DevAuthConfig controls mock/dev authentication identity.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	Email string `env:"EMAIL" envDefault:"dev@example.com"`
	Name  string `env:"NAME"  envDefault:"Dev User"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which authentication provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oauth"`

	// Token configuration for the issued bearer credential.
	Token TokenConfig

	// Per-provider OIDC settings.
	Google    ProviderConfig `envPrefix:"GOOGLE_"`
	Microsoft ProviderConfig `envPrefix:"MICROSOFT_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`
}

const minTokenTTL = time.Minute

// Sanitize applies guardrails to authentication configuration values.
func (a *AuthConfig) Sanitize() {
	if a.Token.TTL < minTokenTTL {
		a.Token.TTL = minTokenTTL
	}
}
