package config

import (
	"os"
	"strings"
)

// Environment names the deployment environment. Cookie security attributes
// and similar behavior are keyed off this value.
type Environment string

const (
	// EnvDevelopment is the local development environment.
	EnvDevelopment Environment = "development"
	// EnvProduction is the production environment.
	EnvProduction Environment = "production"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: Authentication, provider, and token configuration
//   - database.go: Database and cache configuration
//   - http.go: HTTP server configuration
type AppConfig struct {
	// Env controls environment-dependent behavior (cookie flags, etc.).
	Env Environment `env:"ENV" envDefault:"development"`

	// Authentication configuration
	Auth AuthConfig

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig
}

// IsProduction reports whether the application runs in production mode.
func (c *AppConfig) IsProduction() bool {
	return c.Env == EnvProduction
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Auth.Sanitize()
	c.detectEnv()
}

// detectEnv normalizes the environment value and falls back to NODE_ENV,
// which some deployments still set.
func (c *AppConfig) detectEnv() {
	env := strings.ToLower(strings.TrimSpace(string(c.Env)))
	if env == "" {
		env = strings.ToLower(os.Getenv("NODE_ENV"))
	}
	switch env {
	case "production", "prod":
		c.Env = EnvProduction
	default:
		c.Env = EnvDevelopment
	}
}
