package authbase

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the environment-driven configuration for a host application.
type Config struct {
	AppName string `env:"AUTHBASE_APP_NAME" envDefault:"Authbase"`

	// BaseURL prefixes verification and reset links.
	BaseURL string `env:"AUTHBASE_BASE_URL" envDefault:"http://localhost:8080"`

	// JWTSecretKey signs session tokens.
	JWTSecretKey string `env:"AUTHBASE_JWT_SECRET_KEY"`

	// SessionTimeout bounds session validity.
	SessionTimeout time.Duration `env:"AUTHBASE_SESSION_TIMEOUT" envDefault:"24h"`

	// StoreDSN is the relational store connection string.
	StoreDSN string `env:"AUTHBASE_STORE_DSN"`

	// StoreConnectTimeout bounds connection acquisition.
	StoreConnectTimeout time.Duration `env:"AUTHBASE_STORE_CONNECT_TIMEOUT" envDefault:"5s"`

	GoogleClientID     string `env:"OAUTH2_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"OAUTH2_GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string `env:"OAUTH2_GOOGLE_CALLBACK_URL"`

	GithubClientID     string `env:"OAUTH2_GITHUB_CLIENT_ID"`
	GithubClientSecret string `env:"OAUTH2_GITHUB_CLIENT_SECRET"`
	GithubCallbackURL  string `env:"OAUTH2_GITHUB_CALLBACK_URL"`
}

// LoadConfig parses configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}
