package mettle

import (
	"os"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
)

// ClientConfig is the concrete Config used by the client factory.
type ClientConfig struct {
	BackendURL       string
	APIKey           string
	AccountDeleteURL string
	JWKSURL          string
}

var _ Config = (*ClientConfig)(nil)

func (c *ClientConfig) GetBackendURL() string { return c.BackendURL }

func (c *ClientConfig) GetAPIKey() string { return c.APIKey }

func (c *ClientConfig) GetAccountDeleteURL() string { return c.AccountDeleteURL }

func (c *ClientConfig) GetJWKSURL() string {
	if c.JWKSURL != "" {
		return c.JWKSURL
	}
	return strings.TrimRight(c.BackendURL, "/") + "/auth/v1/.well-known/jwks.json"
}

// Validate checks the options required to reach the backend. A failure
// here is a startup-fatal configuration error for the host application.
func (c *ClientConfig) Validate() error {
	if strings.TrimSpace(c.BackendURL) == "" {
		return goerrors.Wrap(ErrMissingConfig, goerrors.CategoryBadInput, "backend URL is required")
	}

	if strings.TrimSpace(c.APIKey) == "" {
		return goerrors.Wrap(ErrMissingConfig, goerrors.CategoryBadInput, "backend API key is required")
	}

	return nil
}

// ConfigFromEnv builds a ClientConfig from the process environment,
// loading a .env file first when one exists.
func ConfigFromEnv() (*ClientConfig, error) {
	// missing .env is fine, real deployments use actual env vars
	_ = godotenv.Load()

	cfg := &ClientConfig{
		BackendURL:       os.Getenv("METTLE_BACKEND_URL"),
		APIKey:           os.Getenv("METTLE_BACKEND_KEY"),
		AccountDeleteURL: os.Getenv("METTLE_ACCOUNT_DELETE_URL"),
		JWKSURL:          os.Getenv("METTLE_BACKEND_JWKS_URL"),
	}

	if cfg.AccountDeleteURL == "" {
		cfg.AccountDeleteURL = DefaultAccountDeleteRoute
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
