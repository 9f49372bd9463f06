package mettle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mettle "github.com/mettlehq/go-mettle"
)

func TestClientConfigValidate(t *testing.T) {
	valid := &mettle.ClientConfig{
		BackendURL: "https://backend.example.com",
		APIKey:     "anon-key",
	}
	assert.NoError(t, valid.Validate())

	missingURL := &mettle.ClientConfig{APIKey: "anon-key"}
	assert.Error(t, missingURL.Validate())

	missingKey := &mettle.ClientConfig{BackendURL: "https://backend.example.com"}
	assert.Error(t, missingKey.Validate())
}

func TestClientConfigJWKSURLDefault(t *testing.T) {
	cfg := &mettle.ClientConfig{BackendURL: "https://backend.example.com/"}
	assert.Equal(t, "https://backend.example.com/auth/v1/.well-known/jwks.json", cfg.GetJWKSURL())

	explicit := &mettle.ClientConfig{
		BackendURL: "https://backend.example.com",
		JWKSURL:    "https://keys.example.com/jwks.json",
	}
	assert.Equal(t, "https://keys.example.com/jwks.json", explicit.GetJWKSURL())
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("METTLE_BACKEND_URL", "https://backend.example.com")
	t.Setenv("METTLE_BACKEND_KEY", "anon-key")
	t.Setenv("METTLE_ACCOUNT_DELETE_URL", "")
	t.Setenv("METTLE_BACKEND_JWKS_URL", "")

	cfg, err := mettle.ConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "https://backend.example.com", cfg.GetBackendURL())
	assert.Equal(t, "anon-key", cfg.GetAPIKey())
	assert.Equal(t, "/api/account", cfg.GetAccountDeleteURL(), "deletion endpoint defaults")
}

func TestConfigFromEnvMissingKey(t *testing.T) {
	t.Setenv("METTLE_BACKEND_URL", "https://backend.example.com")
	t.Setenv("METTLE_BACKEND_KEY", "")

	_, err := mettle.ConfigFromEnv()
	require.Error(t, err)
}
