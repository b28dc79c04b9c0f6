package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"JWT_SECRET", "PORT", "PUBLIC_WS_URL", "PUBLIC_HTTP_URL", "SERVER_NAME", "SERVER_ID", "GO_ENV", "LOG_LEVEL", "ALLOWED_ORIGINS"} {
		os.Unsetenv(k)
	}
}

func TestValidateEnv_Success(t *testing.T) {
	clearEnv(t)
	os.Setenv("JWT_SECRET", "a-very-long-secret-that-is-valid-32+")
	os.Setenv("PORT", "8080")
	os.Setenv("PUBLIC_WS_URL", "wss://party.example.com/ws")
	os.Setenv("PUBLIC_HTTP_URL", "https://party.example.com")
	os.Setenv("SERVER_NAME", "partyline-1")
	defer clearEnv(t)

	cfg, err := ValidateEnv()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "https://party.example.com/", cfg.PublicHTTPURL)
	assert.Equal(t, "production", cfg.GoEnv)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NotEmpty(t, cfg.ServerID)
}

func TestValidateEnv_MissingRequired(t *testing.T) {
	clearEnv(t)
	defer clearEnv(t)

	_, err := ValidateEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
	assert.Contains(t, err.Error(), "PORT is required")
	assert.Contains(t, err.Error(), "PUBLIC_WS_URL is required")
	assert.Contains(t, err.Error(), "PUBLIC_HTTP_URL is required")
	assert.Contains(t, err.Error(), "SERVER_NAME is required")
}

func TestValidateEnv_ShortSecret(t *testing.T) {
	clearEnv(t)
	os.Setenv("JWT_SECRET", "too-short")
	os.Setenv("PORT", "8080")
	os.Setenv("PUBLIC_WS_URL", "wss://party.example.com/ws")
	os.Setenv("PUBLIC_HTTP_URL", "https://party.example.com")
	os.Setenv("SERVER_NAME", "partyline-1")
	defer clearEnv(t)

	_, err := ValidateEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 characters")
}

func TestValidateEnv_InvalidPort(t *testing.T) {
	clearEnv(t)
	os.Setenv("JWT_SECRET", "a-very-long-secret-that-is-valid-32+")
	os.Setenv("PORT", "99999")
	os.Setenv("PUBLIC_WS_URL", "wss://party.example.com/ws")
	os.Setenv("PUBLIC_HTTP_URL", "https://party.example.com")
	os.Setenv("SERVER_NAME", "partyline-1")
	defer clearEnv(t)

	_, err := ValidateEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT must be a valid port number")
}

func TestAllowedOriginsList(t *testing.T) {
	cfg := &Config{AllowedOrigins: "http://a.com,http://b.com"}
	assert.Equal(t, []string{"http://a.com", "http://b.com"}, cfg.AllowedOriginsList())
}
