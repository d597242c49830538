package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoad_Defaults verifies that default values are used when env vars are missing.
func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("APP_ENV")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("SERVER_PORT")
	os.Unsetenv("REDIS_URL")
	os.Unsetenv("MIRROR_RELAY_URL")

	cfg, err := Load(".")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Empty(t, cfg.Mirror.RelayURL)
	assert.Equal(t, 10, cfg.Mirror.TimeoutSeconds)
	assert.Equal(t, 5, cfg.Mirror.MaxRetries)
	assert.Equal(t, 256, cfg.Mirror.QueueSize)
}

// TestLoad_EnvVars verifies that environment variables override defaults.
func TestLoad_EnvVars(t *testing.T) {
	os.Setenv("APP_ENV", "production")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("SERVER_PORT", "9090")
	os.Setenv("REDIS_URL", "redis://cache.internal:6380/1")
	os.Setenv("MIRROR_RELAY_URL", "https://relay.example.com")
	os.Setenv("MIRROR_MAX_RETRIES", "3")
	defer func() {
		os.Unsetenv("APP_ENV")
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("SERVER_PORT")
		os.Unsetenv("REDIS_URL")
		os.Unsetenv("MIRROR_RELAY_URL")
		os.Unsetenv("MIRROR_MAX_RETRIES")
	}()

	cfg, err := Load(".")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, "redis://cache.internal:6380/1", cfg.Redis.URL)
	assert.Equal(t, "https://relay.example.com", cfg.Mirror.RelayURL)
	assert.Equal(t, 3, cfg.Mirror.MaxRetries)
}
