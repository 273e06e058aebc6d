package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/danielsussa/foxbit-rest-v3/internal/foxbit"
	"github.com/danielsussa/foxbit-rest-v3/internal/signer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"API_KEY", "API_SECRET", "FOXBIT_API_KEY", "FOXBIT_API_SECRET",
		"BASE_URL", "HEADER_PREFIX", "LOG_LEVEL", "PLAN_FILE", "DB_FOLDER",
		"GATEWAY_ADDR", "GATEWAY_SHARED_KEY", "STREAM_URL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		clearEnv(t)
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		require.NoError(t, err)

		assert.Equal(t, foxbit.DefaultBaseURL, cfg.BaseURL)
		assert.Equal(t, "X-", cfg.HeaderPrefix)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, DefaultStreamURL, cfg.StreamURL)
		assert.Equal(t, DefaultGatewayAddr, cfg.GatewayAddr)
	})

	t.Run("environment wins and fallbacks apply", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("FOXBIT_API_KEY", "legacy-key")
		t.Setenv("API_SECRET", "secret")
		t.Setenv("HEADER_PREFIX", "X-FB-")

		cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		require.NoError(t, err)

		assert.Equal(t, "legacy-key", cfg.APIKey)
		assert.Equal(t, "secret", cfg.APISecret)
		assert.Equal(t, "X-FB-", cfg.HeaderPrefix)
		assert.NoError(t, cfg.Validate())
		assert.Equal(t, signer.Credentials{Key: "legacy-key", Secret: "secret"}, cfg.Credentials())
	})

	t.Run("env file", func(t *testing.T) {
		clearEnv(t)
		os.Unsetenv("API_KEY")
		os.Unsetenv("API_SECRET")
		path := filepath.Join(t.TempDir(), "test.env")
		require.NoError(t, os.WriteFile(path, []byte("API_KEY=file-key\nAPI_SECRET=file-secret\n"), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "file-key", cfg.APIKey)
		assert.Equal(t, "file-secret", cfg.APISecret)

		os.Unsetenv("API_KEY")
		os.Unsetenv("API_SECRET")
	})
}

func TestValidate(t *testing.T) {
	var cfgErr *signer.ConfigurationError

	err := Config{APISecret: "s"}.Validate()
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "API_KEY", cfgErr.Name)

	err = Config{APIKey: "k"}.Validate()
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "API_SECRET", cfgErr.Name)

	_, err = Config{APIKey: "k"}.NewApi()
	assert.Error(t, err)

	api, err := Config{APIKey: "k", APISecret: "s", HeaderPrefix: "X-FB-"}.NewApi()
	require.NoError(t, err)
	assert.Equal(t, "X-FB-", api.HeaderPrefix)
}
