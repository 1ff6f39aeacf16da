package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"endpoint_addr_grpc":               "www.example:9000",
		"database_dsn":                     "postgres://auth",
		"secret_key":                       "my_secret_key",
		"access_token_validity_duration":   "10m",
		"session_validity_duration":        "72h",
		"password_reset_validity_duration": 1800000000000,
		"mail_host":                        "smtp.example.com",
		"mail_port":                        2525,
		"frontend_base_url":                "https://app.example.com",
	})

	t.Run("loads from json", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJson(cfg, []string{"-config", pathFlag}))

		assert.Equal(t, "www.example:9000", cfg.EndpointAddrGRPC)
		assert.Equal(t, "postgres://auth", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, 10*time.Minute, cfg.AccessTokenValidityDuration)
		assert.Equal(t, 72*time.Hour, cfg.SessionValidityDuration)
		assert.Equal(t, 30*time.Minute, cfg.PasswordResetValidityDuration)
		assert.Equal(t, "smtp.example.com", cfg.MailHost)
		assert.Equal(t, 2525, cfg.MailPort)
		assert.Equal(t, "https://app.example.com", cfg.FrontendBaseURL)
	})

	t.Run("missing keys keep current values", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJson(cfg, []string{"-c", pathFlag}))

		assert.Equal(t, 24*time.Hour, cfg.CacheValidityDuration)
		assert.Equal(t, 12, cfg.BcryptCost)
		assert.Equal(t, "jwt", cfg.TokenFormat)
	})

	t.Run("env var names the file", func(t *testing.T) {
		t.Setenv(ConfigEnvVar, pathFlag)
		cfg := &Config{}
		require.NoError(t, parseJson(cfg, nil))
		assert.Equal(t, "www.example:9000", cfg.EndpointAddrGRPC)
	})

	t.Run("no config → no changes", func(t *testing.T) {
		cfg := &Config{EndpointAddrGRPC: "defaults:1234", SessionValidityDuration: 3 * time.Minute}
		require.NoError(t, parseJson(cfg, []string{"-a", ":1"}))

		assert.Equal(t, "defaults:1234", cfg.EndpointAddrGRPC)
		assert.Equal(t, 3*time.Minute, cfg.SessionValidityDuration)
	})

	t.Run("invalid JSON → error", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		cfg := &Config{}
		require.Error(t, parseJson(cfg, []string{"-config", bad}))
	})

	t.Run("missing file → error", func(t *testing.T) {
		cfg := &Config{}
		require.Error(t, parseJson(cfg, []string{"-c", filepath.Join(dir, "absent.json")}))
	})
}
