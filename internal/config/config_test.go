package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name        string
		configData  string
		envVars     map[string]string
		expectError bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name: "Valid config file",
			configData: `
apiPort: 8080
database:
  type: sqlite
  path: /tmp/finsec.db
auth:
  jwtSecret: file-secret
  tokenTTL: 30m
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.APIPort)
				assert.Equal(t, "/tmp/finsec.db", cfg.Database.Path)
				assert.Equal(t, "file-secret", cfg.Auth.JWTSecret)
				assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
				assert.Equal(t, 7*24*time.Hour, cfg.Auth.SessionTTL)
			},
		},
		{
			name:        "Invalid port type",
			configData:  "apiPort: notanumber\n",
			expectError: true,
		},
		{
			name:        "Unsupported database",
			configData:  "database:\n  type: oracle\n",
			expectError: true,
		},
		{
			name:       "Environment variables override",
			configData: "apiPort: 8080\n",
			envVars: map[string]string{
				"APIPORT":        "9090",
				"AUTH_JWTSECRET": "env-secret",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.APIPort)
				assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
			},
		},
		{
			name:        "Missing secret outside dev",
			configData:  "env: prod\n",
			expectError: true,
		},
		{
			name:        "Receipts without bucket",
			configData:  "receipts:\n  enabled: true\n",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.configData)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := LoadConfig(path)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoadConfigFileNotFoundUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nonexistent.yml"))
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.APIPort)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Len(t, cfg.Auth.JWTSecret, 64)
	assert.True(t, cfg.Auth.EphemeralSecret)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.True(t, cfg.IsDev())
}

func TestMissingSecretError(t *testing.T) {
	for _, env := range []string{"prod", "staging"} {
		t.Run(env, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, "env: "+env+"\n"))
			assert.ErrorIs(t, err, ErrMissingJWTSecret)
		})
	}
}

func TestMissingSecretInDevIsRandomPerLoad(t *testing.T) {
	path := writeConfig(t, "apiPort: 5000\n")

	first, err := LoadConfig(path)
	require.NoError(t, err)
	second, err := LoadConfig(path)
	require.NoError(t, err)

	assert.True(t, first.IsDev())
	assert.True(t, first.Auth.EphemeralSecret)
	assert.Len(t, first.Auth.JWTSecret, 64)
	assert.NotEqual(t, first.Auth.JWTSecret, second.Auth.JWTSecret)
}

func TestConfiguredSecretIsNotEphemeral(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "auth:\n  jwtSecret: file-secret\n"))
	require.NoError(t, err)
	assert.Equal(t, "file-secret", cfg.Auth.JWTSecret)
	assert.False(t, cfg.Auth.EphemeralSecret)
}

func TestAddress(t *testing.T) {
	cfg := Config{APIPort: 8081}
	assert.Equal(t, "0.0.0.0:8081", cfg.Address())
}
