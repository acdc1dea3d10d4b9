package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv(EnvUserID, "")
	t.Setenv(EnvRemoteURL, "https://remote.example.com")
	t.Setenv(EnvTokenURL, "https://token.example.com")

	cfg, err := Load(CLIOverrides{ConfigPath: filepath.Join(t.TempDir(), "missing.toml")})
	require.NoError(t, err)
	assert.Equal(t, DefaultCurrentUserID, cfg.CurrentUserID)
	assert.Equal(t, DefaultTokenSafetyBufferSec, cfg.TokenSafetyBufferSec)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
remote_endpoint = "https://remote.example.com"
token_endpoint = "https://token.example.com"
current_user_id = "alice"
env = "development"
token_safety_buffer_seconds = 120
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(CLIOverrides{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, "alice", cfg.CurrentUserID)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 120, cfg.TokenSafetyBufferSec)
}

func TestEnvOverridesOutrankFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
remote_endpoint = "https://remote.example.com"
token_endpoint = "https://token.example.com"
current_user_id = "alice"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	t.Setenv(EnvUserID, "bob")

	cfg, err := Load(CLIOverrides{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, "bob", cfg.CurrentUserID)
}

func TestCLIOverrideOutranksEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
remote_endpoint = "https://remote.example.com"
token_endpoint = "https://token.example.com"
current_user_id = "alice"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	t.Setenv(EnvUserID, "bob")

	cfg, err := Load(CLIOverrides{ConfigPath: path, UserID: "carol"})
	require.NoError(t, err)
	assert.Equal(t, "carol", cfg.CurrentUserID)
}

func TestValidateRejectsMissingEndpoints(t *testing.T) {
	cfg := Defaults()
	err := Validate(cfg)
	require.Error(t, err)
}
