package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Defaults()
	cfg.RemoteEndpoint = "https://remote.example.com"
	cfg.TokenEndpoint = "https://token.example.com"
	cfg.CurrentUserID = "alice"

	require.NoError(t, Write(path, cfg))

	loaded, err := Load(CLIOverrides{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, "alice", loaded.CurrentUserID)
	assert.Equal(t, "https://remote.example.com", loaded.RemoteEndpoint)
}
