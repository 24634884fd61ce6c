package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureUserConfigSeedsAndPreserves(t *testing.T) {
	tmp := t.TempDir()

	defaultPath := filepath.Join(tmp, "default.yml")
	require.NoError(t, os.WriteFile(defaultPath, []byte("app:\n  port: 8787\n"), 0o644))

	// The data dir does not exist yet; bootstrap must create it.
	dataDir := filepath.Join(tmp, "data")
	userPath, err := EnsureUserConfig(dataDir, defaultPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dataDir, "config.yml"), userPath)

	seeded, err := os.ReadFile(userPath)
	require.NoError(t, err)
	assert.Equal(t, "app:\n  port: 8787\n", string(seeded))

	// Operator edits survive subsequent runs.
	require.NoError(t, os.WriteFile(userPath, []byte("app:\n  port: 9999\n"), 0o644))
	again, err := EnsureUserConfig(dataDir, defaultPath)
	require.NoError(t, err)
	assert.Equal(t, userPath, again)

	kept, err := os.ReadFile(userPath)
	require.NoError(t, err)
	assert.Equal(t, "app:\n  port: 9999\n", string(kept))
}

func TestEnsureUserConfigMissingDefault(t *testing.T) {
	tmp := t.TempDir()
	_, err := EnsureUserConfig(tmp, filepath.Join(tmp, "nope.yml"))
	assert.Error(t, err)
}
