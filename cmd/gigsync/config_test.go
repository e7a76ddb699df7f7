package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
	assert.NoError(t, cfg.validate())
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gigsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_url: https://api.example.com/api
token: abc
journal_path: /tmp/j.json
network: mainnet-beta
poll_interval: 5s
max_attempts: 12
`), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/api", cfg.APIURL)
	assert.Equal(t, "abc", cfg.Token)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 12, cfg.MaxAttempts)
	assert.Equal(t, 5, cfg.MaxRetries)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gigsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_attempts: [1"), 0o600))

	_, err := loadConfig(path)
	assert.Error(t, err)
}

func TestConfigPathFromArgs(t *testing.T) {
	assert.Equal(t, "a.yaml", configPathFromArgs([]string{"-config", "a.yaml", "list"}, "d"))
	assert.Equal(t, "b.yaml", configPathFromArgs([]string{"--config=b.yaml"}, "d"))
	assert.Equal(t, "d", configPathFromArgs([]string{"list", "config"}, "d"))
}

func TestEntryFromArgs(t *testing.T) {
	gig := "7d0f3a3e-2a7e-4f5d-9c53-4a0b2b1f9e11"

	e, err := entryFromArgs([]string{"submit_proof", gig, "sig", "https://cdn/1.jpg"})
	require.NoError(t, err)
	require.NotNil(t, e.Proof)
	assert.Equal(t, []string{"https://cdn/1.jpg"}, e.Proof.URLs)

	e, err = entryFromArgs([]string{"publish", gig, "sig"})
	require.NoError(t, err)
	assert.Nil(t, e.Proof)

	_, err = entryFromArgs([]string{"resolve", gig, "sig"})
	assert.Error(t, err)
	_, err = entryFromArgs([]string{"publish", "nope", "sig"})
	assert.Error(t, err)
}
