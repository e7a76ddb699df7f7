package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProgramID = "Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS"

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("ESCROW_PROGRAM_ID", testProgramID)
	t.Setenv("APP_ENV", "development")

	cfg, err := fromEnv()
	require.NoError(t, err)

	assert.Equal(t, NetworkDevnet, cfg.SolanaNetwork)
	assert.False(t, cfg.IsProductionTier())
	assert.Equal(t, 30*time.Second, cfg.ConfigCacheTTL)
	assert.Equal(t, time.Minute, cfg.ExpirySweepCooldown)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.Len(t, cfg.AllowedOrigins, 2)
}

func TestFromEnv_ProductionRequiresSecrets(t *testing.T) {
	t.Setenv("ESCROW_PROGRAM_ID", testProgramID)
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "short")

	_, err := fromEnv()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	_, err = fromEnv()
	assert.Error(t, err, "без CORS_ALLOWED_ORIGINS")

	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, ")
	t.Setenv("SOLANA_NETWORK", NetworkMainnet)
	cfg, err := fromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.AllowedOrigins)
	assert.True(t, cfg.IsProductionTier())
}

func TestFromEnv_Rejects(t *testing.T) {
	t.Setenv("ESCROW_PROGRAM_ID", "")
	_, err := fromEnv()
	assert.Error(t, err)

	t.Setenv("ESCROW_PROGRAM_ID", testProgramID)
	t.Setenv("SOLANA_NETWORK", "moonnet")
	_, err = fromEnv()
	assert.Error(t, err)

	t.Setenv("SOLANA_NETWORK", NetworkDevnet)
	t.Setenv("CONFIG_CACHE_TTL", "soon")
	_, err = fromEnv()
	assert.Error(t, err)
}
