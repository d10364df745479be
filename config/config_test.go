package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://rpc.moderato.tempo.xyz", cfg.RPCURL)
	assert.Equal(t, "https://explore.tempo.xyz/api", cfg.ExplorerAPIURL)
	assert.Equal(t, "https://sponsor.testnet.tempo.xyz", cfg.FeeSponsorURL)
	assert.Equal(t, uint64(42431), cfg.ChainID)
	assert.Equal(t, 50, cfg.ScanWindow)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.InDelta(t, 0.005, cfg.MaxSlippage, 1e-9)
	assert.Empty(t, cfg.DirectoryURL)
	assert.False(t, cfg.EnableMetrics)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CHECKOUT_RPC_URL", "http://localhost:8545")
	t.Setenv("CHECKOUT_SCAN_WINDOW", "25")
	t.Setenv("CHECKOUT_POLL_INTERVAL", "2s")
	t.Setenv("CHECKOUT_DIRECTORY_URL", "http://localhost:9000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8545", cfg.RPCURL)
	assert.Equal(t, 25, cfg.ScanWindow)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, "http://localhost:9000", cfg.DirectoryURL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("CHECKOUT_RPC_URL", "not a url")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsBadSlippage(t *testing.T) {
	t.Setenv("CHECKOUT_MAX_SLIPPAGE", "1.5")

	_, err := Load()
	require.Error(t, err)
}
