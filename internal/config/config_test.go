package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.75, cfg.TickerPriceMin)
	assert.Equal(t, 10.0, cfg.TickerPriceMax)
	assert.Equal(t, 2.0, cfg.RRThreshold)
	assert.Equal(t, 30, cfg.TradeConfirmationTimeoutSeconds)
	assert.True(t, cfg.InteractiveTradingEnabled)
	assert.False(t, cfg.AutoTradingEnabled)
}

func TestLoad_RejectsConflictingModes(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTO_TRADING_ENABLED", "true")
	t.Setenv("INTERACTIVE_TRADING_ENABLED", "true")
	_, err := Load()
	assert.Error(t, err)
}

func TestConfirmationTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRADE_CONFIRMATION_TIMEOUT_SECONDS", "45")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 45.0, cfg.ConfirmationTimeout().Seconds())
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DATA_DIR", "AUTO_TRADING_ENABLED", "INTERACTIVE_TRADING_ENABLED",
		"TRADE_CONFIRMATION_TIMEOUT_SECONDS", "MIN_CONFIDENCE_SCORE",
	} {
		os.Unsetenv(k)
	}
}
