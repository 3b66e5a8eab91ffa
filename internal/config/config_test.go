package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "http://localhost:8080", cfg.Monitor.GatewayURL)
	assert.Equal(t, 5*time.Second, cfg.Monitor.PollInterval)
	assert.Equal(t, "EUR", cfg.Monitor.BaseCurrency)
	assert.Equal(t, 10, cfg.Monitor.MaxSignals)
	assert.Equal(t, 20, cfg.Gateway.MaxTrades)
	assert.False(t, cfg.Database.Enabled)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
log_level: debug
monitor:
  poll_interval: 10s
  base_currency: usd
gateway:
  wallets:
    - symbol: BTC
      name: Bitcoin
      balance: 0.5
      entry_price: 60000
      shadow_tp: 72000
database:
  host: db
  port: 5433
  user: u
  password: p
  dbname: journal
exchanges:
  kraken:
    enabled: true
    pairs: ["BTC/EUR"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("MONITOR_REQUEST_TIMEOUT", "2s")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.Monitor.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.Monitor.RequestTimeout)
	assert.Equal(t, "USD", cfg.Monitor.BaseCurrency)
	require.Len(t, cfg.Gateway.Wallets, 1)
	assert.Equal(t, 72000.0, cfg.Gateway.Wallets[0].ShadowTP)
	assert.Equal(t, "postgres://u:p@db:5433/journal", cfg.Database.DSN())
	assert.True(t, cfg.Exchanges["kraken"].Enabled)
	assert.Equal(t, []string{"BTC/EUR"}, cfg.Exchanges["kraken"].Pairs)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("monitor:\n  poll_interval: 0s\n"), 0o600))

	_, err := LoadConfig(dir)
	assert.Error(t, err)
}

func TestConfig_Level(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, Config{LogLevel: "DEBUG"}.Level())
	assert.Equal(t, slog.LevelWarn, Config{LogLevel: "warn"}.Level())
	assert.Equal(t, slog.LevelInfo, Config{LogLevel: "verbose"}.Level())
}
