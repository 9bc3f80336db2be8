package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go test -v --run TestLoadDefaults
func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "wss://stream.binance.com:9443", cfg.Binance.WS.URL)
	assert.Equal(t, 3*time.Second, cfg.Binance.WS.ReconnectDelay)
	assert.Equal(t, 10, cfg.Binance.WS.MaxReconnectAttempts)
	assert.Zero(t, cfg.Binance.WS.MaxReconnectDelay)
	assert.Equal(t, 10000, cfg.Session.MaxTradeBuffer)
	assert.Equal(t, 500, cfg.Session.MaxFootprintHistory)
	assert.Equal(t, 100*time.Millisecond, cfg.Session.ResubscribeGrace)
	assert.Equal(t, "USDT", cfg.Symbols.QuoteAsset)
	assert.False(t, cfg.Postgres.Enabled)
	assert.Equal(t, "dev", cfg.Log.Environment)
}

// go test -v --run TestLoadFileAndEnv
func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
environment: test
server:
  port: 8080
  allowed_origins: ["http://localhost:3000"]
binance:
  ws:
    reconnect_delay: 1s
session:
  max_trade_buffer: 200
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	t.Setenv("SESSION_MAX_TRADE_BUFFER", "300")
	t.Setenv("BINANCE_API_KEY", "k")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, time.Second, cfg.Binance.WS.ReconnectDelay)
	assert.Equal(t, 300, cfg.Session.MaxTradeBuffer)
	assert.Equal(t, "k", cfg.Binance.REST.APIKey)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "test", cfg.Log.Environment)
}

// go test -v --run TestLoadRejectsInvalid
func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("session:\n  max_trade_buffer: 1\n"), 0o644))

	_, err := LoadFrom(dir)
	assert.Error(t, err)
}

// go test -v --run TestPostgresDSN
func TestPostgresDSN(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "flowrelay", SSLMode: "disable", TimeZone: "UTC"}

	dsn, err := cfg.DSN("dev", "")
	require.NoError(t, err)
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=flowrelay sslmode=disable TimeZone=UTC", dsn)

	dsn, err = cfg.DSN("dev", "postgres")
	require.NoError(t, err)
	assert.Contains(t, dsn, "dbname=postgres")
}
