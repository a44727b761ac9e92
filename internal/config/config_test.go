package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"STOCKLINE_HTTP_ADDR", "STOCKLINE_SHUTDOWN_TIMEOUT_MS", "LOG_LEVEL", "LOG_ENCODING",
	"STOCKLINE_DB", "STOCKLINE_DB_MAX_OPEN_CONNS", "STOCKLINE_BUSY_TIMEOUT_MS",
	"OTEL_EXPORTER_OTLP_ENDPOINT", "SERVICE_NAME",
}

// clearEnv unsets every key for the test, restoring them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoadEnvDefaults(t *testing.T) {
	clearEnv(t)
	cfg := LoadEnv()

	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Encoding)
	assert.Equal(t, "stockline.db", cfg.Database.Path)
	assert.Equal(t, 1, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout)
	assert.Empty(t, cfg.Telemetry.OTLPEndpoint)
	assert.Equal(t, "stockline", cfg.Telemetry.ServiceName)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STOCKLINE_DB", "/var/lib/stockline/inv.db")
	t.Setenv("STOCKLINE_DB_MAX_OPEN_CONNS", "4")
	t.Setenv("STOCKLINE_BUSY_TIMEOUT_MS", "250")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")

	cfg := LoadEnv()
	assert.Equal(t, "/var/lib/stockline/inv.db", cfg.Database.Path)
	assert.Equal(t, 4, cfg.Database.MaxOpenConns)
	assert.Equal(t, 250*time.Millisecond, cfg.Database.BusyTimeout)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "collector:4318", cfg.Telemetry.OTLPEndpoint)
}

func TestLoadEnvIgnoresMalformedInts(t *testing.T) {
	clearEnv(t)
	t.Setenv("STOCKLINE_DB_MAX_OPEN_CONNS", "many")

	assert.Equal(t, 1, LoadEnv().Database.MaxOpenConns)
}

func TestLoadReadsDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("STOCKLINE_DB=from-dotenv.db\nSERVICE_NAME=inv\n"), 0o644))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg := Load()
	assert.Equal(t, "from-dotenv.db", cfg.Database.Path)
	assert.Equal(t, "inv", cfg.Telemetry.ServiceName)
}
