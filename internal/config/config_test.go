package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "driveradar.db", cfg.Store.Path)
	assert.Equal(t, ":8787", cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 10, cfg.Server.LoginPerMinute)
	assert.Equal(t, int32(10), cfg.Server.MaxConns)
	assert.Equal(t, int32(2), cfg.Server.MinConns)
	assert.InDelta(t, 90.0, cfg.Scoring.TargetHourly, 0.001)
	assert.InDelta(t, 0.70, cfg.Scoring.CostPerKm, 0.001)
	assert.InDelta(t, 0.10, cfg.Scoring.Tolerance, 0.001)
	assert.InDelta(t, 0.5, cfg.Scoring.RiskPreference, 0.001)
	assert.InDelta(t, 80.0, cfg.Detector.AccuracyMaxM, 0.001)
	assert.Equal(t, int64(25_000), cfg.Detector.StableMs)
	assert.Empty(t, cfg.Zones.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  path: /var/lib/driveradar/data.db
scoring:
  target_hourly: 110
  cost_per_km: 0.85
server:
  addr: ":9090"
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/driveradar/data.db", cfg.Store.Path)
	assert.InDelta(t, 110.0, cfg.Scoring.TargetHourly, 0.001)
	assert.InDelta(t, 0.85, cfg.Scoring.CostPerKm, 0.001)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.InDelta(t, 0.10, cfg.Scoring.Tolerance, 0.001)
	assert.Equal(t, 10, cfg.Server.LoginPerMinute)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  path: file.db
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("DRIVERADAR_STORE_PATH", "env.db")
	t.Setenv("DRIVERADAR_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "env.db", cfg.Store.Path)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("DRIVERADAR_SERVER_ADDR", ":3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.Server.Addr)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for
// validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Path = "driveradar.db"
	cfg.Scoring.TargetHourly = 90
	cfg.Scoring.CostPerKm = 0.70
	cfg.Scoring.Tolerance = 0.10
	cfg.Scoring.RiskPreference = 0.5
	cfg.Detector.AccuracyMaxM = 80
	cfg.Detector.StableMs = 25_000
	cfg.Server.Addr = ":8787"
	cfg.Server.LoginPerMinute = 10
	return cfg
}

func TestValidateCLI_AllPresent(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("cli"))
}

func TestValidateCLI_MissingStore(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Path = ""

	err := cfg.Validate("cli")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.path is required")
}

func TestValidateServe_AllPresent(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.DatabaseURL = "postgres://localhost/driveradar"
	cfg.Server.AdminPassword = "hunter2"

	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateServe_MissingFields(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.database_url is required")
	assert.Contains(t, err.Error(), "server.admin_password is required")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateScoringBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Scoring.TargetHourly = 0
	err := cfg.Validate("cli")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "target_hourly must be > 0")

	cfg.Scoring.TargetHourly = 90
	cfg.Scoring.Tolerance = 1.0
	err = cfg.Validate("cli")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "tolerance must be in [0, 1)")

	cfg.Scoring.Tolerance = 0.10
	cfg.Scoring.RiskPreference = 1.5
	err = cfg.Validate("cli")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "risk_preference must be in [0, 1]")

	cfg.Scoring.RiskPreference = 0.5
	assert.NoError(t, cfg.Validate("cli"))
}

func TestValidateDetectorBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Detector.AccuracyMaxM = 0
	err := cfg.Validate("cli")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accuracy_max_m must be > 0")

	cfg.Detector.AccuracyMaxM = 80
	cfg.Detector.StableMs = -1
	err = cfg.Validate("cli")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "stable_ms must be >= 0")
}
