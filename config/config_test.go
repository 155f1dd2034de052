package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/pharmacy-ledger/pharmacy"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "change-me", cfg.Server.JWTSecret)
	assert.Equal(t, pharmacy.DefaultConfig(), cfg.LedgerConfig())
	assert.Len(t, cfg.SeedUsers(), 2)
	assert.NoError(t, cfg.Validate())

	empty, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, cfg, empty)
}

func TestLoad_OverridesAndExpandsEnv(t *testing.T) {
	// GIVEN: A partial file referencing an environment variable
	t.Setenv("PHARMACY_SECRET", "s3cret")
	path := writeConfig(t, `
server:
  port: 9090
  jwt_secret: ${PHARMACY_SECRET}
  token_ttl: 30m
storage:
  db_path: ""
ledger:
  max_medicines: 3
  low_stock_threshold: 5
users:
  - username: owner
    password: pw
    role: admin
`)

	// WHEN: Loading
	cfg, err := Load(path)
	require.NoError(t, err)

	// THEN: Set keys override, unset keys keep their defaults
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.Server.JWTSecret)
	assert.Equal(t, 30*time.Minute, cfg.Server.TokenTTL)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Empty(t, cfg.Storage.DBPath)

	lc := cfg.LedgerConfig()
	assert.Equal(t, 3, lc.Limits.Medicines)
	assert.Equal(t, 50, lc.Limits.Users)
	assert.Equal(t, 5, lc.LowStockThreshold)

	assert.Equal(t, []pharmacy.UserSeed{{Username: "owner", Password: "pw", Role: pharmacy.RoleAdmin}}, cfg.SeedUsers())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "server: [port"},
		{"port out of range", "server:\n  port: 70000"},
		{"zero limit", "ledger:\n  max_transactions: 0"},
		{"negative autosave", "storage:\n  autosave_interval: -1s"},
		{"unknown role", "users:\n  - username: a\n    password: b\n    role: cashier"},
		{"user without password", "users:\n  - username: a\n    role: admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 3000
	cfg.Storage.AutosaveInterval = time.Minute
	cfg.Log.Development = true

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
