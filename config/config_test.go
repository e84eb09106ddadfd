package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnvFile() Options { return Options{} }

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(noEnvFile())
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.Equal(t, "Asia/Almaty", cfg.App.Timezone)
	require.NotNil(t, cfg.App.Location)
	assert.Equal(t, StorageMemory, cfg.Storage.Backend)
	assert.Equal(t, 5, cfg.Undo.ExpirySeconds)
	assert.Equal(t, 5*time.Second, cfg.UndoExpiry())
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Empty(t, cfg.HTTP.APIKeyHashes)
	assert.Equal(t, "0 3 * * *", cfg.Scheduler.FeesCron)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("APP_TIMEZONE", "UTC")
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/center")
	t.Setenv("UNDO_EXPIRY_SECONDS", "8")
	t.Setenv("HTTP_API_KEY_HASHES", "h1, h2 ,")
	t.Setenv("DATABASE_QUERY_TIMEOUT", "2s")

	cfg, err := Load(noEnvFile())
	require.NoError(t, err)

	assert.Equal(t, time.UTC.String(), cfg.App.Location.String())
	assert.Equal(t, StoragePostgres, cfg.Storage.Backend)
	assert.Equal(t, 8, cfg.Undo.ExpirySeconds)
	assert.Equal(t, []string{"h1", "h2"}, cfg.HTTP.APIKeyHashes)
	assert.Equal(t, 2*time.Second, cfg.Database.QueryTimeout)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_ADDR=:9999\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("HTTP_ADDR") })

	cfg, err := Load(Options{EnvFile: path})
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
}

func TestLoad_ValidationCollectsErrors(t *testing.T) {
	t.Setenv("APP_TIMEZONE", "Mars/Olympus")
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("UNDO_EXPIRY_SECONDS", "0")

	_, err := Load(noEnvFile())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APP_TIMEZONE")
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "UNDO_EXPIRY_SECONDS")
}

func TestValidate_MemoryNotAllowedInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	_, err := Load(noEnvFile())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORAGE_BACKEND=memory")
}
