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

	assert.Equal(t, "agencyboard-backend", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "https://api.trello.com/1", cfg.Trello.BaseURL)
	assert.Equal(t, 1000, cfg.Trello.PageSize)
	assert.Equal(t, 3, cfg.Migration.MaxConcurrentBoards)
	assert.Equal(t, 30*time.Second, cfg.Migration.HeartbeatInterval)
	assert.Equal(t, "stub", cfg.Storage.Provider)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("ABOARD_APP_PORT", "9090")
	t.Setenv("ABOARD_MIGRATION_MAX_CONCURRENT_BOARDS", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, 7, cfg.Migration.MaxConcurrentBoards)
}

func TestProductionValidation(t *testing.T) {
	t.Setenv("ABOARD_APP_ENV", "production")

	t.Run("rejects missing jwt secret", func(t *testing.T) {
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("rejects stub storage", func(t *testing.T) {
		t.Setenv("ABOARD_JWT_SECRET", "0123456789abcdef0123456789abcdef")
		t.Setenv("ABOARD_DATABASE_PASSWORD", "secret")
		t.Setenv("ABOARD_DATABASE_SSLMODE", "require")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage.provider")
	})
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "app",
		Password: "p@ss/word",
		DBName:   "agencyboard",
		SSLMode:  "require",
	}
	dsn := d.DSN()
	assert.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "db.internal:5432")
	assert.Contains(t, dsn, "sslmode=require")
	assert.NotContains(t, dsn, "p@ss/word") // escaped
}
