package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs Load from an empty directory so no stray config.toml is picked up
func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		isolate(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "entitlement-worker", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "entitlements", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.Empty(t, cfg.Redis.Host)
		assert.Equal(t, 72*time.Hour, cfg.Transfer.DefaultTTL)
		assert.Equal(t, 500, cfg.Transfer.ExpiryBatchSize)
		assert.Equal(t, 15*time.Minute, cfg.Reservation.DefaultTTL)
		assert.Equal(t, 200, cfg.Anomaly.ScanBatchSize)
		assert.Equal(t, time.Minute, cfg.Scheduler.TransferExpiryInterval)
		assert.Equal(t, time.Hour, cfg.Scheduler.AnomalyScanInterval)
		assert.Equal(t, "entitlement-worker", cfg.Telemetry.ServiceName)
		assert.Equal(t, "warn", cfg.Log.GormLevel)
	})

	t.Run("loads values from environment variables with ENTITLEMENT prefix", func(t *testing.T) {
		isolate(t)
		t.Setenv("ENTITLEMENT_APP_NAME", "test-app")
		t.Setenv("ENTITLEMENT_DATABASE_DRIVER", "sqlite")
		t.Setenv("ENTITLEMENT_DATABASE_SQLITE_PATH", "/tmp/test.db")
		t.Setenv("ENTITLEMENT_DATABASE_MAX_OPEN_CONNS", "50")
		t.Setenv("ENTITLEMENT_DATABASE_MAX_IDLE_CONNS", "10")
		t.Setenv("ENTITLEMENT_REDIS_HOST", "cache.local")
		t.Setenv("ENTITLEMENT_TRANSFER_DEFAULT_TTL", "24h")
		t.Setenv("ENTITLEMENT_SCHEDULER_ENABLED", "true")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, "/tmp/test.db", cfg.Database.SQLitePath)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.Equal(t, "cache.local:6379", cfg.Redis.Addr())
		assert.Equal(t, 24*time.Hour, cfg.Transfer.DefaultTTL)
		assert.True(t, cfg.Scheduler.Enabled)
		assert.Equal(t, "test-app", cfg.Telemetry.ServiceName)
	})

	t.Run("reads config.toml from the working directory", func(t *testing.T) {
		isolate(t)
		content := "[transfer]\nexpiry_batch_size = 42\n\n[anomaly]\nscan_batch_size = 7\n"
		require.NoError(t, os.WriteFile("config.toml", []byte(content), 0o600))

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 42, cfg.Transfer.ExpiryBatchSize)
		assert.Equal(t, 7, cfg.Anomaly.ScanBatchSize)
	})

	t.Run("rejects unknown database driver", func(t *testing.T) {
		isolate(t)
		t.Setenv("ENTITLEMENT_DATABASE_DRIVER", "mysql")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.driver")
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		isolate(t)
		t.Setenv("ENTITLEMENT_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("ENTITLEMENT_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("validates sampling ratio range", func(t *testing.T) {
		isolate(t)
		t.Setenv("ENTITLEMENT_TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sampling_ratio")
	})

	t.Run("profiling needs a server address", func(t *testing.T) {
		isolate(t)
		t.Setenv("ENTITLEMENT_PROFILING_ENABLED", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "profiling.server_address")

		t.Setenv("ENTITLEMENT_PROFILING_SERVER_ADDRESS", "http://pyroscope:4040")
		t.Setenv("ENTITLEMENT_TELEMETRY_LOGS_ENABLED", "true")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "entitlement-worker", cfg.Profiling.ApplicationName)
		assert.True(t, cfg.Telemetry.LogsEnabled)
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func(t *testing.T) {
		isolate(t)
		t.Setenv("ENTITLEMENT_APP_ENV", "production")
		t.Setenv("ENTITLEMENT_DATABASE_PASSWORD", "secure-password")
		t.Setenv("ENTITLEMENT_DATABASE_SSLMODE", "require")
	}

	t.Run("passes validation with valid production config", func(t *testing.T) {
		setValidProductionBase(t)
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})

	t.Run("requires database.password in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("ENTITLEMENT_DATABASE_PASSWORD", "")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("ENTITLEMENT_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sslmode")
	})

	t.Run("refuses sqlite in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("ENTITLEMENT_DATABASE_DRIVER", "sqlite")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be postgres in production")
	})

	t.Run("refuses full SQL logging in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("ENTITLEMENT_TELEMETRY_DB_LOG_FULL_SQL", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db_log_full_sql")
	})
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.toml")
	require.NoError(t, os.WriteFile(path, []byte("[app]\nname = \"from-file\"\n"), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.App.Name)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}
		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}
