package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after tests
	originalEnv := map[string]string{
		"VECTORCRAFT_APP_NAME":                os.Getenv("VECTORCRAFT_APP_NAME"),
		"VECTORCRAFT_APP_ENV":                 os.Getenv("VECTORCRAFT_APP_ENV"),
		"VECTORCRAFT_APP_PORT":                os.Getenv("VECTORCRAFT_APP_PORT"),
		"VECTORCRAFT_DATABASE_DRIVER":         os.Getenv("VECTORCRAFT_DATABASE_DRIVER"),
		"VECTORCRAFT_DATABASE_PATH":           os.Getenv("VECTORCRAFT_DATABASE_PATH"),
		"VECTORCRAFT_DATABASE_HOST":           os.Getenv("VECTORCRAFT_DATABASE_HOST"),
		"VECTORCRAFT_DATABASE_PASSWORD":       os.Getenv("VECTORCRAFT_DATABASE_PASSWORD"),
		"VECTORCRAFT_DATABASE_SSLMODE":        os.Getenv("VECTORCRAFT_DATABASE_SSLMODE"),
		"VECTORCRAFT_DATABASE_MAX_OPEN_CONNS": os.Getenv("VECTORCRAFT_DATABASE_MAX_OPEN_CONNS"),
		"VECTORCRAFT_DATABASE_MAX_IDLE_CONNS": os.Getenv("VECTORCRAFT_DATABASE_MAX_IDLE_CONNS"),
		"VECTORCRAFT_JWT_ENABLED":             os.Getenv("VECTORCRAFT_JWT_ENABLED"),
		"VECTORCRAFT_JWT_SECRET":              os.Getenv("VECTORCRAFT_JWT_SECRET"),
		"VECTORCRAFT_MONITOR_ENABLED":         os.Getenv("VECTORCRAFT_MONITOR_ENABLED"),
		"VECTORCRAFT_OPTIMIZER_INTERVAL":      os.Getenv("VECTORCRAFT_OPTIMIZER_INTERVAL"),
		"VECTORCRAFT_OPTIMIZER_MAX_CONCURRENT": os.Getenv("VECTORCRAFT_OPTIMIZER_MAX_CONCURRENT"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "vectorcraft-tuner", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8090", cfg.App.Port)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, "vectorcraft.db", cfg.Database.Path)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)

		assert.Equal(t, 30*time.Second, cfg.Monitor.CollectionInterval)
		assert.Equal(t, 10000, cfg.Monitor.WindowCapacity)
		assert.Equal(t, 60*time.Second, cfg.Optimizer.Interval)
		assert.Equal(t, time.Hour, cfg.Optimizer.CooldownPeriod)
		assert.Equal(t, 3, cfg.Optimizer.MaxConcurrent)
		assert.InDelta(t, 0.7, cfg.Optimizer.MinConfidence, 1e-9)
		assert.InDelta(t, 0.10, cfg.Optimizer.DegradationThreshold, 1e-9)
		assert.Equal(t, 2, cfg.Optimizer.MaxSideEffects)
		assert.Equal(t, 5*time.Minute, cfg.Optimizer.StabilityWindow)
		assert.Equal(t, 30*time.Minute, cfg.Optimizer.FailureWindow)

		assert.Equal(t, 30*time.Second, cfg.Benchmark.RequestTimeout)
		assert.Equal(t, 50.0, cfg.Benchmark.Score.ResponseTimePenaltyMax)
		assert.Equal(t, 20.0, cfg.Benchmark.Score.ThroughputBonusMax)
		assert.Equal(t, 30.0, cfg.Benchmark.Score.ErrorPenaltyMax)
	})

	t.Run("loads values from environment variables with VECTORCRAFT prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("VECTORCRAFT_APP_NAME", "test-tuner")
		os.Setenv("VECTORCRAFT_APP_PORT", "9000")
		os.Setenv("VECTORCRAFT_DATABASE_DRIVER", "postgres")
		os.Setenv("VECTORCRAFT_DATABASE_HOST", "testdb.local")
		os.Setenv("VECTORCRAFT_DATABASE_MAX_OPEN_CONNS", "50")
		os.Setenv("VECTORCRAFT_DATABASE_MAX_IDLE_CONNS", "10")
		os.Setenv("VECTORCRAFT_OPTIMIZER_INTERVAL", "90s")
		os.Setenv("VECTORCRAFT_OPTIMIZER_MAX_CONCURRENT", "5")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-tuner", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.Equal(t, 90*time.Second, cfg.Optimizer.Interval)
		assert.Equal(t, 5, cfg.Optimizer.MaxConcurrent)
	})

	t.Run("rejects unknown database driver", func(t *testing.T) {
		clearEnv()
		os.Setenv("VECTORCRAFT_DATABASE_DRIVER", "oracle")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.driver")
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv()
		os.Setenv("VECTORCRAFT_DATABASE_MAX_OPEN_CONNS", "10")
		os.Setenv("VECTORCRAFT_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns")
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("zero MaxOpenConns uses default", func(t *testing.T) {
		clearEnv()
		os.Setenv("VECTORCRAFT_DATABASE_MAX_OPEN_CONNS", "0")

		cfg, err := Load()
		require.NoError(t, err)
		// 0 is treated as "not set", so default (25) is used
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	originalEnv := map[string]string{
		"VECTORCRAFT_APP_ENV":                 os.Getenv("VECTORCRAFT_APP_ENV"),
		"VECTORCRAFT_JWT_ENABLED":             os.Getenv("VECTORCRAFT_JWT_ENABLED"),
		"VECTORCRAFT_JWT_SECRET":              os.Getenv("VECTORCRAFT_JWT_SECRET"),
		"VECTORCRAFT_JWT_ADMIN_USERNAME":      os.Getenv("VECTORCRAFT_JWT_ADMIN_USERNAME"),
		"VECTORCRAFT_JWT_ADMIN_PASSWORD_HASH": os.Getenv("VECTORCRAFT_JWT_ADMIN_PASSWORD_HASH"),
		"VECTORCRAFT_DATABASE_DRIVER":         os.Getenv("VECTORCRAFT_DATABASE_DRIVER"),
		"VECTORCRAFT_DATABASE_PASSWORD":       os.Getenv("VECTORCRAFT_DATABASE_PASSWORD"),
		"VECTORCRAFT_DATABASE_SSLMODE":        os.Getenv("VECTORCRAFT_DATABASE_SSLMODE"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("requires admin credential when auth is enabled", func(t *testing.T) {
		clearEnv()
		os.Setenv("VECTORCRAFT_JWT_ENABLED", "true")
		os.Setenv("VECTORCRAFT_JWT_SECRET", "0123456789abcdef0123456789abcdef")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt.admin_username and jwt.admin_password_hash are required")
	})

	t.Run("requires jwt.secret in production when auth is enabled", func(t *testing.T) {
		clearEnv()
		os.Setenv("VECTORCRAFT_APP_ENV", "production")
		os.Setenv("VECTORCRAFT_JWT_ENABLED", "true")
		os.Setenv("VECTORCRAFT_JWT_ADMIN_USERNAME", "admin")
		os.Setenv("VECTORCRAFT_JWT_ADMIN_PASSWORD_HASH", "$2a$10$abcdefghijklmnopqrstuv")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt.secret is required in production")
	})

	t.Run("requires jwt.secret at least 32 characters in production", func(t *testing.T) {
		clearEnv()
		os.Setenv("VECTORCRAFT_APP_ENV", "production")
		os.Setenv("VECTORCRAFT_JWT_ENABLED", "true")
		os.Setenv("VECTORCRAFT_JWT_SECRET", "short-secret")
		os.Setenv("VECTORCRAFT_JWT_ADMIN_USERNAME", "admin")
		os.Setenv("VECTORCRAFT_JWT_ADMIN_PASSWORD_HASH", "$2a$10$abcdefghijklmnopqrstuv")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt.secret must be at least 32 characters")
	})

	t.Run("sqlite production runs need no database password", func(t *testing.T) {
		clearEnv()
		os.Setenv("VECTORCRAFT_APP_ENV", "production")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
	})

	t.Run("requires database.password for postgres in production", func(t *testing.T) {
		clearEnv()
		os.Setenv("VECTORCRAFT_APP_ENV", "production")
		os.Setenv("VECTORCRAFT_DATABASE_DRIVER", "postgres")
		os.Setenv("VECTORCRAFT_DATABASE_SSLMODE", "require")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled for postgres in production", func(t *testing.T) {
		clearEnv()
		os.Setenv("VECTORCRAFT_APP_ENV", "production")
		os.Setenv("VECTORCRAFT_DATABASE_DRIVER", "postgres")
		os.Setenv("VECTORCRAFT_DATABASE_PASSWORD", "secure-password")
		os.Setenv("VECTORCRAFT_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("passes validation with valid postgres production config", func(t *testing.T) {
		clearEnv()
		os.Setenv("VECTORCRAFT_APP_ENV", "production")
		os.Setenv("VECTORCRAFT_DATABASE_DRIVER", "postgres")
		os.Setenv("VECTORCRAFT_DATABASE_PASSWORD", "secure-password")
		os.Setenv("VECTORCRAFT_DATABASE_SSLMODE", "require")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
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
		assert.Contains(t, dsn, "localhost")
		assert.Contains(t, dsn, "5432")
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

		dsn := cfg.DSN()
		// URL-encoded password should be in the DSN
		assert.Contains(t, dsn, "pass%40word%23123")
	})
}
