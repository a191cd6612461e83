package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withCleanDir runs Load from an empty directory so no config.toml is found
func withCleanDir(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		withCleanDir(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "agency-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "agency", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
		assert.True(t, cfg.HTTP.MetricsEnabled)
		assert.Equal(t, 12, cfg.Engine.CommissionHorizonMonths)
		assert.False(t, cfg.Engine.SweepEnabled)
		assert.Equal(t, time.Hour, cfg.Engine.SweepInterval)
		assert.Equal(t, 24*time.Hour, cfg.Engine.IdempotencyTTL)
		assert.Equal(t, IdempotencyBackendMemory, cfg.Engine.IdempotencyBackend)
		assert.False(t, cfg.Telemetry.Enabled)
		assert.Equal(t, 1.0, cfg.Telemetry.SamplingRatio)
		assert.Equal(t, "localhost:4317", cfg.Telemetry.CollectorEndpoint)
		assert.False(t, cfg.Telemetry.MetricsEnabled)
		assert.Equal(t, time.Minute, cfg.Telemetry.MetricsExportInterval)
	})

	t.Run("loads values from environment variables with AGENCY prefix", func(t *testing.T) {
		withCleanDir(t)
		t.Setenv("AGENCY_APP_PORT", "9000")
		t.Setenv("AGENCY_DATABASE_HOST", "db.internal")
		t.Setenv("AGENCY_DATABASE_MAX_OPEN_CONNS", "50")
		t.Setenv("AGENCY_DATABASE_MAX_IDLE_CONNS", "10")
		t.Setenv("AGENCY_HTTP_METRICS_ENABLED", "false")
		t.Setenv("AGENCY_ENGINE_COMMISSION_HORIZON_MONTHS", "6")
		t.Setenv("AGENCY_ENGINE_SWEEP_ENABLED", "true")
		t.Setenv("AGENCY_ENGINE_SWEEP_INTERVAL", "30m")
		t.Setenv("AGENCY_ENGINE_IDEMPOTENCY_BACKEND", "redis")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "db.internal", cfg.Database.Host)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.False(t, cfg.HTTP.MetricsEnabled)
		assert.Equal(t, 6, cfg.Engine.CommissionHorizonMonths)
		assert.True(t, cfg.Engine.SweepEnabled)
		assert.Equal(t, 30*time.Minute, cfg.Engine.SweepInterval)
		assert.Equal(t, IdempotencyBackendRedis, cfg.Engine.IdempotencyBackend)
	})

	t.Run("reads config.toml", func(t *testing.T) {
		withCleanDir(t)
		content := "[engine]\ncommission_horizon_months = 24\nsweep_months_ahead = 3\n\n[log]\nformat = \"json\"\n"
		require.NoError(t, os.WriteFile(filepath.Join(".", "config.toml"), []byte(content), 0o600))

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 24, cfg.Engine.CommissionHorizonMonths)
		assert.Equal(t, 3, cfg.Engine.SweepMonthsAhead)
		assert.Equal(t, "json", cfg.Log.Format)
	})

	t.Run("rejects idle connections above the open limit", func(t *testing.T) {
		withCleanDir(t)
		t.Setenv("AGENCY_DATABASE_MAX_OPEN_CONNS", "5")
		t.Setenv("AGENCY_DATABASE_MAX_IDLE_CONNS", "10")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})
}

func TestValidate_Engine(t *testing.T) {
	tests := []struct {
		name    string
		set     map[string]any
		wantErr string
	}{
		{name: "horizon too large", set: map[string]any{"engine.commission_horizon_months": 500}, wantErr: "commission_horizon_months"},
		{name: "negative months ahead", set: map[string]any{"engine.sweep_months_ahead": -1}, wantErr: "sweep_months_ahead"},
		{name: "sweep interval too short", set: map[string]any{"engine.sweep_enabled": true, "engine.sweep_interval": "10s"}, wantErr: "sweep_interval"},
		{name: "unknown idempotency backend", set: map[string]any{"engine.idempotency_backend": "memcached"}, wantErr: "idempotency_backend"},
		{name: "sampling ratio above one", set: map[string]any{"telemetry.sampling_ratio": 1.5}, wantErr: "sampling_ratio"},
		{name: "sampling ratio zero", set: map[string]any{"telemetry.sampling_ratio": 0.0}},
		{name: "short interval with sweep disabled", set: map[string]any{"engine.sweep_interval": "10s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			for k, val := range tt.set {
				v.Set(k, val)
			}
			_, err := fromViper(v)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_Production(t *testing.T) {
	base := func() *viper.Viper {
		v := viper.New()
		v.Set("app.env", "production")
		v.Set("database.password", "secure-password")
		v.Set("database.sslmode", "require")
		return v
	}

	t.Run("passes with a complete production config", func(t *testing.T) {
		cfg, err := fromViper(base())
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})

	t.Run("requires database.password", func(t *testing.T) {
		v := base()
		v.Set("database.password", "")
		_, err := fromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL", func(t *testing.T) {
		v := base()
		v.Set("database.sslmode", "disable")
		_, err := fromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "user",
		Password: "pass@word#123",
		DBName:   "agency",
		SSLMode:  "disable",
	}

	dsn := cfg.DSN()
	assert.Contains(t, dsn, "localhost:5432")
	assert.Contains(t, dsn, "/agency")
	assert.Contains(t, dsn, "sslmode=disable")
	assert.Contains(t, dsn, "pass%40word%23123")
}
