package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/banking-ledger-engine/internal/errs"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/ledger")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, SinkNone, cfg.Events.Sink)
	assert.Equal(t, "transaction_completed", cfg.Events.Topic())
	assert.Equal(t, "0.02", cfg.ChargeRate.String())
	assert.Equal(t, time.UTC, cfg.Location)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "TEXT")
	t.Setenv("EVENTS_SINK", "redis")
	t.Setenv("REDIS_CHANNEL", "ledger")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("CHARGE_RATE", "0.015")
	t.Setenv("LEDGER_TIMEZONE", "Africa/Lagos")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://bank.example")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "ledger", cfg.Events.Topic())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.KafkaBrokers)
	assert.Equal(t, "0.015", cfg.ChargeRate.String())
	assert.Equal(t, "Africa/Lagos", cfg.Location.String())
	assert.Equal(t, []string{"https://bank.example"}, cfg.AllowedOrigins)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"STORAGE_DRIVER": "mongo"}},
		{"missing dsn", map[string]string{"STORAGE_DRIVER": "sqlite"}},
		{"unknown sink", map[string]string{"STORAGE_DRIVER": "memory", "EVENTS_SINK": "rabbit"}},
		{"bad log level", map[string]string{"STORAGE_DRIVER": "memory", "LOG_LEVEL": "loud"}},
		{"bad log format", map[string]string{"STORAGE_DRIVER": "memory", "LOG_FORMAT": "xml"}},
		{"bad charge rate", map[string]string{"STORAGE_DRIVER": "memory", "CHARGE_RATE": "two percent"}},
		{"bad timezone", map[string]string{"STORAGE_DRIVER": "memory", "LEDGER_TIMEZONE": "Mars/Olympus"}},
		{"bad shutdown timeout", map[string]string{"STORAGE_DRIVER": "memory", "SHUTDOWN_TIMEOUT": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.True(t, errs.Is(err, errs.KindConfiguration), "got %v", err)
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("STORAGE_DRIVER=memory\nHTTP_ADDR=:9999\n"), 0o600))
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("HTTP_ADDR", "")
	// godotenv does not override variables that are already set
	os.Unsetenv("STORAGE_DRIVER")
	os.Unsetenv("HTTP_ADDR")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
}

func TestLoad_MissingDotEnvIsFine(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}
