// Package config loads the service configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"io/fs"
	"os"
	"strings"
	"time"
	// LEDGER_TIMEZONE must resolve on hosts without a zoneinfo database
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sheikh-saqib/banking-ledger-engine/internal/errs"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"

	SinkNone  = "none"
	SinkKafka = "kafka"
	SinkRedis = "redis"
)

type StorageConfig struct {
	Driver string
	DSN    string
}

type EventsConfig struct {
	Sink          string
	KafkaBrokers  []string
	KafkaTopic    string
	RedisAddr     string
	RedisPassword string
	RedisChannel  string
}

// Topic is the kafka topic or redis channel events are published to
func (e EventsConfig) Topic() string {
	if e.Sink == SinkRedis {
		return e.RedisChannel
	}
	return e.KafkaTopic
}

type Config struct {
	HTTPAddr        string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
	LogLevel        logrus.Level
	LogFormat       string
	Storage         StorageConfig
	Events          EventsConfig
	ChargeRate      decimal.Decimal
	Location        *time.Location
}

// Load reads the given .env files (".env" when none is given) and then the
// environment. Missing .env files are fine.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "failed to load .env file")
	}
	return FromEnv()
}

// FromEnv builds the config from environment variables only
func FromEnv() (*Config, error) {
	cfg := &Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "json")),
		Storage: StorageConfig{
			Driver: strings.ToLower(getEnv("STORAGE_DRIVER", DriverPostgres)),
			DSN:    getEnv("DATABASE_URL", ""),
		},
		Events: EventsConfig{
			Sink:          strings.ToLower(getEnv("EVENTS_SINK", SinkNone)),
			KafkaBrokers:  getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			KafkaTopic:    getEnv("KAFKA_TOPIC", "transaction_completed"),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisChannel:  getEnv("REDIS_CHANNEL", "transaction_events"),
		},
	}

	var err error
	if cfg.ShutdownTimeout, err = time.ParseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s")); err != nil {
		return nil, errs.Configuration("invalid SHUTDOWN_TIMEOUT: %v", err)
	}
	if cfg.LogLevel, err = logrus.ParseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return nil, errs.Configuration("invalid LOG_LEVEL: %v", err)
	}
	if cfg.ChargeRate, err = decimal.NewFromString(getEnv("CHARGE_RATE", "0.02")); err != nil {
		return nil, errs.Configuration("invalid CHARGE_RATE: %v", err)
	}
	if cfg.Location, err = time.LoadLocation(getEnv("LEDGER_TIMEZONE", "UTC")); err != nil {
		return nil, errs.Configuration("invalid LEDGER_TIMEZONE: %v", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LogFormat {
	case "json", "text":
	default:
		return errs.Configuration("invalid LOG_FORMAT %q", c.LogFormat)
	}

	switch c.Storage.Driver {
	case DriverPostgres, DriverSQLite:
		if c.Storage.DSN == "" {
			return errs.Configuration("DATABASE_URL is required for the %s driver", c.Storage.Driver)
		}
	case DriverMemory:
	default:
		return errs.Configuration("invalid STORAGE_DRIVER %q", c.Storage.Driver)
	}

	switch c.Events.Sink {
	case SinkNone:
	case SinkKafka:
		if len(c.Events.KafkaBrokers) == 0 || c.Events.KafkaTopic == "" {
			return errs.Configuration("KAFKA_BROKERS and KAFKA_TOPIC are required for the kafka sink")
		}
	case SinkRedis:
		if c.Events.RedisAddr == "" || c.Events.RedisChannel == "" {
			return errs.Configuration("REDIS_ADDR and REDIS_CHANNEL are required for the redis sink")
		}
	default:
		return errs.Configuration("invalid EVENTS_SINK %q", c.Events.Sink)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var result []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}
