// Package app wires the ledger services from configuration
package app

import (
	"context"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/dig"

	"github.com/sheikh-saqib/banking-ledger-engine/internal/config"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/errs"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/events"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/events/kafka"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/events/redis"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/handler/rest"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/ledger"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/limits"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/logging"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/storage/memory"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/storage/sqlstore"
)

// Injector is a function that will inject desired services
// to a target function
type Injector func(function interface{}) error

// Storage is a ledger store with its lifecycle
type Storage interface {
	interfaces.LedgerStore
	Setup(ctx context.Context) error
	Close() error
}

// Publisher is an event publisher that holds a connection
type Publisher interface {
	interfaces.EventPublisher
	Close() error
}

func newStorage(cfg *config.Config) (Storage, error) {
	if cfg.Storage.Driver == config.DriverMemory {
		return memory.NewMemoryLedgerStore(), nil
	}
	dialect, err := sqlstore.ParseDialect(cfg.Storage.Driver)
	if err != nil {
		return nil, err
	}
	db, err := sqlstore.Open(dialect, cfg.Storage.DSN)
	if err != nil {
		return nil, err
	}
	return sqlstore.New(db, sqlstore.WithDialect(dialect)), nil
}

func newPublisher(cfg *config.Config) (Publisher, error) {
	switch cfg.Events.Sink {
	case config.SinkNone:
		return events.Noop{}, nil
	case config.SinkKafka:
		return kafka.NewPublisher(cfg.Events.KafkaBrokers), nil
	case config.SinkRedis:
		return redis.NewPublisher(goredis.NewClient(&goredis.Options{
			Addr:     cfg.Events.RedisAddr,
			Password: cfg.Events.RedisPassword,
		})), nil
	}
	return nil, errs.Configuration("unsupported events sink %q", cfg.Events.Sink)
}

func newLedger(cfg *config.Config, store Storage, policy *limits.Policy, publisher Publisher, logger *logrus.Logger) (*ledger.Ledger, error) {
	return ledger.NewLedger(ledger.Deps{
		Tx:           store,
		Accounts:     ledger.NewAccountLedger(store),
		Recorder:     ledger.NewRecorder(store, nil),
		Journal:      ledger.NewJournalComposer(store, nil),
		Policy:       policy,
		Transactions: store,
		Journals:     store,
		Publisher:    publisher,
	},
		ledger.WithLogger(logger),
		ledger.WithLocation(cfg.Location),
		ledger.WithEventTopic(cfg.Events.Topic()),
	)
}

// BootstrapServices setup di container with all app services
func BootstrapServices(cfg *config.Config) (Injector, error) {
	c := dig.New()

	providers := []interface{}{
		func() *config.Config { return cfg },
		func() *logrus.Logger {
			return logging.New(cfg.LogLevel, cfg.LogFormat, nil)
		},
		newStorage,
		func() (*limits.Policy, error) {
			return limits.NewPolicy(limits.DefaultTable(), cfg.ChargeRate)
		},
		newPublisher,
		newLedger,
		func(l *ledger.Ledger, logger *logrus.Logger) *rest.Handler {
			return rest.NewHandler(l,
				rest.WithLogger(logger),
				rest.WithLocation(cfg.Location),
				rest.WithAllowedOrigins(cfg.AllowedOrigins...),
			)
		},
	}
	for _, provider := range providers {
		if err := c.Provide(provider); err != nil {
			return nil, errors.Wrap(err, "failed to register service")
		}
	}

	return func(function interface{}) error {
		return c.Invoke(function)
	}, nil
}
