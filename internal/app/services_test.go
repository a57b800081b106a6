package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/banking-ledger-engine/internal/config"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/errs"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/handler/rest"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/ledger"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/models"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/storage/memory"
)

func testConfig(driver, dsn string) *config.Config {
	return &config.Config{
		HTTPAddr:        ":0",
		AllowedOrigins:  []string{"*"},
		ShutdownTimeout: time.Second,
		LogLevel:        logrus.ErrorLevel,
		LogFormat:       "json",
		Storage:         config.StorageConfig{Driver: driver, DSN: dsn},
		Events: config.EventsConfig{
			Sink:         config.SinkNone,
			KafkaTopic:   "transaction_completed",
			RedisChannel: "transaction_events",
		},
		ChargeRate: decimal.RequireFromString("0.02"),
		Location:   time.UTC,
	}
}

func TestBootstrapServices(t *testing.T) {
	drivers := []struct {
		name   string
		driver string
		dsn    string
	}{
		{"memory", config.DriverMemory, ""},
		{"sqlite", config.DriverSQLite, ":memory:"},
	}
	for _, d := range drivers {
		t.Run(d.name, func(t *testing.T) {
			injector, err := BootstrapServices(testConfig(d.driver, d.dsn))
			require.NoError(t, err)

			logger, _ := test.NewNullLogger()
			err = injector(func(store Storage, l *ledger.Ledger, h *rest.Handler) error {
				defer store.Close()
				ctx := context.Background()

				require.NoError(t, store.Setup(ctx))
				assert.True(t, errs.Is(l.VerifySystemAccounts(ctx), errs.KindConfiguration))

				require.NoError(t, SeedSystemAccounts(ctx, store, logger))
				require.NoError(t, l.VerifySystemAccounts(ctx))
				assert.NotNil(t, h.Routes())

				require.NoError(t, store.CreateAccount(ctx, &models.Account{
					ID:            "acc-1",
					AccountNumber: "0000000001",
					Balance:       decimal.Zero,
					Currency:      models.USD,
					Tier:          models.Tier1,
					Type:          models.AccountTypeSavings,
				}))
				receipt, err := l.Deposit(ctx, ledger.DepositRequest{
					AccountNumber: "0000000001",
					Amount:        decimal.NewFromInt(25),
					Currency:      models.USD,
				})
				require.NoError(t, err)
				assert.Len(t, receipt.Transactions, 1)

				system, err := store.GetSystemAccount(ctx, nil, models.USD)
				require.NoError(t, err)
				assert.Equal(t, "-25", system.Balance.String())
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestBootstrapServices_Misconfigured(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
		target interface{}
	}{
		{"storage driver", func(cfg *config.Config) { cfg.Storage.Driver = "oracle" }, func(Storage) {}},
		{"events sink", func(cfg *config.Config) { cfg.Events.Sink = "carrier-pigeon" }, func(Publisher) {}},
		{"charge rate", func(cfg *config.Config) { cfg.ChargeRate = decimal.NewFromInt(-1) }, func(*ledger.Ledger) {}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(config.DriverMemory, "")
			tt.mutate(cfg)
			injector, err := BootstrapServices(cfg)
			require.NoError(t, err)
			assert.Error(t, injector(tt.target))
		})
	}
}

func TestBootstrapServices_RedisSink(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(config.DriverMemory, "")
	cfg.Events.Sink = config.SinkRedis
	cfg.Events.RedisAddr = mr.Addr()

	injector, err := BootstrapServices(cfg)
	require.NoError(t, err)
	require.NoError(t, injector(func(p Publisher) error {
		defer p.Close()
		return p.Publish(context.Background(), cfg.Events.Topic(), map[string]string{"kind": "deposit"})
	}))
}

func TestSeedSystemAccounts(t *testing.T) {
	store := memory.NewMemoryLedgerStore()
	logger, hook := test.NewNullLogger()
	ctx := context.Background()

	require.NoError(t, SeedSystemAccounts(ctx, store, logger))
	created := len(hook.AllEntries())
	assert.Equal(t, len(models.Currencies()), created)

	require.NoError(t, SeedSystemAccounts(ctx, store, logger))
	assert.Len(t, hook.AllEntries(), created, "second run creates nothing")

	for i, currency := range models.Currencies() {
		acc, err := store.GetSystemAccount(ctx, nil, currency)
		require.NoError(t, err)
		assert.Equal(t, SystemAccountNumber(i), acc.AccountNumber)
		assert.Equal(t, SystemUserID, acc.UserID)
		assert.Equal(t, models.Tier3, acc.Tier)
		assert.True(t, acc.Balance.IsZero())
	}
}
