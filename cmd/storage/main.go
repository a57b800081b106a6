package main

import (
	"context"
	"flag"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/sheikh-saqib/banking-ledger-engine/internal/app"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/config"
)

var cliArgs struct {
	cmd string
}

func init() {
	flag.StringVar(&cliArgs.cmd, "cmd", "", "Command to run. Available commands: setup, seed")

	flag.Parse()
}

func showHelpAndExit() {
	flag.PrintDefaults()
	os.Exit(1)
}

func main() {
	if cliArgs.cmd == "" {
		showHelpAndExit()
	}
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load app config")
	}

	injector, err := app.BootstrapServices(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("failed to bootstrap services")
	}

	var run func(logger *logrus.Logger, store app.Storage) error
	switch cliArgs.cmd {
	case "setup":
		run = func(logger *logrus.Logger, store app.Storage) error {
			defer store.Close()
			if err := store.Setup(ctx); err != nil {
				return err
			}
			logger.Info("storage schema is up to date")
			return nil
		}
	case "seed":
		run = func(logger *logrus.Logger, store app.Storage) error {
			defer store.Close()
			return app.SeedSystemAccounts(ctx, store, logger)
		}
	default:
		showHelpAndExit()
	}

	if err := injector(run); err != nil {
		logrus.WithError(err).Fatalf("%s failed", cliArgs.cmd)
	}
}
