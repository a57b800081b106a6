package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/sheikh-saqib/banking-ledger-engine/internal/app"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/config"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/handler/rest"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/ledger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	injector, err := app.BootstrapServices(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("failed to bootstrap services")
	}

	if err := injector(func(
		logger *logrus.Logger,
		store app.Storage,
		publisher app.Publisher,
		l *ledger.Ledger,
		handler *rest.Handler,
	) error {
		return serve(cfg, logger, store, publisher, l, handler)
	}); err != nil {
		logrus.WithError(err).Fatal("server stopped")
	}
}

func serve(
	cfg *config.Config,
	logger *logrus.Logger,
	store app.Storage,
	publisher app.Publisher,
	l *ledger.Ledger,
	handler *rest.Handler,
) error {
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.WithError(err).Warn("failed to close event publisher")
		}
		if err := store.Close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the memory store starts empty every time
	if cfg.Storage.Driver == config.DriverMemory {
		if err := app.SeedSystemAccounts(ctx, store, logger); err != nil {
			return err
		}
	}
	if err := l.VerifySystemAccounts(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler.Routes(),
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":    cfg.HTTPAddr,
			"storage": cfg.Storage.Driver,
			"events":  cfg.Events.Sink,
		}).Info("starting server")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
