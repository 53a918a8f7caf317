package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"harambee/internal/amqp"
	"harambee/internal/backend"
	"harambee/internal/cache"
	"harambee/internal/cli"
	"harambee/internal/core"
	apphttp "harambee/internal/http"
	"harambee/internal/log"
	"harambee/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := cli.GracefulShutdown(logger, 30*time.Second, nil)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	store, err := backend.NewFactory(logger).Open(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to open ledger", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close ledger", log.FieldError, err)
		}
	}()

	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		publisher = client
		logger.Info("Publishing ledger events", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP_URL not set, ledger events are not published")
	}

	dashboards := cache.NewLRUCache[core.Dashboard](1, cfg.DashboardCacheTTL)
	svc := services.New(services.Deps{
		Store:          store.Store,
		Publisher:      publisher,
		Logger:         logger,
		SMSPolicy:      cfg.SMSPolicy(),
		ManualPolicy:   cfg.ManualPolicy(),
		Location:       cfg.Location(),
		DashboardCache: dashboards,
	})

	opts := apphttp.Options{
		Logger:             logger,
		Location:           cfg.Location(),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Caches:             []cache.Cleaner{dashboards},
	}
	if store.SQLite != nil {
		opts.Ready = store.SQLite.Ping
	}
	srv := apphttp.NewServer(":"+cfg.Port, svc, opts)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting harambee server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
