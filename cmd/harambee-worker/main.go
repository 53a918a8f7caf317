package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"harambee/internal/amqp"
	"harambee/internal/backend"
	"harambee/internal/cli"
	"harambee/internal/log"
	"harambee/internal/sheets/google"
	"harambee/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Worker configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Starting harambee-worker")
	ctx := cli.GracefulShutdown(logger, 30*time.Second, nil)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	store, err := backend.NewFactory(logger).Open(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to open SQLite ledger", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	sheet, err := google.New(ctx, google.Config{
		SpreadsheetID:     cfg.GoogleSpreadsheetID,
		TransactionsSheet: cfg.GoogleSheetName,
		ExpensesSheet:     cfg.GoogleExpenseSheetName,
		CredentialsJSON:   cfg.GoogleServiceAccountJSON,
		CredentialsFile:   cfg.GoogleServiceAccountFile,
		Location:          cfg.Location(),
		RequestTimeout:    cfg.GoogleRequestTimeout,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	syncWorker := worker.NewSyncWorker(store.SQLite, sheet, cfg.SyncBatchSize, logger)

	// Rows recorded while the worker was down have no event waiting.
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Startup sync check failed", log.FieldError, err)
	}

	replayer := worker.NewReplayer(syncWorker, worker.ReplayConfig{PollInterval: cfg.SyncInterval})
	if err := replayer.Start(ctx); err != nil {
		logger.Error("Failed to start replayer", log.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := client.Consume(gctx, syncWorker.HandleEvent)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return replayer.Stop(stopCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
