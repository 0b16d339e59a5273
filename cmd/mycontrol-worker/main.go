package main

import (
	"context"
	"os"
	"time"

	"mycontrol/internal/aggregate"
	"mycontrol/internal/amqp"
	"mycontrol/internal/cache"
	"mycontrol/internal/cli"
	"mycontrol/internal/log"
	"mycontrol/internal/services"
	"mycontrol/internal/sheets"
	gsheet "mycontrol/internal/sheets/google"
	"mycontrol/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, "mycontrol-worker")
	logger.Info("Starting mycontrol-worker")

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	engine := aggregate.NewEngine(cfg.Location(), cfg.WorkCategory)
	summaries := services.NewSummaryService(repo, engine)

	caches := cache.NewManager(logger)
	var exporter sheets.ReportExporter
	if cfg.SheetsEnabled() {
		creds, err := cfg.ServiceAccountCredentials()
		if err != nil {
			logger.Error("Failed to read Google credentials", log.FieldError, err)
			os.Exit(1)
		}
		g, err := gsheet.New(context.Background(), cfg.GoogleSpreadsheetID, creds, cfg.ReportSheetPrefix, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets exporter", log.FieldError, err)
			os.Exit(1)
		}
		caches.Register(g.TabCache())
		exporter = g
		logger.Info("Google Sheets exporter initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		exporter = sheets.NewLogExporter(logger)
		logger.Info("Google Sheets disabled - reports will only be logged")
	}
	caches.StartCleanup(10 * time.Minute)

	reports := worker.NewReportWorker(summaries, exporter, cfg.Location(), logger)
	if err := reports.Schedule(cfg.ReportSchedule); err != nil {
		logger.Error("Invalid report schedule", log.FieldError, err)
		os.Exit(1)
	}

	var client *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		client, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
	} else {
		logger.Info("AMQP disabled - reports refresh on schedule only")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		reports.Stop(ctx)
		caches.Stop()
		if client != nil {
			if err := client.Close(); err != nil {
				logger.Error("AMQP close error", log.FieldError, err)
			}
		}
	})

	startupCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	if err := reports.ExportCurrentYear(startupCtx); err != nil {
		logger.Error("Startup export failed", log.FieldError, err)
	}
	cancel()

	reports.Start()

	if client != nil {
		go func() {
			logger.Info("Consuming transaction events", "queue", cfg.AMQPQueue)
			if err := client.ConsumeTransactionEvents(ctx, reports.HandleEvent); err != nil && ctx.Err() == nil {
				logger.Error("Event consumer stopped", log.FieldError, err)
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
