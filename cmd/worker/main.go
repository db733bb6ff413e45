package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ams/internal/app"
	"github.com/odyssey-erp/ams/internal/audit"
	"github.com/odyssey-erp/ams/internal/billing"
	jobmetrics "github.com/odyssey-erp/ams/internal/jobs"
	"github.com/odyssey-erp/ams/internal/ledger"
	"github.com/odyssey-erp/ams/internal/notifications"
	"github.com/odyssey-erp/ams/internal/platform/db"
	"github.com/odyssey-erp/ams/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB}
	client := jobs.NewClient(redisOpts)
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()

	metrics := jobmetrics.NewMetrics(nil)
	recorder := audit.NewRecorder(audit.NewRepository(pool), logger)
	notifier := jobs.NewNotifier(client, logger)

	notificationsService := notifications.NewService(notifications.NewRepository(pool), logger)
	billingService := billing.NewService(billing.NewRepository(pool), recorder, notifier, logger)
	ledgerService := ledger.NewService(ledger.NewRepository(pool), recorder, logger)

	notificationJob := &jobs.NotificationJob{Store: notificationsService, Logger: logger, Metrics: metrics}
	overdueJob := &jobs.OverdueScanJob{Billing: billingService, Logger: logger, Metrics: metrics}
	integrityJob := &jobs.LedgerIntegrityJob{Ledgers: ledgerService, Logger: logger, Metrics: metrics}

	overdueTask, err := jobs.NewOverdueScanTask("")
	if err != nil {
		logger.Error("build overdue scan task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskNotificationDeliver, Handler: notificationJob.Handle},
			{Type: jobs.TaskBillingOverdueScan, Handler: overdueJob.Handle},
			{Type: jobs.TaskLedgerIntegrity, Handler: integrityJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.OverdueScanCron, Task: overdueTask, Options: []asynq.Option{asynq.Queue(jobs.QueueDefault)}},
			{Spec: "30 3 * * 0", Task: jobs.NewLedgerIntegrityTask(), Options: []asynq.Option{asynq.Queue(jobs.QueueDefault)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.Int("concurrency", cfg.WorkerConcurrency), slog.String("overdue_cron", cfg.OverdueScanCron))
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
