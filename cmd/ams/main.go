package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ams/internal/app"
	"github.com/odyssey-erp/ams/internal/audit"
	"github.com/odyssey-erp/ams/internal/auth"
	"github.com/odyssey-erp/ams/internal/billing"
	"github.com/odyssey-erp/ams/internal/ledger"
	"github.com/odyssey-erp/ams/internal/notifications"
	"github.com/odyssey-erp/ams/internal/observability"
	"github.com/odyssey-erp/ams/internal/platform/cache"
	"github.com/odyssey-erp/ams/internal/platform/db"
	"github.com/odyssey-erp/ams/internal/rbac"
	"github.com/odyssey-erp/ams/internal/reports"
	"github.com/odyssey-erp/ams/internal/transactions"
	"github.com/odyssey-erp/ams/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Warn("redis unavailable, report export cache disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("asynq inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	rbacMiddleware := rbac.Middleware{Logger: logger}
	notifier := jobs.NewNotifier(jobClient, logger)

	auditRepo := audit.NewRepository(pool)
	recorder := audit.NewRecorder(auditRepo, logger)
	auditService := audit.NewService(auditRepo)

	ledgerService := ledger.NewService(ledger.NewRepository(pool), recorder, logger)
	ledgerService.WithMetrics(metrics)

	billingService := billing.NewService(billing.NewRepository(pool), recorder, notifier, logger)
	billingService.WithMetrics(metrics)

	transactionsService := transactions.NewService(transactions.NewRepository(pool), recorder, logger)

	var reportCache *reports.Cache
	if redisClient != nil {
		reportCache = reports.NewCache(redisClient, cfg.ReportCacheTTL, metrics)
	}
	reportsService := reports.NewService(reports.NewRepository(pool), reportCache, recorder, logger)
	reportsService.WithMetrics(metrics)

	notificationsService := notifications.NewService(notifications.NewRepository(pool), logger)

	router := app.NewRouter(app.RouterParams{
		Logger:   logger,
		Config:   cfg,
		Verifier: auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL),
		RBAC:     rbacMiddleware,
		Metrics:  metrics,

		LedgerHandler:        ledger.NewHandler(logger, ledgerService, rbacMiddleware),
		BillingHandler:       billing.NewHandler(logger, billingService, rbacMiddleware),
		TransactionsHandler:  transactions.NewHandler(logger, transactionsService, rbacMiddleware),
		ReportsHandler:       reports.NewHandler(logger, reportsService, rbacMiddleware),
		AuditHandler:         audit.NewHandler(logger, auditService, rbacMiddleware),
		NotificationsHandler: notifications.NewHandler(logger, notificationsService, rbacMiddleware),
		JobHandler:           jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
