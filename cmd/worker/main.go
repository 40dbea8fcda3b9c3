package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/stoksync/stoksync/internal/app"
	"github.com/stoksync/stoksync/internal/catalog"
	"github.com/stoksync/stoksync/internal/dashboard"
	"github.com/stoksync/stoksync/internal/history"
	"github.com/stoksync/stoksync/internal/issues"
	jobmetrics "github.com/stoksync/stoksync/internal/jobs"
	"github.com/stoksync/stoksync/internal/marketplace"
	"github.com/stoksync/stoksync/internal/observability"
	"github.com/stoksync/stoksync/internal/platform/cache"
	"github.com/stoksync/stoksync/internal/platform/db"
	"github.com/stoksync/stoksync/internal/settings"
	"github.com/stoksync/stoksync/internal/syncer"
	"github.com/stoksync/stoksync/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	erpPool, err := db.New(ctx, cfg.ERPPGDSN)
	if err != nil {
		logger.Warn("connect erp mirror", slog.Any("error", err))
	} else {
		defer erpPool.Close()
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	settingsRepo := settings.NewRepository(pool)
	catalogRepo := catalog.NewRepository(erpPool, logger)
	issueRepo := issues.NewRepository(pool)
	historyRepo := history.NewRepository(pool)

	clientFactory := func(mcfg settings.MarketplaceConfig) syncer.MarketplaceClient {
		base := cfg.MarketplaceBaseURL
		if mcfg.TestMode {
			base = cfg.MarketplaceStagingURL
		}
		return marketplace.NewClient(mcfg, logger, marketplace.WithBaseURL(base))
	}

	engine := syncer.NewEngine(logger, syncer.EngineConfig{
		BatchSize:   cfg.SyncBatchSize,
		SettleDelay: cfg.SyncSettleDelay,
	}, settingsRepo, catalogRepo, clientFactory, issueRepo, historyRepo, syncer.NewLogNotifier(logger), metrics)
	gate := syncer.NewRunGate(redisClient, cfg.SyncRunLockTTL)

	dashboardService := dashboard.NewService(logger, historyRepo, issueRepo, redisClient)
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())
	syncJob := jobs.NewSyncRunJob(engine, gate, logger, jobMetrics, func() {
		dashboardService.Invalidate(context.Background())
	})

	scheduledTask, err := jobs.NewSyncRunTask(syncer.RunTypeScheduled)
	if err != nil {
		logger.Error("build sync task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSyncRun, Handler: syncJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.SyncCron, Task: scheduledTask, Options: []asynq.Option{asynq.MaxRetry(0)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
