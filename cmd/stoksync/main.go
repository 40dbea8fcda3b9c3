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

	"github.com/stoksync/stoksync/internal/app"
	"github.com/stoksync/stoksync/internal/catalog"
	"github.com/stoksync/stoksync/internal/dashboard"
	"github.com/stoksync/stoksync/internal/history"
	"github.com/stoksync/stoksync/internal/issues"
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
		slog.Default().Info("test mode detected, skipping runtime startup")
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
		// The engine tolerates a missing ERP mirror; runs then see
		// empty branches and skip.
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

	feed := syncer.NewFeed(200)
	notifier := syncer.MultiNotifier(syncer.NewLogNotifier(logger), feed)
	engine := syncer.NewEngine(logger, syncer.EngineConfig{
		BatchSize:   cfg.SyncBatchSize,
		SettleDelay: cfg.SyncSettleDelay,
	}, settingsRepo, catalogRepo, clientFactory, issueRepo, historyRepo, notifier, metrics)
	gate := syncer.NewRunGate(redisClient, cfg.SyncRunLockTTL)

	dashboardService := dashboard.NewService(logger, historyRepo, issueRepo, redisClient)

	connectionTester := func(ctx context.Context, mcfg settings.MarketplaceConfig) error {
		base := cfg.MarketplaceBaseURL
		if mcfg.TestMode {
			base = cfg.MarketplaceStagingURL
		}
		return marketplace.NewClient(mcfg, logger, marketplace.WithBaseURL(base)).TestConnection(ctx)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SyncHandler:        syncer.NewHandler(logger, engine, gate, feed),
		IssueHandler:       issues.NewHandler(logger, issueRepo),
		HistoryHandler:     history.NewHandler(logger, historyRepo),
		DashboardHandler:   dashboard.NewHandler(logger, dashboardService),
		SettingsHandler:    settings.NewHandler(logger, settingsRepo, connectionTester),
		CatalogHandler:     catalog.NewHandler(logger, catalogRepo),
		MarketplaceHandler: marketplace.NewHandler(logger, settingsRepo),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
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
