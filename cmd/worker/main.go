package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Drak-01/stock-saas-sub001/internal/app"
	"github.com/Drak-01/stock-saas-sub001/internal/masterdata/products"
	"github.com/Drak-01/stock-saas-sub001/internal/masterdata/warehouses"
	"github.com/Drak-01/stock-saas-sub001/internal/observability"
	"github.com/Drak-01/stock-saas-sub001/internal/platform/cache"
	"github.com/Drak-01/stock-saas-sub001/internal/platform/db"
	"github.com/Drak-01/stock-saas-sub001/internal/shared"
	"github.com/Drak-01/stock-saas-sub001/internal/stock"
	"github.com/Drak-01/stock-saas-sub001/jobs"
)

func main() {
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

	activityRecorder := shared.NewActivityRecorder(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	warehouseRepo := warehouses.NewRepository(pool)
	warehouseService := warehouses.NewService(warehouseRepo, activityRecorder)

	productRepo := products.NewRepository(pool)
	costResolver := products.NewCostResolver(productRepo)

	stockRepo := stock.NewRepository(pool)
	stockService := stock.NewService(stockRepo, warehouseService, costResolver, activityRecorder)
	stockService.SetMovementObserver(metrics)

	valuationCache := cache.NewValuationCache(redisClient, stockService, cfg.ValuationCacheTTL)

	revalHandler := jobs.NewRevaluationHandler(productRepo, valuationCache, logger, metrics)
	retentionHandler := jobs.NewRetentionHandler(idempotencyStore, pool, logger, metrics)

	revalTask, err := jobs.NewStockRevaluationTask(time.Now().UTC())
	if err != nil {
		logger.Error("build revaluation task", slog.Any("error", err))
		os.Exit(1)
	}
	idemTask, err := jobs.NewIdempotencyCleanupTask(cfg.IdempotencyRetention)
	if err != nil {
		logger.Error("build idempotency cleanup task", slog.Any("error", err))
		os.Exit(1)
	}
	activityTask, err := jobs.NewActivityCleanupTask(cfg.ActivityRetention)
	if err != nil {
		logger.Error("build activity cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskStockRevaluation, Handler: revalHandler.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: retentionHandler.HandleIdempotency},
			{Type: jobs.TaskActivityCleanup, Handler: retentionHandler.HandleActivity},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "15 1 * * *", Task: revalTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "45 1 * * *", Task: idemTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 2 * * 0", Task: activityTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
