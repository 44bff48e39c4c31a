package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/presenta/presenta/internal/app"
	"github.com/presenta/presenta/internal/attendance"
	"github.com/presenta/presenta/internal/badge"
	"github.com/presenta/presenta/internal/hr"
	"github.com/presenta/presenta/internal/platform/db"
	"github.com/presenta/presenta/internal/shared"
	"github.com/presenta/presenta/jobs"
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
	if cfg.BadgeDSN == "" || cfg.HRDSN == "" {
		slog.Default().Error("worker requires BADGE_DSN and HR_DSN")
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	badgePool, err := db.New(ctx, cfg.BadgeDSN)
	if err != nil {
		logger.Error("connect badge source", slog.Any("error", err))
		os.Exit(1)
	}
	defer badgePool.Close()

	hrPool, err := db.New(ctx, cfg.HRDSN)
	if err != nil {
		logger.Error("connect hr source", slog.Any("error", err))
		os.Exit(1)
	}
	defer hrPool.Close()

	serviceCfg := attendance.ServiceConfig{
		FoodStampMinutes: cfg.FoodStampMinutes,
		SourceTimeout:    cfg.SourceTimeout,
		SyncWorkers:      cfg.SyncWorkers,
	}

	repo := attendance.NewRepository(pool)
	auditLogger := shared.NewAuditLogger(pool)
	service := attendance.NewService(repo, auditLogger, logger, serviceCfg)

	badgeSource := badge.NewClient(badgePool, logger)
	hrSource := hr.NewClient(hrPool, logger)

	badgeJob := jobs.NewBadgeSyncJob(service, badgeSource, logger)
	contractJob := jobs.NewContractSyncJob(service, hrSource, logger)

	badgeTask, err := jobs.NewBadgeSyncTask(jobs.BadgeSyncPayload{})
	if err != nil {
		logger.Error("build badge sync task", slog.Any("error", err))
		os.Exit(1)
	}
	contractTask, err := jobs.NewContractSyncTask()
	if err != nil {
		logger.Error("build contract sync task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskBadgeSync, Handler: badgeJob.Handle},
			{Type: jobs.TaskContractSync, Handler: contractJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.BadgeSyncCron, Task: badgeTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.ContractSyncCron, Task: contractTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
