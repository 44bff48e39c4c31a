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

	"github.com/presenta/presenta/internal/app"
	"github.com/presenta/presenta/internal/attendance"
	"github.com/presenta/presenta/internal/holiday"
	"github.com/presenta/presenta/internal/platform/cache"
	"github.com/presenta/presenta/internal/platform/db"
	"github.com/presenta/presenta/internal/shared"
	"github.com/presenta/presenta/jobs"
	"github.com/presenta/presenta/report"
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

	// The roster cache degrades to direct reads when Redis is down.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, roster cache disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	serviceCfg := attendance.ServiceConfig{
		FoodStampMinutes: cfg.FoodStampMinutes,
		SourceTimeout:    cfg.SourceTimeout,
		SyncWorkers:      cfg.SyncWorkers,
	}

	repo := attendance.NewRepository(pool)
	auditLogger := shared.NewAuditLogger(pool)
	service := attendance.NewService(repo, auditLogger, logger, serviceCfg)
	projector := attendance.NewProjector(repo, holiday.Czech{}, nil, serviceCfg)
	roster := attendance.NewRosterCache(redisClient, cfg.RosterCacheTTL)
	pdfClient := report.NewClient(cfg.GotenbergURL)

	attendanceHandler := attendance.NewHandler(logger, service, projector, roster, pdfClient)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		AttendanceHandler: attendanceHandler,
		JobHandler:        jobHandler,
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
