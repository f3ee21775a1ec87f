package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SiroccoBreeze/pony-knows-sub001/internal/app"
	"github.com/SiroccoBreeze/pony-knows-sub001/internal/monthlykey"
	"github.com/SiroccoBreeze/pony-knows-sub001/internal/shared"
	"github.com/SiroccoBreeze/pony-knows-sub001/jobs"
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

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	auditLogger := shared.NewAuditLogger(pool)

	keyRepo := monthlykey.NewRepository(pool)
	keyService := monthlykey.NewService(keyRepo, monthlykey.Config{
		Salt:         cfg.MonthlyKeySalt,
		MaxAttempts:  cfg.MonthlyKeyMaxAttempts,
		LockDuration: cfg.MonthlyKeyLockDuration,
	}, logger, auditLogger, nil)

	purgeJob := jobs.NewCredentialPurgeJob(keyService, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskCredentialPurge, Handler: purgeJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			// First of the month, shortly after the key rotates.
			{Spec: "30 0 1 * *", Task: jobs.NewCredentialPurgeTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
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
