package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/umucyo/guarantee-gateway/internal/app"
	"github.com/umucyo/guarantee-gateway/internal/audit"
	jobmetrics "github.com/umucyo/guarantee-gateway/internal/jobs"
	"github.com/umucyo/guarantee-gateway/internal/platform/db"
	"github.com/umucyo/guarantee-gateway/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	registry := prometheus.NewRegistry()
	auditJob := jobs.NewAuditAppendJob(audit.NewPostgresStore(pool), logger, jobmetrics.NewMetrics(registry))

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAuditAppend, Handler: auditJob.Handle},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if addr := cfg.WorkerMetricsAddr; addr != "" {
		metricsServer := &http.Server{Addr: addr, Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{})}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer metricsServer.Close()
	}

	logger.Info("worker started", slog.String("queue", jobs.QueueAudit))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
