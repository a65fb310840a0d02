package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/umucyo/guarantee-gateway/internal/app"
	"github.com/umucyo/guarantee-gateway/internal/audit"
	audithttp "github.com/umucyo/guarantee-gateway/internal/audit/http"
	"github.com/umucyo/guarantee-gateway/internal/auth"
	"github.com/umucyo/guarantee-gateway/internal/gateway"
	gatewayhttp "github.com/umucyo/guarantee-gateway/internal/gateway/http"
	"github.com/umucyo/guarantee-gateway/internal/observability"
	"github.com/umucyo/guarantee-gateway/internal/operations"
	"github.com/umucyo/guarantee-gateway/internal/platform/cache"
	"github.com/umucyo/guarantee-gateway/internal/platform/db"
	"github.com/umucyo/guarantee-gateway/internal/rbac"
	"github.com/umucyo/guarantee-gateway/internal/soap"
	"github.com/umucyo/guarantee-gateway/internal/telemetry"
	"github.com/umucyo/guarantee-gateway/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping gateway startup")
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
	slog.SetDefault(logger)

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: cfg.OTelServiceName,
		Endpoint:    cfg.OTelEndpoint,
	}, logger)
	if err != nil {
		logger.Error("init tracing", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown", slog.Any("error", err))
		}
	}()

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, grant cache bypassed", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	registry, err := operations.Default()
	if err != nil {
		logger.Error("load operation catalogue", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	rbacStore := rbac.NewStore(pool)
	grants := rbac.NewCachedGrants(rbacStore, redisClient, cfg.GrantCacheTTL, logger)
	guard := rbac.NewGuard(grants, logger)

	auditStore := audit.NewPostgresStore(pool)
	var sink audit.Sink = auditStore
	var jobClient *jobs.Client
	if cfg.AuditAsync {
		jobClient, err = jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			os.Exit(1)
		}
		defer jobClient.Close()
		sink = jobs.NewQueueSink(jobClient, auditStore, logger)
	}
	auditLogger := audit.NewLogger(sink, logger, audit.WithRedaction(cfg.AuditRedact))

	var transport gateway.Transport
	if !cfg.MockRemote {
		client, err := soap.NewClient(soap.Config{
			Endpoint:  cfg.RemoteEndpoint,
			Namespace: cfg.RemoteNamespace,
			Timeout:   cfg.RemoteTimeout,
			Retry: soap.RetryPolicy{
				MaxAttempts:    cfg.RemoteAttempts,
				InitialBackoff: cfg.RemoteBackoff,
				MaxBackoff:     cfg.RemoteMaxBackoff,
			},
		}, soap.WithLogger(logger), soap.WithObserver(metrics))
		if err != nil {
			logger.Error("init soap client", slog.Any("error", err))
			os.Exit(1)
		}
		transport = client
	} else {
		logger.Warn("remote calls are mocked", slog.String("env", cfg.AppEnv))
	}

	dispatcher, err := gateway.NewDispatcher(gateway.Params{
		Registry:  registry,
		Guard:     guard,
		Transport: transport,
		Audit:     auditLogger,
		Logger:    logger,
		Metrics:   metrics,
		Config: gateway.Config{
			Mock:        cfg.MockRemote,
			Credentials: gateway.Credentials{ID: cfg.RemoteID, Password: cfg.RemotePassword},
		},
	})
	if err != nil {
		logger.Error("init dispatcher", slog.Any("error", err))
		os.Exit(1)
	}

	var jobHandler *jobs.Handler
	if cfg.AuditAsync {
		inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer inspector.Close()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Auth:           auth.NewMiddleware(auth.NewService(auth.NewRepository(pool)), logger),
		GatewayHandler: gatewayhttp.NewHandler(logger, dispatcher),
		AuditHandler:   audithttp.NewHandler(logger, auditStore),
		RolesHandler:   rbac.NewHandler(logger, rbacStore),
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.Int("operations", registry.Len()),
			slog.Bool("mock", cfg.MockRemote),
			slog.Bool("audit_async", cfg.AuditAsync))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
