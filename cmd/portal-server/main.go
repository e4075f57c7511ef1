package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/scade330/clinic2-portal/internal/api"
	"github.com/scade330/clinic2-portal/internal/config"
	"github.com/scade330/clinic2-portal/internal/db"
	"github.com/scade330/clinic2-portal/internal/directory"
	"github.com/scade330/clinic2-portal/internal/export"
	"github.com/scade330/clinic2-portal/internal/forms"
	"github.com/scade330/clinic2-portal/internal/observability/metrics"
	"github.com/scade330/clinic2-portal/internal/recordapi"
	redisclient "github.com/scade330/clinic2-portal/internal/redis"
	"github.com/scade330/clinic2-portal/internal/session"
	"github.com/scade330/clinic2-portal/internal/transfer"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.Env)
	defer func() { _ = logger.Sync() }()

	logger.Info("portal-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", zap.Error(err))
		}
	}()
	logger.Info("connected to Redis")

	m := metrics.New()

	records, err := recordapi.NewClient(recordapi.Config{
		BaseURL: cfg.RecordAPIURL,
		Timeout: cfg.UpstreamTimeout,
		Metrics: m,
	}, logger)
	if err != nil {
		logger.Fatal("record api client error", zap.Error(err))
	}

	var sessions *session.Client
	if cfg.SessionAPIURL != "" {
		sessions, err = session.NewClient(session.Config{
			BaseURL: cfg.SessionAPIURL,
			Timeout: cfg.UpstreamTimeout,
		})
		if err != nil {
			logger.Fatal("session client error", zap.Error(err))
		}
	} else {
		logger.Warn("SESSION_API_URL unset, authentication disabled")
	}

	sink, err := export.NewFileSink(cfg.ExportDir)
	if err != nil {
		logger.Fatal("export sink error", zap.Error(err))
	}

	formManager := forms.NewManager(records, records, cfg.FormSessionTTL, logger)
	go formManager.RunJanitor(rootCtx, cfg.JanitorInterval)

	router := api.NewRouter(api.RouterConfig{
		Forms:         formManager,
		Directory:     directory.NewView(records, logger),
		Records:       records,
		Prescriptions: records,
		Transfer:      transfer.NewService(records, sink, transfer.NewPgRepository(pgPool), logger),
		Recipients:    transfer.NewRedisRecipientStore(rdb),
		Sessions:      sessions,
		Metrics:       m,
		PgPool:        pgPool,
		Redis:         rdb,
		Logger:        logger,
		Env:           cfg.Env,
		Version:       version,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	logger.Info("portal-server stopped")
}

func newLogger(env string) *zap.Logger {
	var logger *zap.Logger
	var err error
	if env == "prod" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	return logger
}
