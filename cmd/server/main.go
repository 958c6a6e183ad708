package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/poselab/swinglab/internal/analyzer"
	"github.com/poselab/swinglab/internal/api"
	"github.com/poselab/swinglab/internal/config"
	"github.com/poselab/swinglab/internal/detector"
	"github.com/poselab/swinglab/internal/logging"
	"github.com/poselab/swinglab/internal/metrics"
	"github.com/poselab/swinglab/internal/storage"
	"github.com/poselab/swinglab/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	var st store.Store
	switch cfg.StoreBackend {
	case "memory":
		st = store.NewMemory()
	case "sqlite":
		st, err = store.OpenSQLite(cfg.DatabasePath, logger)
		if err != nil {
			logger.Fatal("failed to open store", zap.Error(err))
		}
	default:
		logger.Fatal("unknown store backend", zap.String("backend", cfg.StoreBackend))
	}
	defer st.Close()

	localStorage, err := storage.NewLocalStorage(cfg.UploadDir)
	if err != nil {
		logger.Fatal("failed to initialize storage", zap.Error(err))
	}

	app := &api.App{
		Log:       logger,
		Cfg:       cfg,
		Store:     st,
		Storage:   localStorage,
		Detectors: detector.NewRegistry(),
		Analyzers: analyzer.NewRegistry(),
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: api.NewRouter(app),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Port),
			zap.String("upload_dir", cfg.UploadDir),
			zap.String("store", cfg.StoreBackend),
			zap.Int64("max_upload_size", cfg.MaxUploadSize))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown failed", zap.Error(err))
	}
}
