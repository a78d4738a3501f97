package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm/logger"

	"github.com/codyseavey/cardvault/internal/api"
	"github.com/codyseavey/cardvault/internal/auth"
	"github.com/codyseavey/cardvault/internal/config"
	"github.com/codyseavey/cardvault/internal/database"
	"github.com/codyseavey/cardvault/internal/services"
	"github.com/codyseavey/cardvault/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zl, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	sugar := zl.Sugar()
	defer func() {
		_ = zl.Sync()
	}()

	logLevel := logger.Warn
	if !cfg.IsProduction() {
		logLevel = logger.Info
	}
	db, err := database.Open(cfg.DBDriver, cfg.DatabaseDSN, logLevel, sugar.Named("database"))
	if err != nil {
		sugar.Fatalw("failed to initialize database", "driver", cfg.DBDriver, "error", err)
	}

	authService, err := auth.NewService(db, cfg.AuthSecret, cfg.SessionTTL, cfg.SessionCacheSize, sugar.Named("auth"))
	if err != nil {
		sugar.Fatalw("failed to initialize auth", "error", err)
	}
	if cfg.AuthSecret == "dev-secret-key" && cfg.IsProduction() {
		sugar.Warnw("AUTH_SECRET is not set; using the development secret")
	}

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	objects, err := newObjectStore(ctx, cfg)
	if err != nil {
		sugar.Fatalw("failed to initialize object storage", "backend", cfg.StorageBackend, "error", err)
	}

	// Snapshot service for daily value tracking
	snapshotService := services.NewSnapshotService(db, sugar.Named("snapshots"), cfg.SnapshotHour, cfg.SnapshotWorkers)
	go func() {
		for {
			func() {
				defer func() {
					if r := recover(); r != nil {
						sugar.Errorw("panic in snapshot service, restarting in 30 seconds", "panic", r)
					}
				}()
				snapshotService.Start(ctx)
			}()

			select {
			case <-ctx.Done():
				return // Graceful shutdown
			case <-time.After(30 * time.Second):
			}
		}
	}()

	router := api.SetupRouter(api.Dependencies{
		DB:                 db,
		Auth:               authService,
		Objects:            objects,
		Snapshots:          snapshotService,
		Logger:             sugar.Named("http"),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sugar.Infow("starting server", "port", cfg.Port, "db_driver", cfg.DBDriver, "storage", cfg.StorageBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalw("server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	sugar.Infow("shutting down server")

	// Stop background workers
	cancel()

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("server forced to shutdown", "error", err)
	}

	sugar.Infow("server exited")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func newObjectStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	if cfg.StorageBackend == "s3" {
		return storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
		})
	}
	return storage.NewDiskStore(cfg.StorageDir)
}
