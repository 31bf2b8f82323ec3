package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glowlabs/hangar/internal/backend"
	"github.com/glowlabs/hangar/internal/cache"
	"github.com/glowlabs/hangar/internal/config"
	"github.com/glowlabs/hangar/internal/handler"
	"github.com/glowlabs/hangar/internal/index"
	"github.com/glowlabs/hangar/internal/logger"
	"github.com/glowlabs/hangar/internal/store"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.InitLogger(cfg)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Wire the release backend, index and asset cache
	gh := backend.NewGitHub(cfg, log)
	idx := index.New(gh, cfg.Refresh.Interval, log)

	meta, err := store.NewSQLiteStore(cfg.Cache.Dir, log)
	if err != nil {
		log.Fatal("failed to open cache metadata store", zap.Error(err))
	}
	defer meta.Close()

	assetCache := cache.New(cfg.Cache.Dir, cfg.Cache.MaxSize, cfg.Cache.MaxAge, gh, meta, log)

	// Startup pre-fetch; a failure here is retried by the refresh ticker.
	if err := idx.Refresh(context.Background()); err != nil {
		log.Error("initial index refresh failed", zap.Error(err))
	}

	// Initialize API handler
	api := handler.NewAPI(cfg, log, idx, assetCache)
	defer api.Close()

	// Create router
	r := chi.NewRouter()
	api.RegisterRoutes(r)

	// Create server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		log.Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Periodic index refresh
	go func() {
		ticker := time.NewTicker(cfg.Refresh.Interval)
		defer ticker.Stop()

		for range ticker.C {
			if err := idx.Refresh(context.Background()); err != nil {
				log.Error("periodic index refresh failed", zap.Error(err))
			}
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited properly")
}
