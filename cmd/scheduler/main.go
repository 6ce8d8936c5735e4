package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/minilos/origination-engine/internal/config"
	"github.com/minilos/origination-engine/internal/repository"
	"github.com/minilos/origination-engine/internal/service"
	"github.com/minilos/origination-engine/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zlog.Sync()
	zap.ReplaceGlobals(zlog)

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		zlog.Fatal("connecting to database", zap.Error(err))
	}
	defer db.Close()

	appRepo := repository.NewApplicationRepository(db)
	resultRepo := repository.NewResultRepository(db)

	// The scheduler only runs the recovery sweep; no collaborators or cache.
	originationService := service.NewOriginationService(
		appRepo, resultRepo, nil, nil, nil, cfg, zlog)

	// Initialize cron scheduler
	c := cron.New(cron.WithSeconds())

	if _, err := c.AddFunc(cfg.Scheduler.RecoverySpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		recovered, err := originationService.RecoverStuckPending(ctx)
		if err != nil {
			zlog.Error("recovery sweep failed", zap.Error(err))
			return
		}
		zlog.Debug("recovery sweep finished", zap.Int64("recovered", recovered))
	}); err != nil {
		zlog.Fatal("scheduling recovery sweep", zap.Error(err))
	}

	// Start the scheduler
	c.Start()
	zlog.Info("scheduler started", zap.String("recovery_spec", cfg.Scheduler.RecoverySpec))

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down scheduler")
	<-c.Stop().Done()
	zlog.Info("scheduler stopped")
}
