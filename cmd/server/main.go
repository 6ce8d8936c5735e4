package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/minilos/origination-engine/internal/config"
	"github.com/minilos/origination-engine/internal/handler"
	"github.com/minilos/origination-engine/internal/repository"
	"github.com/minilos/origination-engine/internal/service"
	"github.com/minilos/origination-engine/internal/verification"
	"github.com/minilos/origination-engine/pkg/logger"
	"github.com/minilos/origination-engine/pkg/response"
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

	// Initialize database
	db, err := initDB(cfg)
	if err != nil {
		zlog.Fatal("initializing database", zap.Error(err))
	}
	defer db.Close()

	// Initialize Redis
	redisClient := initRedis(cfg)
	defer redisClient.Close()

	// Initialize repositories
	appRepo := repository.NewApplicationRepository(db)
	resultRepo := repository.NewResultRepository(db)

	// Initialize collaborators; only the deterministic mock provider ships.
	identityVerifier := verification.NewMockIdentityVerifier(nil)
	creditBureau := verification.NewMockCreditBureau(nil)

	// Initialize service and handlers
	originationService := service.NewOriginationService(
		appRepo, resultRepo, identityVerifier, creditBureau, redisClient, cfg, zlog)
	applicationHandler := handler.NewApplicationHandler(originationService, zlog)
	healthHandler := handler.NewHealthHandler(db, redisClient, cfg.Verification.Provider)

	// Setup routes
	router := setupRoutes(applicationHandler, healthHandler, zlog)

	// Start server
	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		zlog.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("shutting down server")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		zlog.Fatal("server forced to shutdown", zap.Error(err))
	}

	zlog.Info("server exited")
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func setupRoutes(applicationHandler *handler.ApplicationHandler, healthHandler *handler.HealthHandler, zlog *zap.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.CORSMiddleware)
	router.Use(response.LoggingMiddleware(zlog))

	// Health check
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()
	applicationHandler.RegisterRoutes(api)

	return router
}
