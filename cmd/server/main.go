package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storagebridge/offchain/internal/api"
	"storagebridge/offchain/internal/config"
	"storagebridge/offchain/internal/database"
	"storagebridge/offchain/internal/metrics"
	"storagebridge/offchain/internal/service"
	"storagebridge/offchain/internal/settlement"
	"storagebridge/offchain/internal/storage"
	"storagebridge/offchain/internal/worker"

	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := initLogger()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting Storage Bridge Service")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Configuration loaded",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("db_host", cfg.Database.Host),
		zap.String("settlement_api", cfg.Settlement.APIEndpoint),
		zap.String("storage_gateway", cfg.Storage.GatewayEndpoint))

	// Connect to database
	db, err := database.Connect(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Database connected successfully")

	// Run migrations
	migrationPath := "internal/database/migrations/001_schema.sql"
	if err := database.RunMigrations(db, migrationPath); err != nil {
		logger.Warn("Failed to run migrations (may already be applied)", zap.Error(err))
	} else {
		logger.Info("Database migrations applied successfully")
	}

	// External collaborators
	settlementClient, err := settlement.NewClient(cfg.Settlement.APIEndpoint)
	if err != nil {
		logger.Fatal("Failed to create settlement client", zap.Error(err))
	}
	defer settlementClient.Close()

	storageClient, err := storage.NewClient(
		cfg.Storage.GatewayEndpoint,
		cfg.Storage.MaxBlobBytes,
		cfg.Storage.RequestTimeout,
		logger,
	)
	if err != nil {
		logger.Fatal("Failed to create storage client", zap.Error(err))
	}

	watcher := settlement.NewWatcher(settlementClient, logger, func(p settlement.Progress) {
		metrics.SettlementPollsTotal.Inc()
		logger.Debug("Settlement wait progress",
			zap.String("transfer_ref", p.TransferRef),
			zap.Duration("elapsed", p.Elapsed),
			zap.Bool("executed", p.Executed),
			zap.Bool("fulfilled", p.Fulfilled))
	})

	// Initialize services
	ingestService := service.NewIngestService(db, storageClient, watcher, cfg, logger)
	retrieveService := service.NewRetrieveService(db, storageClient, cfg.Storage.VerifyOnRead, logger)

	logger.Info("Services initialized")

	// Initialize API handlers
	apiHandler := api.NewHandler(ingestService, retrieveService, storageClient, logger)
	router := api.SetupRouter(apiHandler, logger)

	// Create HTTP server
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Settlement.WaitTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server",
			zap.String("addr", serverAddr))
		serverErrors <- httpServer.ListenAndServe()
	}()

	// Start the pending-record reconciler
	workerManager := worker.NewManager(db, cfg, settlementClient, logger)
	workerManager.Start()

	logger.Info("Service initialized successfully",
		zap.String("status", "ready"),
		zap.Int("port", cfg.Server.Port))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for interrupt signal or server error
	select {
	case err := <-serverErrors:
		logger.Fatal("HTTP server error", zap.Error(err))
	case sig := <-quit:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	}

	logger.Info("Shutting down service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Shutdown workers first
	if err := workerManager.Shutdown(10 * time.Second); err != nil {
		logger.Error("Worker shutdown error", zap.Error(err))
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
		httpServer.Close()
	} else {
		logger.Info("HTTP server stopped gracefully")
	}

	logger.Info("Service stopped successfully")
}

func initLogger() (*zap.Logger, error) {
	env := os.Getenv("ENV")
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
