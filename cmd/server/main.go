package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/smartpantry/paragon/internal/ai"
	"github.com/smartpantry/paragon/internal/anomaly"
	"github.com/smartpantry/paragon/internal/confidence"
	"github.com/smartpantry/paragon/internal/config"
	"github.com/smartpantry/paragon/internal/export"
	"github.com/smartpantry/paragon/internal/parser"
	"github.com/smartpantry/paragon/internal/pipeline"
	"github.com/smartpantry/paragon/internal/repository"
	"github.com/smartpantry/paragon/internal/server"
	"github.com/smartpantry/paragon/pkg/database"
	"github.com/smartpantry/paragon/pkg/utils"
)

func main() {
	_ = gotenv.Load()

	configPath := "configs/config.yaml"
	if v := os.Getenv("PARAGON_CONFIG"); v != "" {
		configPath = v
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting receipt extraction service",
		zap.Int("port", cfg.Server.Port))

	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Fatal("Failed to create database directory", zap.Error(err))
		}
	}

	// Initialize database
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	repo := repository.NewReceiptRepository(db, logger)

	receiptParser := parser.New(parser.Options{
		FallbackMinProducts: cfg.Parser.FallbackMinProducts,
		MinLinesForFallback: cfg.Parser.MinLinesForFallback,
		MaxProductPrice:     cfg.Parser.MaxProductPrice,
	}, logger)

	detector := anomaly.NewDetector(anomaly.Config{
		GeneralCeiling: cfg.Anomaly.GeneralCeiling,
		MeatCeiling:    cfg.Anomaly.MeatCeiling,
		HardCeiling:    cfg.Anomaly.HardCeiling,
	}, logger)

	thresholds := confidence.Thresholds{
		ReviewBelow: cfg.Confidence.ReviewThreshold,
		AutoSaveAt:  cfg.Confidence.AutoSaveThreshold,
	}
	if err := thresholds.Validate(); err != nil {
		logger.Fatal("Invalid confidence thresholds", zap.Error(err))
	}
	scorer := confidence.NewScorer(thresholds, logger)

	var structurer ai.Structurer
	if cfg.OpenAI.Enabled {
		gate := ai.NewSlotGate(cfg.OpenAI.ModelSlots)
		structurer = ai.NewOpenAIStructurer(ai.StructurerConfig{
			APIKey:      cfg.OpenAI.APIKey,
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.OpenAI.Temperature,
			Timeout:     cfg.OpenAI.Timeout,
		}, gate, logger)
	}

	processor := pipeline.NewProcessor(
		receiptParser, detector, scorer, structurer, repo, logger)

	// Set Gin mode based on logger level
	if cfg.Logger.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := os.MkdirAll(cfg.Export.OutputDir, 0755); err != nil {
		logger.Fatal("Failed to create export directory", zap.Error(err))
	}
	exporter := export.NewExporter(cfg.Export.OutputDir, logger)

	handler := server.NewHandler(processor, repo, exporter, logger)
	router := server.NewRouter(handler, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}
