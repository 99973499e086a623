package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/filealchemy/converter-service/internal/api/handler"
	"github.com/filealchemy/converter-service/internal/api/router"
	"github.com/filealchemy/converter-service/internal/artifact"
	"github.com/filealchemy/converter-service/internal/config"
	"github.com/filealchemy/converter-service/internal/convert"
	"github.com/filealchemy/converter-service/internal/janitor"
	"github.com/filealchemy/converter-service/internal/job"
	"github.com/filealchemy/converter-service/shared/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("CONVERSION_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/conversion-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting conversion service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize the artifact staging areas
	store, err := artifact.NewStore(&artifact.Config{
		UploadDir:    cfg.Storage.UploadDir,
		ConvertedDir: cfg.Storage.ConvertedDir,
		Logger:       appLogger.Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize artifact store: %w", err)
	}

	appLogger.Info("Staging directories ready",
		slog.String("upload_dir", cfg.Storage.UploadDir),
		slog.String("converted_dir", cfg.Storage.ConvertedDir),
	)

	// Build the converter registry from the configured families
	converters := convert.NewRegistry(
		convert.NewImageConverter(),
		convert.NewDocumentConverter(convert.DocumentTools{
			PdfToText: cfg.Converters.PdfToTextPath,
			PdfToPpm:  cfg.Converters.PdfToPpmPath,
		}),
		convert.NewMediaConverter(cfg.Converters.FFmpegPath),
		convert.NewArchiveConverter(),
	)

	// Job registry and runner pool
	registry := job.NewRegistry()
	runner := job.NewRunner(&job.RunnerConfig{
		Logger:      appLogger.Logger,
		Registry:    registry,
		Store:       store,
		Converters:  converters,
		Concurrency: cfg.Jobs.Concurrency,
		QueueSize:   cfg.Jobs.QueueSize,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner.Start(ctx)

	// Janitor sweeps expired jobs and artifacts
	sweeper := janitor.New(&janitor.Config{
		Logger:    appLogger.Logger,
		Registry:  registry,
		Store:     store,
		Interval:  cfg.Jobs.JanitorInterval,
		Retention: cfg.Jobs.Retention,
	})
	sweeper.Start(ctx)

	// Initialize router
	r := initRouter(cfg, appLogger.Logger, registry, runner, store, converters)

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("Conversion service is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
	}

	// Drain in-flight jobs, then stop the sweeper
	runner.Stop()
	sweeper.Stop()
	cancel()

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(
	cfg *config.Config,
	logger *slog.Logger,
	registry *job.Registry,
	runner *job.Runner,
	store *artifact.Store,
	converters *convert.Registry,
) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(&handler.Dependencies{
		Logger:      logger,
		Registry:    registry,
		Runner:      runner,
		Store:       store,
		Converters:  converters,
		MaxFileSize: cfg.Storage.MaxFileSize,
		AppName:     cfg.App.Name,
		AppVersion:  cfg.App.Version,
	})
}
