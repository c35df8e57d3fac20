package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lpjform/lpj-backend/internal/config"
	"github.com/lpjform/lpj-backend/internal/converter"
	"github.com/lpjform/lpj-backend/internal/docx"
	"github.com/lpjform/lpj-backend/internal/format"
	"github.com/lpjform/lpj-backend/internal/pipeline"
	"github.com/lpjform/lpj-backend/internal/qr"
	"github.com/lpjform/lpj-backend/internal/repository"
	"github.com/lpjform/lpj-backend/internal/server"
	"github.com/lpjform/lpj-backend/internal/storage"
	"github.com/lpjform/lpj-backend/pkg/database"
	"github.com/lpjform/lpj-backend/pkg/utils"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
)

func main() {
	// Local overrides from .env, if present
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

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

	logger.Info("Starting LPJ document service",
		zap.Int("port", cfg.Server.Port),
		zap.String("template", cfg.Pipeline.TemplatePath),
		zap.String("output_dir", cfg.Pipeline.OutputDir))

	// Ledger database
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

	// Ledger schema, created idempotently at every start
	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Artifact store and output directory
	store, err := storage.NewArtifactStore(cfg.Pipeline.OutputDir, logger)
	if err != nil {
		logger.Fatal("Failed to initialize artifact store", zap.Error(err))
	}

	// Pipeline components
	ledgerRepo := repository.NewLedgerRepository(db.DB, logger)
	orchestrator := pipeline.NewOrchestrator(
		docx.NewRenderer(logger),
		qr.NewGenerator(logger),
		converter.New(converter.Config{
			Binary:  cfg.Converter.Binary,
			Timeout: cfg.Converter.Timeout,
		}, logger),
		converter.NewInspector(logger),
		store,
		ledgerRepo,
		format.NewFormatter(logger),
		pipeline.Config{
			TemplatePath: cfg.Pipeline.TemplatePath,
			TargetFormat: cfg.Pipeline.TargetFormat,
		},
		logger,
	)

	if cfg.Logger.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))
	router.Use(corsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "lpj-backend",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	server.NewHandler(orchestrator, ledgerRepo, logger).Register(router)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}

// corsMiddleware adds CORS headers for the separately served form client
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
