package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vertex-bank/banking_service/internal/api/routes"
	"github.com/vertex-bank/banking_service/internal/infrastructure/config"
	"github.com/vertex-bank/banking_service/internal/infrastructure/database"
	"github.com/vertex-bank/banking_service/internal/infrastructure/di"
	"github.com/vertex-bank/banking_service/pkg/graceful"
	"github.com/vertex-bank/banking_service/pkg/logger"
	"github.com/vertex-bank/banking_service/pkg/metrics"
	"github.com/vertex-bank/banking_service/pkg/secrets"
	"github.com/vertex-bank/banking_service/pkg/tracing"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	// Resolve secrets before anything that needs them
	if err := resolveSecrets(context.Background(), cfg, log); err != nil {
		log.Fatal("Failed to resolve secrets", "error", err)
	}

	// Initialize OpenTelemetry tracing
	tracingConfig := tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		CollectorURL: cfg.Tracing.CollectorURL,
		Environment:  cfg.Environment,
		SampleRate:   cfg.Tracing.SampleRate,
		Insecure:     cfg.Tracing.Insecure,
	}

	tracingShutdown, err := tracing.InitTracer(context.Background(), tracingConfig, log.Zap())
	if err != nil {
		log.Fatal("Failed to initialize tracing", "error", err)
	}

	// Initialize database
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}

	// Run migrations
	if err := database.RunMigrations(cfg.Database.URL); err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Build dependency injection container
	container, err := di.NewContainer(cfg, db.DB, log)
	if err != nil {
		log.Fatal("Failed to create DI container", "error", err)
	}

	// Initialize router with DI container
	router := routes.SetupRoutes(container)

	// Start the idempotency record cleaner
	if err := container.IdempotencyCleanup.Start(); err != nil {
		log.Fatal("Failed to start idempotency cleanup worker", "error", err)
	}
	log.Info("Idempotency cleanup worker started", "schedule", cfg.Idempotency.CleanupSchedule)

	// Start the reconciliation sweep when enabled
	if cfg.Reconciliation.SweepEnabled {
		if err := container.ReconciliationScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start reconciliation scheduler", "error", err)
		}
		log.Info("Reconciliation scheduler started",
			"interval_minutes", cfg.Reconciliation.IntervalMinutes,
			"page_size", cfg.Reconciliation.PageSize,
		)
	} else {
		log.Info("Reconciliation scheduler disabled in configuration")
	}

	// Create server
	server := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	// Start server in goroutine
	go func() {
		log.Info("Starting server",
			"port", cfg.Server.Port,
			"environment", cfg.Environment,
			"read_timeout", cfg.Server.ReadTimeout,
			"write_timeout", cfg.Server.WriteTimeout,
		)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Periodically export database pool stats
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			stats := db.Stats()
			metrics.DatabaseConnectionsGauge.WithLabelValues("open").Set(float64(stats.OpenConnections))
			metrics.DatabaseConnectionsGauge.WithLabelValues("idle").Set(float64(stats.Idle))
			metrics.DatabaseConnectionsGauge.WithLabelValues("in_use").Set(float64(stats.InUse))
		}
	}()

	// Block until SIGINT/SIGTERM, then drain in order:
	// background workers, HTTP server, cleanups, database.
	shutdown := graceful.NewShutdownManager(server, db.DB, log)
	shutdown.Register(container.IdempotencyCleanup)
	if cfg.Reconciliation.SweepEnabled {
		shutdown.Register(container.ReconciliationScheduler)
	}
	shutdown.RegisterCleanup("tracing", tracingShutdown)
	shutdown.RegisterCleanup("container", func(ctx context.Context) error {
		return container.Close()
	})
	shutdown.WaitForShutdown()
}

// resolveSecrets fills in config values that live outside the environment.
// With the default "env" provider the config loader has already read them.
func resolveSecrets(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if cfg.Security.SecretsProvider != "aws_secrets_manager" {
		return nil
	}

	provider, err := secrets.NewAWSSecretsManagerProvider(
		ctx,
		cfg.Security.AWSSecretsRegion,
		cfg.Security.AWSSecretsPrefix,
		time.Duration(cfg.Security.SecretsCacheTTL)*time.Second,
	)
	if err != nil {
		return fmt.Errorf("init AWS secrets manager: %w", err)
	}

	manager := secrets.NewManager(provider)

	jwtSecret, err := manager.GetJWTSecret(ctx)
	if err != nil {
		return fmt.Errorf("fetch JWT secret: %w", err)
	}
	cfg.JWT.Secret = jwtSecret

	if cfg.Redis.Enabled && cfg.Redis.Password == "" {
		redisPassword, err := manager.GetRedisPassword(ctx)
		if err != nil {
			log.Warn("Redis password not found in secrets manager, continuing without one", "error", err)
		} else {
			cfg.Redis.Password = redisPassword
		}
	}

	log.Info("Secrets resolved from AWS Secrets Manager", "region", cfg.Security.AWSSecretsRegion)
	return nil
}
