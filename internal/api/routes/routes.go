package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/vertex-bank/banking_service/internal/api/handlers"
	"github.com/vertex-bank/banking_service/internal/api/middleware"
	"github.com/vertex-bank/banking_service/internal/domain/entities"
	"github.com/vertex-bank/banking_service/internal/infrastructure/di"
	"github.com/vertex-bank/banking_service/pkg/tracing"
)

// SetupRoutes configures all application routes
func SetupRoutes(container *di.Container) *gin.Engine {
	router := gin.New()

	// Global middleware - order matters for security
	router.Use(tracing.HTTPMiddleware()) // Tracing should be early in the chain
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(middleware.RequestSizeLimit())
	router.Use(middleware.Logger(container.Logger))
	router.Use(middleware.Recovery(container.Logger))
	router.Use(middleware.CORS(container.Config.Server.AllowedOrigins))
	router.Use(middleware.RateLimit(container.Config.Server.RateLimitPerMin))
	router.Use(middleware.SecurityHeaders())

	// Initialize handlers with services from DI container
	coreHandlers := handlers.NewCoreHandlers(container.DB, container.Logger)
	accountHandlers := handlers.NewAccountHandlers(
		container.AccountService,
		container.ReconciliationService,
		container.Logger,
	)
	bankingHandlers := handlers.NewBankingHandlers(
		container.BankingService,
		container.Logger,
	)
	bulkHandlers := handlers.NewBulkHandlers(
		container.BulkService,
		container.Logger,
	)

	// Health checks (no auth required)
	router.GET("/health", coreHandlers.Health)
	router.GET("/ready", coreHandlers.Ready)
	router.GET("/live", coreHandlers.Live)
	router.GET("/version", coreHandlers.Version)
	router.GET("/metrics", coreHandlers.Metrics)

	// API v1 routes (all authenticated)
	v1 := router.Group("/api/v1")
	v1.Use(middleware.Authentication(container.Config, container.Logger))
	{
		accounts := v1.Group("/accounts")
		{
			accounts.POST("", accountHandlers.OpenAccount)
			accounts.GET("", accountHandlers.ListAccounts)
			accounts.GET("/:id", accountHandlers.GetAccount)
			accounts.GET("/:id/entries", accountHandlers.ListEntries)
			accounts.GET("/:id/reconcile", accountHandlers.ReconcileAccount)

			accounts.POST("/:id/deposit",
				middleware.TieredRateLimit(container.TieredLimiter, "deposit"),
				bankingHandlers.Deposit)
			accounts.POST("/:id/withdraw",
				middleware.TieredRateLimit(container.TieredLimiter, "withdraw"),
				bankingHandlers.Withdraw)
		}

		v1.POST("/transfers",
			middleware.TieredRateLimit(container.TieredLimiter, "transfer"),
			bankingHandlers.Transfer)

		// Employee-only bulk operations
		operations := v1.Group("/operations")
		operations.Use(middleware.RequireRoles(entities.RoleEmployee, entities.RoleAdmin))
		{
			operations.POST("/bulk",
				middleware.TieredRateLimit(container.TieredLimiter, "bulk"),
				bulkHandlers.ProcessFile)
		}
	}

	return router
}
