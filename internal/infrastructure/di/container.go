// Package di wires repositories, services, and workers into a single
// container consumed by routes and main.
package di

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/vertex-bank/banking_service/internal/domain/services/account"
	"github.com/vertex-bank/banking_service/internal/domain/services/banking"
	"github.com/vertex-bank/banking_service/internal/domain/services/bulkops"
	"github.com/vertex-bank/banking_service/internal/domain/services/reconciliation"
	"github.com/vertex-bank/banking_service/internal/infrastructure/cache"
	"github.com/vertex-bank/banking_service/internal/infrastructure/config"
	"github.com/vertex-bank/banking_service/internal/infrastructure/repositories"
	"github.com/vertex-bank/banking_service/internal/workers/idempotency_cleanup"
	"github.com/vertex-bank/banking_service/pkg/logger"
	"github.com/vertex-bank/banking_service/pkg/ratelimit"
)

type Container struct {
	Config *config.Config
	DB     *sql.DB
	SqlxDB *sqlx.DB
	Logger *logger.Logger
	ZapLog *zap.Logger

	// Infrastructure
	RedisClient   cache.RedisClient
	TieredLimiter *ratelimit.TieredLimiter

	// Repositories
	Store           *repositories.PostgresStore
	AccountRepo     *repositories.AccountRepository
	JournalRepo     *repositories.JournalRepository
	UserRepo        *repositories.UserRepository
	IdempotencyRepo *repositories.IdempotencyRepository

	// Domain services
	BankingService          *banking.Service
	AccountService          *account.Service
	ReconciliationService   *reconciliation.Service
	ReconciliationScheduler *reconciliation.Scheduler
	BulkService             *bulkops.Service

	// Workers
	IdempotencyCleanup *idempotency_cleanup.Worker
}

// NewContainer builds the full object graph. Construction is eager: a broken
// dependency fails startup instead of the first request.
func NewContainer(cfg *config.Config, db *sql.DB, log *logger.Logger) (*Container, error) {
	zapLog := log.Zap()
	sqlxDB := sqlx.NewDb(db, "postgres")

	// Repositories
	store := repositories.NewPostgresStore(sqlxDB)
	accountRepo := repositories.NewAccountRepository(sqlxDB, zapLog)
	journalRepo := repositories.NewJournalRepository(sqlxDB, zapLog)
	userRepo := repositories.NewUserRepository(sqlxDB, zapLog)
	idempotencyRepo := repositories.NewIdempotencyRepository(sqlxDB, zapLog)

	// Ledger engine
	bankingService := banking.NewService(store, banking.Config{
		MaxAttempts:    cfg.Ledger.MaxAttempts,
		InitialBackoff: time.Duration(cfg.Ledger.RetryBackoffMs) * time.Millisecond,
		IdempotencyTTL: time.Duration(cfg.Idempotency.TTLHours) * time.Hour,
	}, log)

	accountService := account.NewService(accountRepo, journalRepo, userRepo, log)

	reconciliationService := reconciliation.NewService(
		store, accountRepo, cfg.Reconciliation.PageSize, log)
	reconciliationScheduler := reconciliation.NewScheduler(
		reconciliationService,
		time.Duration(cfg.Reconciliation.IntervalMinutes)*time.Minute,
		log)

	bulkService := bulkops.NewService(
		bankingService, userRepo, accountRepo, cfg.Bulk.MaxUploadBytes, log)

	cleanupWorker := idempotency_cleanup.NewWorker(
		idempotencyRepo,
		cfg.Idempotency.CleanupSchedule,
		cfg.Idempotency.CleanupBatch,
		zapLog)

	c := &Container{
		Config:                  cfg,
		DB:                      db,
		SqlxDB:                  sqlxDB,
		Logger:                  log,
		ZapLog:                  zapLog,
		Store:                   store,
		AccountRepo:             accountRepo,
		JournalRepo:             journalRepo,
		UserRepo:                userRepo,
		IdempotencyRepo:         idempotencyRepo,
		BankingService:          bankingService,
		AccountService:          accountService,
		ReconciliationService:   reconciliationService,
		ReconciliationScheduler: reconciliationScheduler,
		BulkService:             bulkService,
		IdempotencyCleanup:      cleanupWorker,
	}

	// Redis-backed tiered rate limiting for money endpoints. Without Redis
	// the API still runs behind the per-IP in-process limiter.
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(&cfg.Redis, zapLog)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		c.RedisClient = redisClient
		c.TieredLimiter = ratelimit.NewTieredLimiter(redisClient.Client(), ratelimit.TieredConfig{
			IPLimit:        int64(cfg.Server.RateLimitPerMin),
			IPWindow:       time.Minute,
			UserLimit:      int64(cfg.Server.RateLimitPerMin),
			UserWindow:     time.Minute,
			EndpointLimits: ratelimit.DefaultMoneyEndpointLimits(),
		}, zapLog)
	}

	return c, nil
}

// Close releases container-held resources that main does not own directly
func (c *Container) Close() error {
	if c.RedisClient != nil {
		return c.RedisClient.Close()
	}
	return nil
}
