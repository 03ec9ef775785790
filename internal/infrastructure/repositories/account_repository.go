package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/vertex-bank/banking_service/internal/domain/entities"
	apperrors "github.com/vertex-bank/banking_service/internal/domain/errors"
	"github.com/vertex-bank/banking_service/pkg/tracing"
)

// AccountRepository implements account data access using PostgreSQL
type AccountRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *sqlx.DB, logger *zap.Logger) *AccountRepository {
	return &AccountRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new account. A collision on the generated account number
// surfaces the store's uniqueness error so the caller can regenerate.
func (r *AccountRepository) Create(ctx context.Context, account *entities.Account) error {
	if err := account.Validate(); err != nil {
		return fmt.Errorf("validate account: %w", err)
	}

	ctx, span := tracing.StartDBSpan(ctx, "INSERT", "accounts")

	query := `
		INSERT INTO accounts (id, user_id, account_number, account_type, status, balance, currency, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.UserID,
		account.AccountNumber,
		account.AccountType,
		account.Status,
		account.Balance,
		account.Currency,
		account.Version,
		account.CreatedAt,
		account.UpdatedAt,
	)
	tracing.EndDBSpan(span, err)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("account number %s taken: %w", account.AccountNumber, apperrors.ErrAlreadyExists)
		}
		r.logger.Error("Failed to create account", zap.Error(err), zap.String("user_id", account.UserID.String()))
		return fmt.Errorf("failed to create account: %w", err)
	}

	r.logger.Debug("Account created", zap.String("account_id", account.ID.String()))
	return nil
}

// GetByID retrieves an account by ID, (nil, nil) when absent
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Account, error) {
	query := `
		SELECT id, user_id, account_number, account_type, status, balance, currency, version, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`

	var account entities.Account
	err := r.db.GetContext(ctx, &account, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &account, nil
}

// GetByNumber retrieves an account by its account number, (nil, nil) when
// absent
func (r *AccountRepository) GetByNumber(ctx context.Context, number string) (*entities.Account, error) {
	query := `
		SELECT id, user_id, account_number, account_type, status, balance, currency, version, created_at, updated_at
		FROM accounts
		WHERE account_number = $1
	`

	var account entities.Account
	err := r.db.GetContext(ctx, &account, query, number)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account by number: %w", err)
	}

	return &account, nil
}

// ListByUserID returns all accounts owned by a user, newest first
func (r *AccountRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.Account, error) {
	query := `
		SELECT id, user_id, account_number, account_type, status, balance, currency, version, created_at, updated_at
		FROM accounts
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	var accounts []*entities.Account
	err := r.db.SelectContext(ctx, &accounts, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	return accounts, nil
}

// ListIDs pages over all account IDs in creation order. The reconciliation
// sweep uses this to walk the book without loading full rows.
func (r *AccountRepository) ListIDs(ctx context.Context, limit, offset int) ([]uuid.UUID, error) {
	ctx, span := tracing.StartDBSpan(ctx, "SELECT", "accounts")

	query := `
		SELECT id
		FROM accounts
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2
	`

	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, query, limit, offset)
	tracing.EndDBSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list account ids: %w", err)
	}

	return ids, nil
}

// GetActiveByUserAndType returns the user's first active account of the
// given type, (nil, nil) when none exists
func (r *AccountRepository) GetActiveByUserAndType(ctx context.Context, userID uuid.UUID, accountType entities.AccountType) (*entities.Account, error) {
	query := `
		SELECT id, user_id, account_number, account_type, status, balance, currency, version, created_at, updated_at
		FROM accounts
		WHERE user_id = $1 AND account_type = $2 AND status = $3
		ORDER BY created_at
		LIMIT 1
	`

	var account entities.Account
	err := r.db.GetContext(ctx, &account, query, userID, accountType, entities.AccountStatusActive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active account: %w", err)
	}

	return &account, nil
}
