package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/vertex-bank/banking_service/internal/domain/entities"
)

// UserRepository implements read access to users using PostgreSQL.
// Identity onboarding and KYC review live in the identity service; this
// module only reads the user record to enforce ownership and verification.
type UserRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a user by ID, (nil, nil) when absent
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	query := `
		SELECT id, email, full_name, national_id, role, kyc_status, is_active, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var user entities.User
	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to get user", zap.Error(err), zap.String("user_id", id.String()))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// GetByNationalID retrieves a user by national ID, (nil, nil) when absent.
// Bulk CSV rows are resolved through this lookup.
func (r *UserRepository) GetByNationalID(ctx context.Context, nationalID string) (*entities.User, error) {
	query := `
		SELECT id, email, full_name, national_id, role, kyc_status, is_active, created_at, updated_at
		FROM users
		WHERE national_id = $1
	`

	var user entities.User
	err := r.db.GetContext(ctx, &user, query, nationalID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by national id: %w", err)
	}

	return &user, nil
}
