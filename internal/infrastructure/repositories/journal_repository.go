package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/vertex-bank/banking_service/internal/domain/entities"
	"github.com/vertex-bank/banking_service/pkg/tracing"
)

// JournalRepository provides read access to the append-only journal.
// Entries are only ever written inside a Store transaction together with the
// balance update, so this repository has no insert path.
type JournalRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewJournalRepository creates a new journal repository
func NewJournalRepository(db *sqlx.DB, logger *zap.Logger) *JournalRepository {
	return &JournalRepository{
		db:     db,
		logger: logger,
	}
}

// ListByAccountID returns a page of entries for an account, newest first
func (r *JournalRepository) ListByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*entities.JournalEntry, error) {
	ctx, span := tracing.StartDBSpan(ctx, "SELECT", "journal_entries")

	query := `
		SELECT id, account_id, amount, entry_type, status, balance_after, transfer_id, description, created_at
		FROM journal_entries
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	var entries []*entities.JournalEntry
	err := r.db.SelectContext(ctx, &entries, query, accountID, limit, offset)
	tracing.EndDBSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}

	return entries, nil
}

// CountByAccountID returns the total number of entries for an account
func (r *JournalRepository) CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM journal_entries WHERE account_id = $1`

	var count int64
	err := r.db.GetContext(ctx, &count, query, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to count journal entries: %w", err)
	}

	return count, nil
}
