package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/vertex-bank/banking_service/pkg/tracing"
)

// IdempotencyRepository handles maintenance of stored idempotency records.
// Reads and writes on the hot path go through the Store so they share the
// operation's transaction; this repository only serves the cleanup worker.
type IdempotencyRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewIdempotencyRepository creates a new idempotency repository
func NewIdempotencyRepository(db *sqlx.DB, logger *zap.Logger) *IdempotencyRepository {
	return &IdempotencyRepository{
		db:     db,
		logger: logger,
	}
}

// DeleteExpired removes up to limit records that expired before the given
// time and reports how many were deleted. Batching keeps the delete from
// holding locks across a large sweep.
func (r *IdempotencyRepository) DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error) {
	ctx, span := tracing.StartDBSpan(ctx, "DELETE", "idempotency_records")

	query := `
		DELETE FROM idempotency_records
		WHERE id IN (
			SELECT id FROM idempotency_records
			WHERE expires_at <= $1
			ORDER BY expires_at
			LIMIT $2
		)
	`

	result, err := r.db.ExecContext(ctx, query, before, limit)
	tracing.EndDBSpan(span, err)
	if err != nil {
		r.logger.Error("Failed to delete expired idempotency records", zap.Error(err))
		return 0, fmt.Errorf("failed to delete expired idempotency records: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	return rowsAffected, nil
}

// GetStats returns the total and expired record counts
func (r *IdempotencyRepository) GetStats(ctx context.Context) (total, expired int64, err error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE expires_at <= NOW()) AS expired
		FROM idempotency_records
	`

	row := r.db.QueryRowContext(ctx, query)
	if err = row.Scan(&total, &expired); err != nil {
		return 0, 0, fmt.Errorf("failed to get idempotency record stats: %w", err)
	}

	return total, expired, nil
}
