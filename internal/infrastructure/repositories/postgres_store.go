package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/vertex-bank/banking_service/internal/domain/entities"
	apperrors "github.com/vertex-bank/banking_service/internal/domain/errors"
	domainrepos "github.com/vertex-bank/banking_service/internal/domain/repositories"
)

// PostgresStore implements the banking store over sqlx. Calls made directly
// on the store run in auto-commit mode; WithinTx runs a closure inside one
// transaction at read-committed isolation. The version check on account
// updates is a compare-and-swap in the UPDATE statement itself, so lost
// updates are rejected regardless of isolation level.
type PostgresStore struct {
	db *sqlx.DB
	queries
}

// NewPostgresStore creates a new postgres-backed store
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db, queries: queries{ext: db}}
}

// WithinTx runs fn inside a single transaction and commits iff fn returns
// nil. Any error from fn rolls back every write it issued.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx domainrepos.OperationTx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&queries{ext: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// queries implements the operation surface over either *sqlx.DB or *sqlx.Tx
type queries struct {
	ext sqlx.ExtContext
}

// GetAccountByID retrieves an account by internal ID, (nil, nil) when absent
func (q *queries) GetAccountByID(ctx context.Context, id uuid.UUID) (*entities.Account, error) {
	query := `
		SELECT id, user_id, account_number, account_type, status, balance, currency, version, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`

	var account entities.Account
	err := sqlx.GetContext(ctx, q.ext, &account, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	return &account, nil
}

// GetAccountByNumber retrieves an account by its account number, (nil, nil)
// when absent
func (q *queries) GetAccountByNumber(ctx context.Context, number string) (*entities.Account, error) {
	query := `
		SELECT id, user_id, account_number, account_type, status, balance, currency, version, created_at, updated_at
		FROM accounts
		WHERE account_number = $1
	`

	var account entities.Account
	err := sqlx.GetContext(ctx, q.ext, &account, query, number)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get account by number: %w", err)
	}

	return &account, nil
}

// CreateJournalEntry appends an immutable journal entry
func (q *queries) CreateJournalEntry(ctx context.Context, entry *entities.JournalEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validate journal entry: %w", err)
	}

	query := `
		INSERT INTO journal_entries (id, account_id, amount, entry_type, status, balance_after, transfer_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	err := q.ext.QueryRowxContext(
		ctx,
		query,
		entry.ID,
		entry.AccountID,
		entry.Amount,
		entry.EntryType,
		entry.Status,
		entry.BalanceAfter,
		entry.TransferID,
		entry.Description,
		entry.CreatedAt,
	).Scan(&entry.CreatedAt)

	if err != nil {
		return fmt.Errorf("create journal entry: %w", err)
	}

	return nil
}

// CreateTransfer inserts a transfer row. A duplicate operation key surfaces
// the store's uniqueness error so the engine can report the duplicate
// instead of retrying.
func (q *queries) CreateTransfer(ctx context.Context, transfer *entities.Transfer) error {
	if err := transfer.Validate(); err != nil {
		return fmt.Errorf("validate transfer: %w", err)
	}

	query := `
		INSERT INTO transfers (id, source_account_id, destination_account_id, amount, currency, status, description, operation_key, failure_reason, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	if transfer.CreatedAt.IsZero() {
		transfer.CreatedAt = time.Now()
	}

	_, err := q.ext.ExecContext(
		ctx,
		query,
		transfer.ID,
		transfer.SourceAccountID,
		transfer.DestinationAccountID,
		transfer.Amount,
		transfer.Currency,
		transfer.Status,
		transfer.Description,
		transfer.OperationKey,
		transfer.FailureReason,
		transfer.CreatedAt,
		transfer.CompletedAt,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation on operation_key
				return fmt.Errorf("transfer with operation key already exists: %w", apperrors.ErrAlreadyExists)
			}
		}
		return fmt.Errorf("create transfer: %w", err)
	}

	return nil
}

// GetTransferByOperationKey retrieves a transfer by its operation key,
// (nil, nil) when absent
func (q *queries) GetTransferByOperationKey(ctx context.Context, key string) (*entities.Transfer, error) {
	query := `
		SELECT id, source_account_id, destination_account_id, amount, currency, status, description, operation_key, failure_reason, created_at, completed_at
		FROM transfers
		WHERE operation_key = $1
	`

	var transfer entities.Transfer
	err := sqlx.GetContext(ctx, q.ext, &transfer, query, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get transfer by operation key: %w", err)
	}

	return &transfer, nil
}

// UpdateAccountBalance writes the account's new balance conditional on the
// version column still holding expectedVersion. The statement advances the
// version itself; zero rows affected means another writer got there first.
func (q *queries) UpdateAccountBalance(ctx context.Context, account *entities.Account, expectedVersion int64) error {
	query := `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4
	`

	now := time.Now()
	result, err := q.ext.ExecContext(ctx, query, account.Balance, now, account.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("account %s at version %d: %w", account.ID, expectedVersion, apperrors.ErrVersionConflict)
	}

	account.Version = expectedVersion + 1
	account.UpdatedAt = now
	return nil
}

// SumCompletedEntries returns the sum and count of completed journal entries
// for an account
func (q *queries) SumCompletedEntries(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0), COUNT(*)
		FROM journal_entries
		WHERE account_id = $1 AND status = $2
	`

	var sumStr string
	var count int64
	err := q.ext.QueryRowxContext(ctx, query, accountID, entities.JournalEntryStatusCompleted).Scan(&sumStr, &count)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("sum journal entries: %w", err)
	}

	sum, err := decimal.NewFromString(sumStr)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("parse journal sum: %w", err)
	}

	return sum, count, nil
}

// GetIdempotencyRecord retrieves the record for (key, user), (nil, nil) when
// absent
func (q *queries) GetIdempotencyRecord(ctx context.Context, key string, userID uuid.UUID) (*entities.IdempotencyRecord, error) {
	query := `
		SELECT id, operation_key, user_id, request_path, completed, response_body, created_at, updated_at, expires_at
		FROM idempotency_records
		WHERE operation_key = $1 AND user_id = $2
	`

	var record entities.IdempotencyRecord
	err := sqlx.GetContext(ctx, q.ext, &record, query, key, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}

	return &record, nil
}

// SaveIdempotencyRecord inserts or updates the record for (key, user)
func (q *queries) SaveIdempotencyRecord(ctx context.Context, record *entities.IdempotencyRecord) error {
	query := `
		INSERT INTO idempotency_records (id, operation_key, user_id, request_path, completed, response_body, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (operation_key, user_id)
		DO UPDATE SET request_path = EXCLUDED.request_path, completed = EXCLUDED.completed,
			response_body = EXCLUDED.response_body, updated_at = EXCLUDED.updated_at,
			expires_at = EXCLUDED.expires_at
	`

	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	_, err := q.ext.ExecContext(
		ctx,
		query,
		record.ID,
		record.OperationKey,
		record.UserID,
		record.RequestPath,
		record.Completed,
		record.ResponseBody,
		record.CreatedAt,
		record.UpdatedAt,
		record.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("save idempotency record: %w", err)
	}

	return nil
}
