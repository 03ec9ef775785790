package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vertex-bank/banking_service/internal/domain/entities"
)

// OperationTx is the narrow persistence surface the banking engine requires.
// Single-row lookups return (nil, nil) when no row exists; any other failure
// is a storage error. UpdateAccountBalance must provide compare-and-swap
// semantics directly: it writes the new state and advances the version only
// if the row's current version equals expectedVersion, and reports
// errors.ErrVersionConflict otherwise.
type OperationTx interface {
	GetAccountByID(ctx context.Context, id uuid.UUID) (*entities.Account, error)
	GetAccountByNumber(ctx context.Context, number string) (*entities.Account, error)
	CreateJournalEntry(ctx context.Context, entry *entities.JournalEntry) error
	CreateTransfer(ctx context.Context, transfer *entities.Transfer) error
	GetTransferByOperationKey(ctx context.Context, key string) (*entities.Transfer, error)
	UpdateAccountBalance(ctx context.Context, account *entities.Account, expectedVersion int64) error
	SumCompletedEntries(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, int64, error)
	GetIdempotencyRecord(ctx context.Context, key string, userID uuid.UUID) (*entities.IdempotencyRecord, error)
	SaveIdempotencyRecord(ctx context.Context, record *entities.IdempotencyRecord) error
}

// Store is the transactional boundary of the core. Calls made directly on the
// Store run in auto-commit mode; WithinTx runs fn inside one transaction and
// commits iff fn returns nil. Rollback discards every write fn issued.
type Store interface {
	OperationTx

	WithinTx(ctx context.Context, fn func(tx OperationTx) error) error
}

// AccountRepository defines the interface for account data access outside
// the engine's transactional path. Create must surface the store's
// uniqueness error on an account-number collision.
type AccountRepository interface {
	Create(ctx context.Context, account *entities.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Account, error)
	GetByNumber(ctx context.Context, number string) (*entities.Account, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.Account, error)
	ListIDs(ctx context.Context, limit, offset int) ([]uuid.UUID, error)
	GetActiveByUserAndType(ctx context.Context, userID uuid.UUID, accountType entities.AccountType) (*entities.Account, error)
}

// JournalRepository defines the interface for read access to the journal
type JournalRepository interface {
	ListByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*entities.JournalEntry, error)
	CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error)
}

// UserRepository defines the interface for user lookups
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error)
	GetByNationalID(ctx context.Context, nationalID string) (*entities.User, error)
}

// IdempotencyRepository defines maintenance access to idempotency records
// beyond the engine's transactional surface
type IdempotencyRepository interface {
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error)
}
