package entities

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType represents the product type of a bank account
type AccountType string

const (
	AccountTypeChecking AccountType = "checking"
	AccountTypeSavings  AccountType = "savings"
	AccountTypeBusiness AccountType = "business"
)

// Validate checks if the account type is valid
func (a AccountType) Validate() error {
	switch a {
	case AccountTypeChecking, AccountTypeSavings, AccountTypeBusiness:
		return nil
	default:
		return fmt.Errorf("invalid account type: %s", a)
	}
}

// NumberPrefix returns the account-number prefix for this type
func (a AccountType) NumberPrefix() string {
	switch a {
	case AccountTypeSavings:
		return "SAV"
	case AccountTypeBusiness:
		return "BUS"
	default:
		return "CHK"
	}
}

// AccountStatus represents the lifecycle state of an account
type AccountStatus string

const (
	AccountStatusActive AccountStatus = "active"
	AccountStatusFrozen AccountStatus = "frozen"
	AccountStatusClosed AccountStatus = "closed"
)

// Validate checks if the account status is valid
func (s AccountStatus) Validate() error {
	switch s {
	case AccountStatusActive, AccountStatusFrozen, AccountStatusClosed:
		return nil
	default:
		return fmt.Errorf("invalid account status: %s", s)
	}
}

// JournalEntryType represents the kind of ledger movement an entry records
type JournalEntryType string

const (
	JournalEntryTypeDeposit        JournalEntryType = "deposit"
	JournalEntryTypeWithdrawal     JournalEntryType = "withdrawal"
	JournalEntryTypeTransferDebit  JournalEntryType = "transfer_debit"
	JournalEntryTypeTransferCredit JournalEntryType = "transfer_credit"
)

// Validate checks if the journal entry type is valid
func (t JournalEntryType) Validate() error {
	switch t {
	case JournalEntryTypeDeposit, JournalEntryTypeWithdrawal,
		JournalEntryTypeTransferDebit, JournalEntryTypeTransferCredit:
		return nil
	default:
		return fmt.Errorf("invalid journal entry type: %s", t)
	}
}

// IsTransferLeg returns true if entries of this type must reference a transfer
func (t JournalEntryType) IsTransferLeg() bool {
	return t == JournalEntryTypeTransferDebit || t == JournalEntryTypeTransferCredit
}

// JournalEntryStatus represents the status of a journal entry
type JournalEntryStatus string

const (
	JournalEntryStatusCompleted JournalEntryStatus = "completed"
	JournalEntryStatusFailed    JournalEntryStatus = "failed"
	JournalEntryStatusReversed  JournalEntryStatus = "reversed"
)

// Validate checks if the journal entry status is valid
func (s JournalEntryStatus) Validate() error {
	switch s {
	case JournalEntryStatusCompleted, JournalEntryStatusFailed, JournalEntryStatusReversed:
		return nil
	default:
		return fmt.Errorf("invalid journal entry status: %s", s)
	}
}

// TransferStatus represents the status of a transfer
type TransferStatus string

const (
	// TransferStatusPending exists to support two-phase flows. The current
	// engine commits transfers as completed directly; no committed row
	// bears this status.
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusCompleted TransferStatus = "completed"
	TransferStatusFailed    TransferStatus = "failed"
)

// Validate checks if the transfer status is valid
func (s TransferStatus) Validate() error {
	switch s {
	case TransferStatusPending, TransferStatusCompleted, TransferStatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid transfer status: %s", s)
	}
}

// MaxOperationKeyLength bounds caller-supplied operation keys.
const MaxOperationKeyLength = 100

// ValidateOperationKey checks a caller-supplied operation key.
func ValidateOperationKey(key string) error {
	if key == "" {
		return fmt.Errorf("operation key is required")
	}
	if len(key) > MaxOperationKeyLength {
		return fmt.Errorf("operation key must be at most %d characters", MaxOperationKeyLength)
	}
	return nil
}

// GenerateAccountNumber produces a new account number of the form
// {CHK|SAV|BUS}-YYYYMMDD-XXXXXX where the suffix is six uppercase hex digits
// from a cryptographic random source. Uniqueness is enforced by the store.
func GenerateAccountNumber(accountType AccountType, at time.Time) string {
	buf := make([]byte, 3)
	rand.Read(buf)
	suffix := strings.ToUpper(hex.EncodeToString(buf))
	return fmt.Sprintf("%s-%s-%s", accountType.NumberPrefix(), at.Format("20060102"), suffix)
}

// Account represents a customer bank account. The balance column is a cached
// aggregate of the account's completed journal entries; the version column
// backs optimistic concurrency control and advances on every committed
// mutation of the row.
type Account struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	UserID        uuid.UUID       `json:"user_id" db:"user_id"`
	AccountNumber string          `json:"account_number" db:"account_number"`
	AccountType   AccountType     `json:"account_type" db:"account_type"`
	Status        AccountStatus   `json:"status" db:"status"`
	Balance       decimal.Decimal `json:"balance" db:"balance"`
	Currency      string          `json:"currency" db:"currency"`
	Version       int64           `json:"version" db:"version"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// Validate validates the account
func (a *Account) Validate() error {
	if a.ID == uuid.Nil {
		return fmt.Errorf("account ID is required")
	}
	if a.UserID == uuid.Nil {
		return fmt.Errorf("account requires an owner")
	}
	if a.AccountNumber == "" {
		return fmt.Errorf("account number is required")
	}
	if err := a.AccountType.Validate(); err != nil {
		return err
	}
	if err := a.Status.Validate(); err != nil {
		return err
	}
	if a.Currency == "" {
		return fmt.Errorf("currency is required")
	}
	if a.Balance.IsNegative() {
		return fmt.Errorf("account balance cannot be negative")
	}
	return nil
}

// IsActive returns true if the account accepts monetary operations
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// IsOwnedBy returns true if the given user owns this account
func (a *Account) IsOwnedBy(userID uuid.UUID) bool {
	return a.UserID == userID
}

// JournalEntry represents one immutable signed contribution to an account's
// balance. Positive amounts credit the account, negative amounts debit it.
// Once written with status completed an entry is never updated or deleted;
// corrections are expressed as compensating entries.
type JournalEntry struct {
	ID           uuid.UUID          `json:"id" db:"id"`
	AccountID    uuid.UUID          `json:"account_id" db:"account_id"`
	Amount       decimal.Decimal    `json:"amount" db:"amount"`
	EntryType    JournalEntryType   `json:"entry_type" db:"entry_type"`
	Status       JournalEntryStatus `json:"status" db:"status"`
	BalanceAfter decimal.Decimal    `json:"balance_after" db:"balance_after"`
	TransferID   *uuid.UUID         `json:"transfer_id,omitempty" db:"transfer_id"`
	Description  string             `json:"description" db:"description"`
	CreatedAt    time.Time          `json:"created_at" db:"created_at"`
}

// Validate validates the journal entry
func (e *JournalEntry) Validate() error {
	if e.ID == uuid.Nil {
		return fmt.Errorf("entry ID is required")
	}
	if e.AccountID == uuid.Nil {
		return fmt.Errorf("account ID is required")
	}
	if err := e.EntryType.Validate(); err != nil {
		return err
	}
	if err := e.Status.Validate(); err != nil {
		return err
	}
	if e.Amount.IsZero() {
		return fmt.Errorf("entry amount cannot be zero")
	}
	if e.EntryType.IsTransferLeg() && e.TransferID == nil {
		return fmt.Errorf("transfer entries require a transfer reference")
	}
	if !e.EntryType.IsTransferLeg() && e.TransferID != nil {
		return fmt.Errorf("non-transfer entries cannot reference a transfer")
	}
	return nil
}

// IsDebit returns true if this entry debits the account
func (e *JournalEntry) IsDebit() bool {
	return e.Amount.IsNegative()
}

// IsCredit returns true if this entry credits the account
func (e *JournalEntry) IsCredit() bool {
	return e.Amount.IsPositive()
}

// Transfer represents the paired legs of a movement between two accounts.
// The operation key is unique across all transfers.
type Transfer struct {
	ID                   uuid.UUID       `json:"id" db:"id"`
	SourceAccountID      uuid.UUID       `json:"source_account_id" db:"source_account_id"`
	DestinationAccountID uuid.UUID       `json:"destination_account_id" db:"destination_account_id"`
	Amount               decimal.Decimal `json:"amount" db:"amount"`
	Currency             string          `json:"currency" db:"currency"`
	Status               TransferStatus  `json:"status" db:"status"`
	Description          string          `json:"description" db:"description"`
	OperationKey         string          `json:"operation_key" db:"operation_key"`
	FailureReason        *string         `json:"failure_reason,omitempty" db:"failure_reason"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
	CompletedAt          *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
}

// Validate validates the transfer
func (t *Transfer) Validate() error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("transfer ID is required")
	}
	if t.SourceAccountID == uuid.Nil || t.DestinationAccountID == uuid.Nil {
		return fmt.Errorf("transfer requires both endpoints")
	}
	if t.SourceAccountID == t.DestinationAccountID {
		return fmt.Errorf("transfer endpoints must differ")
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("transfer amount must be positive")
	}
	if err := t.Status.Validate(); err != nil {
		return err
	}
	if err := ValidateOperationKey(t.OperationKey); err != nil {
		return err
	}
	return nil
}

// MarkCompleted marks the transfer as completed
func (t *Transfer) MarkCompleted() {
	now := time.Now()
	t.Status = TransferStatusCompleted
	t.CompletedAt = &now
}

// MarkFailed marks the transfer as failed with a reason
func (t *Transfer) MarkFailed(reason string) {
	t.Status = TransferStatusFailed
	t.FailureReason = &reason
}

// IdempotencyRecord deduplicates retried operations. Records are keyed
// uniquely by (operation key, user) and expire after a TTL; the cleanup
// worker purges expired rows.
type IdempotencyRecord struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	OperationKey string          `json:"operation_key" db:"operation_key"`
	UserID       uuid.UUID       `json:"user_id" db:"user_id"`
	RequestPath  string          `json:"request_path" db:"request_path"`
	Completed    bool            `json:"completed" db:"completed"`
	ResponseBody json.RawMessage `json:"response_body,omitempty" db:"response_body"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
	ExpiresAt    time.Time       `json:"expires_at" db:"expires_at"`
}

// IsExpired returns true if the record is past its TTL
func (r *IdempotencyRecord) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
