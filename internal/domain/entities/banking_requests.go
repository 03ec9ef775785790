package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrorResponse is the wire shape of every error surfaced by the API
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// OpenAccountRequest represents a request to open a new account
type OpenAccountRequest struct {
	AccountType string `json:"account_type" binding:"required" validate:"required,oneof=checking savings business"`
	Currency    string `json:"currency" validate:"omitempty,len=3"`
}

// DepositRequest represents a cash deposit request.
// Amounts travel as strings to preserve their decimal scale.
type DepositRequest struct {
	Amount       string `json:"amount" binding:"required" validate:"required"`
	Description  string `json:"description" validate:"max=255"`
	OperationKey string `json:"operation_key" validate:"max=100"`
}

// WithdrawRequest represents a cash withdrawal request
type WithdrawRequest struct {
	Amount       string `json:"amount" binding:"required" validate:"required"`
	Description  string `json:"description" validate:"max=255"`
	OperationKey string `json:"operation_key" validate:"max=100"`
}

// TransferRequest represents a transfer between two accounts. The operation
// key is required but may arrive via the Idempotency-Key header instead of
// the body; the engine rejects a transfer that carries neither.
type TransferRequest struct {
	SourceAccountNumber      string `json:"source_account_number" binding:"required" validate:"required"`
	DestinationAccountNumber string `json:"destination_account_number" binding:"required" validate:"required"`
	Amount                   string `json:"amount" binding:"required" validate:"required"`
	OperationKey             string `json:"operation_key" validate:"max=100"`
	Description              string `json:"description" validate:"max=255"`
}

// OperationResult is the engine's result for a deposit or withdrawal
type OperationResult struct {
	EntryID       uuid.UUID        `json:"entry_id"`
	AccountID     uuid.UUID        `json:"account_id"`
	AccountNumber string           `json:"account_number"`
	EntryType     JournalEntryType `json:"entry_type"`
	Amount        decimal.Decimal  `json:"amount"`
	Balance       decimal.Decimal  `json:"balance"`
	Description   string           `json:"description"`
	CreatedAt     time.Time        `json:"created_at"`
}

// TransferResult is the engine's result for a completed transfer
type TransferResult struct {
	TransferID               uuid.UUID       `json:"transfer_id"`
	SourceAccountNumber      string          `json:"source_account_number"`
	DestinationAccountNumber string          `json:"destination_account_number"`
	Amount                   decimal.Decimal `json:"amount"`
	Currency                 string          `json:"currency"`
	Status                   TransferStatus  `json:"status"`
	Description              string          `json:"description"`
	OperationKey             string          `json:"operation_key"`
	SourceBalance            decimal.Decimal `json:"source_balance"`
	CreatedAt                time.Time       `json:"created_at"`
	CompletedAt              *time.Time      `json:"completed_at,omitempty"`
}

// ReconciliationResult compares an account's cached balance against the sum
// of its completed journal entries
type ReconciliationResult struct {
	AccountID     uuid.UUID       `json:"account_id"`
	AccountNumber string          `json:"account_number"`
	CachedBalance decimal.Decimal `json:"cached_balance"`
	LedgerBalance decimal.Decimal `json:"ledger_balance"`
	EntryCount    int64           `json:"entry_count"`
	Reconciled    bool            `json:"reconciled"`
	CheckedAt     time.Time       `json:"checked_at"`
}

// BulkRowResult is the outcome of one CSV data row
type BulkRowResult struct {
	Row           int              `json:"row"`
	NationalID    string           `json:"national_id"`
	Amount        decimal.Decimal  `json:"amount"`
	Operation     string           `json:"operation"`
	Success       bool             `json:"success"`
	Error         string           `json:"error,omitempty"`
	AccountNumber string           `json:"account_number,omitempty"`
	Balance       *decimal.Decimal `json:"balance,omitempty"`
}

// BulkSummary aggregates the per-row outcomes of a bulk submission
type BulkSummary struct {
	Total        int             `json:"total"`
	SuccessCount int             `json:"success_count"`
	FailureCount int             `json:"failure_count"`
	Results      []BulkRowResult `json:"results"`
}

// JournalEntryPage is a paginated slice of an account's journal
type JournalEntryPage struct {
	Items  []*JournalEntry `json:"items"`
	Total  int64           `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}
