// Package banking implements the money movement engine: deposits,
// withdrawals, and transfers against the append-only journal, guarded by
// optimistic concurrency control and per-user idempotency keys.
package banking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vertex-bank/banking_service/internal/domain/entities"
	apperrors "github.com/vertex-bank/banking_service/internal/domain/errors"
	"github.com/vertex-bank/banking_service/internal/domain/repositories"
	"github.com/vertex-bank/banking_service/pkg/logger"
	"github.com/vertex-bank/banking_service/pkg/metrics"
	"github.com/vertex-bank/banking_service/pkg/retry"
)

// Config tunes the engine's concurrency retry loop and idempotency window
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	IdempotencyTTL time.Duration
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: 50 * time.Millisecond,
		IdempotencyTTL: 24 * time.Hour,
	}
}

// Service executes monetary operations. Every operation runs inside a store
// transaction: journal entries, balance updates, and the transfer row commit
// or roll back together. A version conflict on the balance update rolls the
// attempt back and the whole attempt is re-run with backoff. Idempotency
// records are consulted before the first attempt and written after a
// successful commit.
type Service struct {
	store          repositories.Store
	retrier        *retry.Retrier
	logger         *logger.Logger
	idempotencyTTL time.Duration
}

// NewService creates the banking engine
func NewService(store repositories.Store, cfg Config, log *logger.Logger) *Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 50 * time.Millisecond
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}

	policy := retry.Policy{
		MaxRetries:    cfg.MaxAttempts - 1,
		InitialDelay:  cfg.InitialBackoff,
		MaxDelay:      time.Second,
		Multiplier:    2.0,
		RetryableFunc: apperrors.IsVersionConflict,
	}

	return &Service{
		store:          store,
		retrier:        retry.NewRetrier(policy, log.Zap()),
		logger:         log,
		idempotencyTTL: cfg.IdempotencyTTL,
	}
}

// Deposit credits an active account owned by the user and returns the
// journal entry that was written
func (s *Service) Deposit(ctx context.Context, userID, accountID uuid.UUID, req *entities.DepositRequest) (*entities.OperationResult, error) {
	amount, err := ParseAmount(req.Amount)
	if err != nil {
		return nil, s.reject(opDeposit, err)
	}
	if req.OperationKey != "" {
		if err := entities.ValidateOperationKey(req.OperationKey); err != nil {
			return nil, s.reject(opDeposit, apperrors.ValidationError("operation_key", err.Error()))
		}
		stored, err := s.beginIdempotent(ctx, userID, req.OperationKey, opDeposit)
		if err != nil {
			s.logFailure("Deposit", userID, err)
			return nil, s.reject(opDeposit, err)
		}
		if stored != nil {
			result, err := decodeOperationResult(stored)
			if err != nil {
				s.logFailure("Deposit", userID, err)
				return nil, s.reject(opDeposit, err)
			}
			s.markReplayed(opDeposit)
			s.logger.Info("Deposit replayed from idempotency record",
				"user_id", userID.String(),
				"operation_key", req.OperationKey)
			return result, nil
		}
	}
	description := req.Description
	if description == "" {
		description = "Cash deposit"
	}

	out, err := s.run(ctx, opDeposit, func(tx repositories.OperationTx) (interface{}, error) {
		account, err := tx.GetAccountByID(ctx, accountID)
		if err != nil {
			return nil, apperrors.StorageError(err)
		}
		if err := CheckAccountAccess(account, userID); err != nil {
			return nil, err
		}

		expectedVersion := account.Version
		account.Balance = account.Balance.Add(amount)

		entry := &entities.JournalEntry{
			ID:           uuid.New(),
			AccountID:    account.ID,
			Amount:       amount,
			EntryType:    entities.JournalEntryTypeDeposit,
			Status:       entities.JournalEntryStatusCompleted,
			BalanceAfter: account.Balance,
			Description:  description,
		}
		if err := tx.CreateJournalEntry(ctx, entry); err != nil {
			return nil, apperrors.StorageError(err)
		}
		if err := tx.UpdateAccountBalance(ctx, account, expectedVersion); err != nil {
			return nil, err
		}

		return &entities.OperationResult{
			EntryID:       entry.ID,
			AccountID:     account.ID,
			AccountNumber: account.AccountNumber,
			EntryType:     entry.EntryType,
			Amount:        amount,
			Balance:       account.Balance,
			Description:   description,
			CreatedAt:     entry.CreatedAt,
		}, nil
	})
	if err != nil {
		s.logFailure("Deposit", userID, err)
		return nil, err
	}

	result := out.(*entities.OperationResult)
	if req.OperationKey != "" {
		s.recordIdempotency(ctx, userID, req.OperationKey, opDeposit, result)
	}
	s.logger.Info("Deposit completed",
		"user_id", userID.String(),
		"account_number", result.AccountNumber,
		"amount", amount.String(),
		"balance", result.Balance.String(),
		"entry_id", result.EntryID.String())
	return result, nil
}

// Withdraw debits an active account owned by the user. The cached balance
// must cover the full amount; overdrafts are rejected before any entry is
// written.
func (s *Service) Withdraw(ctx context.Context, userID, accountID uuid.UUID, req *entities.WithdrawRequest) (*entities.OperationResult, error) {
	amount, err := ParseAmount(req.Amount)
	if err != nil {
		return nil, s.reject(opWithdraw, err)
	}
	if req.OperationKey != "" {
		if err := entities.ValidateOperationKey(req.OperationKey); err != nil {
			return nil, s.reject(opWithdraw, apperrors.ValidationError("operation_key", err.Error()))
		}
		stored, err := s.beginIdempotent(ctx, userID, req.OperationKey, opWithdraw)
		if err != nil {
			s.logFailure("Withdrawal", userID, err)
			return nil, s.reject(opWithdraw, err)
		}
		if stored != nil {
			result, err := decodeOperationResult(stored)
			if err != nil {
				s.logFailure("Withdrawal", userID, err)
				return nil, s.reject(opWithdraw, err)
			}
			s.markReplayed(opWithdraw)
			s.logger.Info("Withdrawal replayed from idempotency record",
				"user_id", userID.String(),
				"operation_key", req.OperationKey)
			return result, nil
		}
	}
	description := req.Description
	if description == "" {
		description = "Cash withdrawal"
	}

	out, err := s.run(ctx, opWithdraw, func(tx repositories.OperationTx) (interface{}, error) {
		account, err := tx.GetAccountByID(ctx, accountID)
		if err != nil {
			return nil, apperrors.StorageError(err)
		}
		if err := CheckAccountAccess(account, userID); err != nil {
			return nil, err
		}
		if err := CheckSufficientFunds(account, amount); err != nil {
			return nil, err
		}

		expectedVersion := account.Version
		account.Balance = account.Balance.Sub(amount)

		entry := &entities.JournalEntry{
			ID:           uuid.New(),
			AccountID:    account.ID,
			Amount:       amount.Neg(),
			EntryType:    entities.JournalEntryTypeWithdrawal,
			Status:       entities.JournalEntryStatusCompleted,
			BalanceAfter: account.Balance,
			Description:  description,
		}
		if err := tx.CreateJournalEntry(ctx, entry); err != nil {
			return nil, apperrors.StorageError(err)
		}
		if err := tx.UpdateAccountBalance(ctx, account, expectedVersion); err != nil {
			return nil, err
		}

		return &entities.OperationResult{
			EntryID:       entry.ID,
			AccountID:     account.ID,
			AccountNumber: account.AccountNumber,
			EntryType:     entry.EntryType,
			Amount:        amount,
			Balance:       account.Balance,
			Description:   description,
			CreatedAt:     entry.CreatedAt,
		}, nil
	})
	if err != nil {
		s.logFailure("Withdrawal", userID, err)
		return nil, err
	}

	result := out.(*entities.OperationResult)
	if req.OperationKey != "" {
		s.recordIdempotency(ctx, userID, req.OperationKey, opWithdraw, result)
	}
	s.logger.Info("Withdrawal completed",
		"user_id", userID.String(),
		"account_number", result.AccountNumber,
		"amount", amount.String(),
		"balance", result.Balance.String(),
		"entry_id", result.EntryID.String())
	return result, nil
}

// Transfer atomically moves money between two accounts: one transfer row,
// a debit entry on the source, a credit entry on the destination, and both
// balance updates in a single transaction. The operation key is mandatory
// and doubly guarded by the transfers table's uniqueness constraint.
func (s *Service) Transfer(ctx context.Context, userID uuid.UUID, req *entities.TransferRequest) (*entities.TransferResult, error) {
	amount, err := ParseAmount(req.Amount)
	if err != nil {
		return nil, s.reject(opTransfer, err)
	}
	if err := entities.ValidateOperationKey(req.OperationKey); err != nil {
		return nil, s.reject(opTransfer, apperrors.ValidationError("operation_key", err.Error()))
	}

	stored, err := s.beginIdempotent(ctx, userID, req.OperationKey, opTransfer)
	if err != nil {
		s.logFailure("Transfer", userID, err)
		return nil, s.reject(opTransfer, err)
	}
	if stored != nil {
		result, err := decodeTransferResult(stored)
		if err != nil {
			s.logFailure("Transfer", userID, err)
			return nil, s.reject(opTransfer, err)
		}
		s.markReplayed(opTransfer)
		s.logger.Info("Transfer replayed from idempotency record",
			"user_id", userID.String(),
			"operation_key", req.OperationKey)
		return result, nil
	}

	// A completed transfer whose idempotency record never made it to the
	// store (recording is best-effort) is still caught by the transfer
	// table itself.
	prior, err := s.store.GetTransferByOperationKey(ctx, req.OperationKey)
	if err != nil {
		wrapped := apperrors.StorageError(err)
		s.logFailure("Transfer", userID, wrapped)
		return nil, s.reject(opTransfer, wrapped)
	}
	if prior != nil {
		dup := apperrors.DuplicateOperationError()
		s.logFailure("Transfer", userID, dup)
		return nil, s.reject(opTransfer, dup)
	}

	out, err := s.run(ctx, opTransfer, func(tx repositories.OperationTx) (interface{}, error) {
		source, err := tx.GetAccountByNumber(ctx, req.SourceAccountNumber)
		if err != nil {
			return nil, apperrors.StorageError(err)
		}
		dest, err := tx.GetAccountByNumber(ctx, req.DestinationAccountNumber)
		if err != nil {
			return nil, apperrors.StorageError(err)
		}
		if source == nil || dest == nil {
			return nil, apperrors.AccountNotFoundError()
		}
		if source.ID == dest.ID {
			return nil, apperrors.SelfTransferError()
		}
		if !source.IsOwnedBy(userID) {
			return nil, apperrors.UnauthorizedAccessError()
		}
		if err := CheckAccountStatus(source); err != nil {
			return nil, err
		}
		if err := CheckAccountStatus(dest); err != nil {
			return nil, err
		}
		if err := CheckSufficientFunds(source, amount); err != nil {
			return nil, err
		}

		sourceVersion := source.Version
		destVersion := dest.Version
		source.Balance = source.Balance.Sub(amount)
		dest.Balance = dest.Balance.Add(amount)

		transfer := &entities.Transfer{
			ID:                   uuid.New(),
			SourceAccountID:      source.ID,
			DestinationAccountID: dest.ID,
			Amount:               amount,
			Currency:             source.Currency,
			Description:          req.Description,
			OperationKey:         req.OperationKey,
		}
		transfer.MarkCompleted()
		if err := tx.CreateTransfer(ctx, transfer); err != nil {
			if errors.Is(err, apperrors.ErrAlreadyExists) {
				return nil, err
			}
			return nil, apperrors.StorageError(err)
		}

		debitDescription := req.Description
		creditDescription := req.Description
		if req.Description == "" {
			debitDescription = "Transfer to " + dest.AccountNumber
			creditDescription = "Transfer from " + source.AccountNumber
		}

		debit := &entities.JournalEntry{
			ID:           uuid.New(),
			AccountID:    source.ID,
			Amount:       amount.Neg(),
			EntryType:    entities.JournalEntryTypeTransferDebit,
			Status:       entities.JournalEntryStatusCompleted,
			BalanceAfter: source.Balance,
			TransferID:   &transfer.ID,
			Description:  debitDescription,
		}
		credit := &entities.JournalEntry{
			ID:           uuid.New(),
			AccountID:    dest.ID,
			Amount:       amount,
			EntryType:    entities.JournalEntryTypeTransferCredit,
			Status:       entities.JournalEntryStatusCompleted,
			BalanceAfter: dest.Balance,
			TransferID:   &transfer.ID,
			Description:  creditDescription,
		}
		if err := tx.CreateJournalEntry(ctx, debit); err != nil {
			return nil, apperrors.StorageError(err)
		}
		if err := tx.CreateJournalEntry(ctx, credit); err != nil {
			return nil, apperrors.StorageError(err)
		}

		// update balances in a stable order so concurrent opposite
		// transfers cannot deadlock on row locks
		first, firstVersion := source, sourceVersion
		second, secondVersion := dest, destVersion
		if bytes.Compare(dest.ID[:], source.ID[:]) < 0 {
			first, firstVersion = dest, destVersion
			second, secondVersion = source, sourceVersion
		}
		if err := tx.UpdateAccountBalance(ctx, first, firstVersion); err != nil {
			return nil, err
		}
		if err := tx.UpdateAccountBalance(ctx, second, secondVersion); err != nil {
			return nil, err
		}

		return &entities.TransferResult{
			TransferID:               transfer.ID,
			SourceAccountNumber:      source.AccountNumber,
			DestinationAccountNumber: dest.AccountNumber,
			Amount:                   amount,
			Currency:                 transfer.Currency,
			Status:                   transfer.Status,
			Description:              req.Description,
			OperationKey:             req.OperationKey,
			SourceBalance:            source.Balance,
			CreatedAt:                transfer.CreatedAt,
			CompletedAt:              transfer.CompletedAt,
		}, nil
	})
	if err != nil {
		s.logFailure("Transfer", userID, err)
		return nil, err
	}

	result := out.(*entities.TransferResult)
	s.recordIdempotency(ctx, userID, req.OperationKey, opTransfer, result)
	s.logger.Info("Transfer completed",
		"user_id", userID.String(),
		"transfer_id", result.TransferID.String(),
		"source", result.SourceAccountNumber,
		"destination", result.DestinationAccountNumber,
		"amount", amount.String())
	return result, nil
}

// run executes one operation attempt function under the retry policy. Each
// attempt gets a fresh transaction; only version conflicts are retried.
func (s *Service) run(ctx context.Context, operation string, fn func(tx repositories.OperationTx) (interface{}, error)) (interface{}, error) {
	result, err := s.retrier.DoWithResult(ctx, func() (interface{}, error) {
		var out interface{}
		txErr := s.store.WithinTx(ctx, func(tx repositories.OperationTx) error {
			v, err := fn(tx)
			if err != nil {
				return err
			}
			out = v
			return nil
		})
		if txErr != nil {
			if apperrors.IsVersionConflict(txErr) {
				metrics.ConcurrencyConflictsTotal.Inc()
				metrics.OperationRetriesTotal.WithLabelValues(operation).Inc()
			}
			return nil, txErr
		}
		return out, nil
	})
	if err != nil {
		metrics.OperationsTotal.WithLabelValues(operation, metrics.OutcomeFailure).Inc()
		return nil, mapOperationError(err)
	}
	metrics.OperationsTotal.WithLabelValues(operation, metrics.OutcomeSuccess).Inc()
	return result, nil
}

// reject records a failed operation that never reached the store
func (s *Service) reject(operation string, err error) error {
	metrics.OperationsTotal.WithLabelValues(operation, metrics.OutcomeFailure).Inc()
	return err
}

// markReplayed counts an operation served from its idempotency record
func (s *Service) markReplayed(operation string) {
	metrics.IdempotentReplaysTotal.WithLabelValues(operation).Inc()
	metrics.OperationsTotal.WithLabelValues(operation, metrics.OutcomeReplayed).Inc()
}

func (s *Service) logFailure(operation string, userID uuid.UUID, err error) {
	s.logger.Warn(operation+" failed",
		"user_id", userID.String(),
		"code", apperrors.GetErrorCode(err),
		"error", err.Error())
}

// mapOperationError translates transport-level failures into stable domain
// errors: retry exhaustion becomes a concurrency conflict, a uniqueness
// violation on the operation key becomes a duplicate operation, and
// anything without a domain code becomes a storage error.
func mapOperationError(err error) error {
	switch {
	case errors.Is(err, retry.ErrMaxRetriesExceeded):
		return apperrors.ConcurrencyConflictError()
	case errors.Is(err, apperrors.ErrAlreadyExists):
		return apperrors.DuplicateOperationError()
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return apperrors.StorageError(err)
}

func decodeOperationResult(body json.RawMessage) (*entities.OperationResult, error) {
	var result entities.OperationResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, apperrors.InternalError("stored operation result is unreadable", err)
	}
	return &result, nil
}

func decodeTransferResult(body json.RawMessage) (*entities.TransferResult, error) {
	var result entities.TransferResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, apperrors.InternalError("stored operation result is unreadable", err)
	}
	return &result, nil
}
