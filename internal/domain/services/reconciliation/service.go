// Package reconciliation verifies the ledger invariant: every account's
// cached balance must equal the sum of its completed journal entries.
package reconciliation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vertex-bank/banking_service/internal/domain/entities"
	apperrors "github.com/vertex-bank/banking_service/internal/domain/errors"
	"github.com/vertex-bank/banking_service/internal/domain/repositories"
	"github.com/vertex-bank/banking_service/pkg/logger"
	"github.com/vertex-bank/banking_service/pkg/metrics"
)

const (
	defaultPageSize = 500

	// a sweep report keeps at most this many failing results; the full
	// count is always reported
	maxReportedMismatches = 100
)

// Service runs reconciliation checks over the ledger
type Service struct {
	store    repositories.Store
	accounts repositories.AccountRepository
	logger   *logger.Logger
	pageSize int
}

// NewService creates a reconciliation service. pageSize bounds how many
// account IDs a sweep loads per batch.
func NewService(store repositories.Store, accounts repositories.AccountRepository, pageSize int, log *logger.Logger) *Service {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Service{
		store:    store,
		accounts: accounts,
		logger:   log,
		pageSize: pageSize,
	}
}

// SweepReport summarizes a full pass over the book
type SweepReport struct {
	StartedAt  time.Time                        `json:"started_at"`
	FinishedAt time.Time                        `json:"finished_at"`
	Checked    int                              `json:"checked"`
	Mismatched int                              `json:"mismatched"`
	Errors     int                              `json:"errors"`
	Mismatches []*entities.ReconciliationResult `json:"mismatches,omitempty"`
}

// ReconcileAccount checks a single account. A mismatch observed while a
// money operation is mid-commit is transient, so a failing check is re-read
// once before it is reported.
func (s *Service) ReconcileAccount(ctx context.Context, accountID uuid.UUID) (*entities.ReconciliationResult, error) {
	tracer := otel.Tracer("banking-service/reconciliation")
	ctx, span := tracer.Start(ctx, "reconciliation.check_account")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID.String()))

	result, err := s.check(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !result.Reconciled {
		if retried, err := s.check(ctx, accountID); err == nil {
			result = retried
		}
	}

	metrics.ReconciliationChecksTotal.Inc()
	span.SetAttributes(attribute.Bool("account.reconciled", result.Reconciled))

	if !result.Reconciled {
		metrics.ReconciliationMismatchesTotal.Inc()
		s.logger.Error("Ledger mismatch detected",
			"account_id", result.AccountID.String(),
			"account_number", result.AccountNumber,
			"cached_balance", result.CachedBalance.String(),
			"ledger_balance", result.LedgerBalance.String(),
			"entry_count", result.EntryCount)
	}
	return result, nil
}

// ReconcileOwnedAccount is the customer-facing variant: the account must
// belong to the requesting user
func (s *Service) ReconcileOwnedAccount(ctx context.Context, userID, accountID uuid.UUID) (*entities.ReconciliationResult, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, apperrors.StorageError(err)
	}
	if account == nil {
		return nil, apperrors.AccountNotFoundError()
	}
	if !account.IsOwnedBy(userID) {
		return nil, apperrors.UnauthorizedAccessError()
	}
	return s.ReconcileAccount(ctx, accountID)
}

// check reads the cached balance and the ledger sum inside one transaction.
// Under read committed the two reads can still straddle a concurrent commit,
// which is why callers re-read a failing check before reporting it.
func (s *Service) check(ctx context.Context, accountID uuid.UUID) (*entities.ReconciliationResult, error) {
	var result *entities.ReconciliationResult
	err := s.store.WithinTx(ctx, func(tx repositories.OperationTx) error {
		account, err := tx.GetAccountByID(ctx, accountID)
		if err != nil {
			return apperrors.StorageError(err)
		}
		if account == nil {
			return apperrors.AccountNotFoundError()
		}

		sum, count, err := tx.SumCompletedEntries(ctx, account.ID)
		if err != nil {
			return apperrors.StorageError(err)
		}

		result = &entities.ReconciliationResult{
			AccountID:     account.ID,
			AccountNumber: account.AccountNumber,
			CachedBalance: account.Balance,
			LedgerBalance: sum,
			EntryCount:    count,
			Reconciled:    account.Balance.Equal(sum),
			CheckedAt:     time.Now(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Sweep reconciles every account in the book, paging through IDs in
// creation order. Individual check failures are counted and skipped so one
// broken row cannot stall the sweep.
func (s *Service) Sweep(ctx context.Context) (*SweepReport, error) {
	tracer := otel.Tracer("banking-service/reconciliation")
	ctx, span := tracer.Start(ctx, "reconciliation.sweep")
	defer span.End()

	report := &SweepReport{StartedAt: time.Now()}

	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ids, err := s.accounts.ListIDs(ctx, s.pageSize, offset)
		if err != nil {
			return nil, apperrors.StorageError(err)
		}
		if len(ids) == 0 {
			break
		}

		for _, id := range ids {
			result, err := s.ReconcileAccount(ctx, id)
			if err != nil {
				report.Errors++
				s.logger.Warn("Reconciliation check failed",
					"account_id", id.String(),
					"error", err.Error())
				continue
			}
			report.Checked++
			if !result.Reconciled {
				report.Mismatched++
				if len(report.Mismatches) < maxReportedMismatches {
					report.Mismatches = append(report.Mismatches, result)
				}
			}
		}
		offset += len(ids)
	}

	report.FinishedAt = time.Now()
	span.SetAttributes(
		attribute.Int("sweep.checked", report.Checked),
		attribute.Int("sweep.mismatched", report.Mismatched),
	)

	if report.Mismatched > 0 {
		s.logger.Error("Reconciliation sweep found mismatches",
			"checked", report.Checked,
			"mismatched", report.Mismatched,
			"errors", report.Errors,
			"duration", report.FinishedAt.Sub(report.StartedAt).String())
	} else {
		s.logger.Info("Reconciliation sweep completed",
			"checked", report.Checked,
			"errors", report.Errors,
			"duration", report.FinishedAt.Sub(report.StartedAt).String())
	}
	return report, nil
}
