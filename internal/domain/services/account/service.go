// Package account manages account lifecycle and read access: opening
// accounts for verified users, listing holdings, and paging the journal.
package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vertex-bank/banking_service/internal/domain/entities"
	apperrors "github.com/vertex-bank/banking_service/internal/domain/errors"
	"github.com/vertex-bank/banking_service/internal/domain/repositories"
	"github.com/vertex-bank/banking_service/pkg/logger"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	// number generation retries on the rare suffix collision
	maxNumberAttempts = 5
)

// Service provides account lifecycle operations
type Service struct {
	accounts repositories.AccountRepository
	journal  repositories.JournalRepository
	users    repositories.UserRepository
	logger   *logger.Logger
}

// NewService creates a new account service
func NewService(
	accounts repositories.AccountRepository,
	journal repositories.JournalRepository,
	users repositories.UserRepository,
	log *logger.Logger,
) *Service {
	return &Service{
		accounts: accounts,
		journal:  journal,
		users:    users,
		logger:   log,
	}
}

// Open provisions a new account for the user. The user must be active and
// KYC-verified; the account starts at zero balance, version 1.
func (s *Service) Open(ctx context.Context, userID uuid.UUID, req *entities.OpenAccountRequest) (*entities.Account, error) {
	accountType := entities.AccountType(req.AccountType)
	if err := accountType.Validate(); err != nil {
		return nil, apperrors.ValidationError("account_type", err.Error())
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}
	if !validCurrency(currency) {
		return nil, apperrors.ValidationError("currency", "currency must be a 3-letter ISO code")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperrors.StorageError(err)
	}
	if user == nil || !user.IsActive {
		return nil, apperrors.UnauthorizedAccessError()
	}
	if !user.IsVerified() {
		return nil, apperrors.UnauthorizedAccessError().WithDetails(map[string]interface{}{
			"reason": "kyc_verification_required",
		})
	}

	var lastErr error
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		now := time.Now()
		account := &entities.Account{
			ID:            uuid.New(),
			UserID:        userID,
			AccountNumber: entities.GenerateAccountNumber(accountType, now),
			AccountType:   accountType,
			Status:        entities.AccountStatusActive,
			Balance:       decimal.Zero,
			Currency:      currency,
			Version:       1,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		err := s.accounts.Create(ctx, account)
		if err == nil {
			s.logger.Info("Account opened",
				"user_id", userID.String(),
				"account_id", account.ID.String(),
				"account_number", account.AccountNumber,
				"account_type", string(accountType))
			return account, nil
		}
		if !errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, apperrors.StorageError(err)
		}
		lastErr = err
		s.logger.Warn("Account number collision, regenerating",
			"user_id", userID.String(),
			"attempt", attempt+1)
	}

	return nil, apperrors.InternalError("could not allocate an account number", lastErr)
}

// Get returns an account the user owns
func (s *Service) Get(ctx context.Context, userID, accountID uuid.UUID) (*entities.Account, error) {
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
	return account, nil
}

// List returns all accounts owned by the user, newest first
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*entities.Account, error) {
	accounts, err := s.accounts.ListByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.StorageError(err)
	}
	return accounts, nil
}

// Entries returns one page of the account's journal, newest first
func (s *Service) Entries(ctx context.Context, userID, accountID uuid.UUID, limit, offset int) (*entities.JournalEntryPage, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	if _, err := s.Get(ctx, userID, accountID); err != nil {
		return nil, err
	}

	items, err := s.journal.ListByAccountID(ctx, accountID, limit, offset)
	if err != nil {
		return nil, apperrors.StorageError(err)
	}
	total, err := s.journal.CountByAccountID(ctx, accountID)
	if err != nil {
		return nil, apperrors.StorageError(err)
	}

	return &entities.JournalEntryPage{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, nil
}

func validCurrency(c string) bool {
	if len(c) != 3 {
		return false
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
