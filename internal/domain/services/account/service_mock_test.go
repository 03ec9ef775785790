package account

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vertex-bank/banking_service/internal/domain/entities"
	apperrors "github.com/vertex-bank/banking_service/internal/domain/errors"
	"github.com/vertex-bank/banking_service/pkg/logger"
)

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Create(ctx context.Context, account *entities.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Account), args.Error(1)
}

func (m *MockAccountRepository) GetByNumber(ctx context.Context, number string) (*entities.Account, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Account), args.Error(1)
}

func (m *MockAccountRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Account), args.Error(1)
}

func (m *MockAccountRepository) ListIDs(ctx context.Context, limit, offset int) ([]uuid.UUID, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockAccountRepository) GetActiveByUserAndType(ctx context.Context, userID uuid.UUID, accountType entities.AccountType) (*entities.Account, error) {
	args := m.Called(ctx, userID, accountType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Account), args.Error(1)
}

type MockJournalRepository struct {
	mock.Mock
}

func (m *MockJournalRepository) ListByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*entities.JournalEntry, error) {
	args := m.Called(ctx, accountID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.JournalEntry), args.Error(1)
}

func (m *MockJournalRepository) CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(int64), args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) GetByNationalID(ctx context.Context, nationalID string) (*entities.User, error) {
	args := m.Called(ctx, nationalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func verifiedUser(id uuid.UUID) *entities.User {
	return &entities.User{
		ID:        id,
		Email:     "user@example.com",
		Role:      entities.RoleCustomer,
		KYCStatus: entities.KYCStatusVerified,
		IsActive:  true,
	}
}

func TestOpenRetriesOnNumberCollision(t *testing.T) {
	accounts := new(MockAccountRepository)
	journal := new(MockJournalRepository)
	users := new(MockUserRepository)
	svc := NewService(accounts, journal, users, logger.NewNop())

	userID := uuid.New()
	users.On("GetByID", mock.Anything, userID).Return(verifiedUser(userID), nil)

	collision := fmt.Errorf("account number taken: %w", apperrors.ErrAlreadyExists)
	var numbers []string
	capture := func(args mock.Arguments) {
		numbers = append(numbers, args.Get(1).(*entities.Account).AccountNumber)
	}
	accounts.On("Create", mock.Anything, mock.AnythingOfType("*entities.Account")).Run(capture).Return(collision).Once()
	accounts.On("Create", mock.Anything, mock.AnythingOfType("*entities.Account")).Run(capture).Return(nil).Once()

	account, err := svc.Open(context.Background(), userID, &entities.OpenAccountRequest{AccountType: "savings"})
	require.NoError(t, err)
	require.NotNil(t, account)

	// a fresh number is generated for the second attempt
	require.Len(t, numbers, 2)
	assert.NotEqual(t, numbers[0], numbers[1])
	assert.Equal(t, numbers[1], account.AccountNumber)
	accounts.AssertExpectations(t)
	users.AssertExpectations(t)
}

func TestOpenExhaustsNumberAttempts(t *testing.T) {
	accounts := new(MockAccountRepository)
	journal := new(MockJournalRepository)
	users := new(MockUserRepository)
	svc := NewService(accounts, journal, users, logger.NewNop())

	userID := uuid.New()
	users.On("GetByID", mock.Anything, userID).Return(verifiedUser(userID), nil)

	collision := fmt.Errorf("account number taken: %w", apperrors.ErrAlreadyExists)
	accounts.On("Create", mock.Anything, mock.AnythingOfType("*entities.Account")).Return(collision).Times(maxNumberAttempts)

	_, err := svc.Open(context.Background(), userID, &entities.OpenAccountRequest{AccountType: "checking"})
	require.Error(t, err)
	assert.Equal(t, "INTERNAL_ERROR", apperrors.GetErrorCode(err))
	accounts.AssertExpectations(t)
}

func TestOpenSurfacesStorageFailures(t *testing.T) {
	accounts := new(MockAccountRepository)
	journal := new(MockJournalRepository)
	users := new(MockUserRepository)
	svc := NewService(accounts, journal, users, logger.NewNop())

	userID := uuid.New()

	t.Run("user lookup fails", func(t *testing.T) {
		users.On("GetByID", mock.Anything, userID).Return(nil, fmt.Errorf("connection reset")).Once()

		_, err := svc.Open(context.Background(), userID, &entities.OpenAccountRequest{AccountType: "checking"})
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeStorageError, apperrors.GetErrorCode(err))
	})

	t.Run("create fails with a non-collision error", func(t *testing.T) {
		users.On("GetByID", mock.Anything, userID).Return(verifiedUser(userID), nil).Once()
		accounts.On("Create", mock.Anything, mock.AnythingOfType("*entities.Account")).Return(fmt.Errorf("disk full")).Once()

		_, err := svc.Open(context.Background(), userID, &entities.OpenAccountRequest{AccountType: "checking"})
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeStorageError, apperrors.GetErrorCode(err))
	})

	users.AssertExpectations(t)
	accounts.AssertExpectations(t)
}
