package account

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertex-bank/banking_service/internal/domain/entities"
	apperrors "github.com/vertex-bank/banking_service/internal/domain/errors"
	"github.com/vertex-bank/banking_service/internal/infrastructure/repositories/memstore"
	"github.com/vertex-bank/banking_service/pkg/logger"
)

func newTestService(store *memstore.MemStore) *Service {
	return NewService(store.Accounts(), store.Journal(), store.Users(), logger.NewNop())
}

func seedUser(store *memstore.MemStore, kyc entities.KYCStatus, active bool) *entities.User {
	user := &entities.User{
		ID:         uuid.New(),
		Email:      "user@example.com",
		FullName:   "Test User",
		NationalID: fmt.Sprintf("99%d", uuid.New().ID()),
		Role:       entities.RoleCustomer,
		KYCStatus:  kyc,
		IsActive:   active,
	}
	store.SeedUser(user)
	return user
}

func TestOpenAccount(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := newTestService(store)
	user := seedUser(store, entities.KYCStatusVerified, true)

	account, err := svc.Open(ctx, user.ID, &entities.OpenAccountRequest{AccountType: "checking"})
	require.NoError(t, err)

	assert.Equal(t, entities.AccountTypeChecking, account.AccountType)
	assert.Equal(t, entities.AccountStatusActive, account.Status)
	assert.True(t, account.Balance.IsZero())
	assert.Equal(t, int64(1), account.Version)
	assert.Equal(t, "USD", account.Currency)
	assert.True(t, strings.HasPrefix(account.AccountNumber, "CHK-"))

	// persisted and owned
	loaded, err := svc.Get(ctx, user.ID, account.ID)
	require.NoError(t, err)
	assert.Equal(t, account.AccountNumber, loaded.AccountNumber)
}

func TestOpenAccountValidation(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := newTestService(store)
	user := seedUser(store, entities.KYCStatusVerified, true)

	t.Run("bad type", func(t *testing.T) {
		_, err := svc.Open(ctx, user.ID, &entities.OpenAccountRequest{AccountType: "offshore"})
		require.Error(t, err)
		assert.Equal(t, "VALIDATION_ERROR", apperrors.GetErrorCode(err))
	})

	t.Run("bad currency", func(t *testing.T) {
		_, err := svc.Open(ctx, user.ID, &entities.OpenAccountRequest{AccountType: "savings", Currency: "dollars"})
		require.Error(t, err)
		assert.Equal(t, "VALIDATION_ERROR", apperrors.GetErrorCode(err))
	})

	t.Run("lowercase currency normalized", func(t *testing.T) {
		account, err := svc.Open(ctx, user.ID, &entities.OpenAccountRequest{AccountType: "savings", Currency: "eur"})
		require.NoError(t, err)
		assert.Equal(t, "EUR", account.Currency)
	})
}

func TestOpenAccountRequiresVerifiedUser(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := newTestService(store)

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Open(ctx, uuid.New(), &entities.OpenAccountRequest{AccountType: "checking"})
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeUnauthorizedAccess, apperrors.GetErrorCode(err))
	})

	t.Run("pending kyc", func(t *testing.T) {
		pending := seedUser(store, entities.KYCStatusPending, true)
		_, err := svc.Open(ctx, pending.ID, &entities.OpenAccountRequest{AccountType: "checking"})
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeUnauthorizedAccess, apperrors.GetErrorCode(err))
		assert.Equal(t, "kyc_verification_required", apperrors.GetErrorDetails(err)["reason"])
	})

	t.Run("deactivated user", func(t *testing.T) {
		inactive := seedUser(store, entities.KYCStatusVerified, false)
		_, err := svc.Open(ctx, inactive.ID, &entities.OpenAccountRequest{AccountType: "checking"})
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeUnauthorizedAccess, apperrors.GetErrorCode(err))
	})
}

func TestGetEnforcesOwnership(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := newTestService(store)
	owner := seedUser(store, entities.KYCStatusVerified, true)
	stranger := seedUser(store, entities.KYCStatusVerified, true)

	account, err := svc.Open(ctx, owner.ID, &entities.OpenAccountRequest{AccountType: "checking"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, stranger.ID, account.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnauthorizedAccess, apperrors.GetErrorCode(err))

	_, err = svc.Get(ctx, owner.ID, uuid.New())
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeAccountNotFound, apperrors.GetErrorCode(err))
}

func TestListAccounts(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := newTestService(store)
	user := seedUser(store, entities.KYCStatusVerified, true)

	for _, at := range []string{"checking", "savings", "business"} {
		_, err := svc.Open(ctx, user.ID, &entities.OpenAccountRequest{AccountType: at})
		require.NoError(t, err)
	}

	accounts, err := svc.List(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, accounts, 3)

	empty, err := svc.List(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestEntriesPaging(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := newTestService(store)
	user := seedUser(store, entities.KYCStatusVerified, true)

	account, err := svc.Open(ctx, user.ID, &entities.OpenAccountRequest{AccountType: "checking"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		entry := &entities.JournalEntry{
			ID:           uuid.New(),
			AccountID:    account.ID,
			Amount:       decimal.RequireFromString("10.00"),
			EntryType:    entities.JournalEntryTypeDeposit,
			Status:       entities.JournalEntryStatusCompleted,
			BalanceAfter: decimal.RequireFromString(fmt.Sprintf("%d0.00", i+1)),
			Description:  fmt.Sprintf("entry %d", i+1),
		}
		require.NoError(t, store.CreateJournalEntry(ctx, entry))
	}

	page, err := svc.Entries(ctx, user.ID, account.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "entry 3", page.Items[0].Description)

	// limit is clamped and defaults applied
	page, err = svc.Entries(ctx, user.ID, account.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, defaultPageSize, page.Limit)

	page, err = svc.Entries(ctx, user.ID, account.ID, 10_000, 0)
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, page.Limit)

	// ownership applies to reads too
	_, err = svc.Entries(ctx, uuid.New(), account.ID, 10, 0)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnauthorizedAccess, apperrors.GetErrorCode(err))
}
