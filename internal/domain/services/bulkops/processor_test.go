package bulkops

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertex-bank/banking_service/internal/domain/entities"
	apperrors "github.com/vertex-bank/banking_service/internal/domain/errors"
	"github.com/vertex-bank/banking_service/internal/domain/services/banking"
	"github.com/vertex-bank/banking_service/internal/infrastructure/repositories/memstore"
	"github.com/vertex-bank/banking_service/pkg/logger"
)

func newTestService(store *memstore.MemStore) *Service {
	engine := banking.NewService(store, banking.Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		IdempotencyTTL: time.Hour,
	}, logger.NewNop())
	return NewService(engine, store.Users(), store.Accounts(), 0, logger.NewNop())
}

func seedCustomer(t *testing.T, store *memstore.MemStore, nationalID, balance string, kyc entities.KYCStatus, active bool) *entities.Account {
	t.Helper()
	now := time.Now()
	user := &entities.User{
		ID:         uuid.New(),
		Email:      fmt.Sprintf("%s@example.com", nationalID),
		FullName:   "Bulk Test Customer",
		NationalID: nationalID,
		Role:       entities.RoleCustomer,
		KYCStatus:  kyc,
		IsActive:   active,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	store.SeedUser(user)

	account := &entities.Account{
		ID:            uuid.New(),
		UserID:        user.ID,
		AccountNumber: entities.GenerateAccountNumber(entities.AccountTypeChecking, now),
		AccountType:   entities.AccountTypeChecking,
		Status:        entities.AccountStatusActive,
		Balance:       decimal.RequireFromString(balance),
		Currency:      "USD",
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, store.Accounts().Create(context.Background(), account))
	return account
}

func TestProcessMixedFile(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := newTestService(store)

	depositAcct := seedCustomer(t, store, "11100000001", "0.00", entities.KYCStatusVerified, true)
	withdrawAcct := seedCustomer(t, store, "11100000002", "500.00", entities.KYCStatusVerified, true)
	poorAcct := seedCustomer(t, store, "11100000003", "5.00", entities.KYCStatusVerified, true)
	seedCustomer(t, store, "11100000004", "100.00", entities.KYCStatusPending, true)

	file := strings.Join([]string{
		"NationalId,Amount,Operation",
		"11100000001,250.00,DEPOSIT",
		"11100000002,100.00,withdraw",
		"11100000003,50.00,WITHDRAW",
		"11100000004,10.00,DEPOSIT",
		"99999999999,10.00,DEPOSIT",
		"11100000001,abc,DEPOSIT",
		"11100000001,10.00,TRANSFER",
		"11100000001,10.00",
	}, "\n")

	summary, err := svc.Process(ctx, uuid.New(), "ops.csv", strings.NewReader(file))
	require.NoError(t, err)

	assert.Equal(t, 8, summary.Total)
	assert.Equal(t, 2, summary.SuccessCount)
	assert.Equal(t, 6, summary.FailureCount)
	require.Len(t, summary.Results, 8)

	deposit := summary.Results[0]
	assert.True(t, deposit.Success)
	assert.Equal(t, 1, deposit.Row)
	assert.Equal(t, depositAcct.AccountNumber, deposit.AccountNumber)
	require.NotNil(t, deposit.Balance)
	assert.True(t, deposit.Balance.Equal(decimal.RequireFromString("250.00")))

	withdraw := summary.Results[1]
	assert.True(t, withdraw.Success)
	assert.Equal(t, "WITHDRAW", withdraw.Operation)
	require.NotNil(t, withdraw.Balance)
	assert.True(t, withdraw.Balance.Equal(decimal.RequireFromString("400.00")))

	insufficient := summary.Results[2]
	assert.False(t, insufficient.Success)
	assert.Contains(t, insufficient.Error, "insufficient funds")

	unverified := summary.Results[3]
	assert.False(t, unverified.Success)
	assert.Contains(t, unverified.Error, "not verified")

	unknown := summary.Results[4]
	assert.False(t, unknown.Success)
	assert.Contains(t, unknown.Error, "no user found")

	badAmount := summary.Results[5]
	assert.False(t, badAmount.Success)
	assert.Contains(t, badAmount.Error, "decimal")

	badOp := summary.Results[6]
	assert.False(t, badOp.Success)
	assert.Contains(t, badOp.Error, "DEPOSIT or WITHDRAW")

	short := summary.Results[7]
	assert.False(t, short.Success)
	assert.Contains(t, short.Error, "expected 3 fields")

	// failing rows leave their accounts untouched
	fresh, err := store.Accounts().GetByID(ctx, poorAcct.ID)
	require.NoError(t, err)
	assert.True(t, fresh.Balance.Equal(decimal.RequireFromString("5.00")))

	fresh, err = store.Accounts().GetByID(ctx, withdrawAcct.ID)
	require.NoError(t, err)
	assert.True(t, fresh.Balance.Equal(decimal.RequireFromString("400.00")))
}

func TestProcessHeaderIsFlexible(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := newTestService(store)
	seedCustomer(t, store, "22200000001", "0.00", entities.KYCStatusVerified, true)

	file := "  National Id , AMOUNT , operation  \r\n22200000001,10.00,DEPOSIT\n"
	summary, err := svc.Process(ctx, uuid.New(), "mixed-case.csv", strings.NewReader(file))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SuccessCount)
}

func TestProcessRejectsBadFiles(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := newTestService(store)

	cases := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"blank lines only", "\n\n\n"},
		{"wrong header", "id,amount,op\n1,2,DEPOSIT\n"},
		{"header only", "NationalId,Amount,Operation\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Process(ctx, uuid.New(), "bad.csv", strings.NewReader(tc.body))
			require.Error(t, err)
			assert.Equal(t, "VALIDATION_ERROR", apperrors.GetErrorCode(err))
		})
	}
}

func TestProcessEnforcesSizeLimit(t *testing.T) {
	store := memstore.New()
	engine := banking.NewService(store, banking.DefaultConfig(), logger.NewNop())
	svc := NewService(engine, store.Users(), store.Accounts(), 64, logger.NewNop())

	body := "NationalId,Amount,Operation\n" + strings.Repeat("11100000001,10.00,DEPOSIT\n", 10)
	_, err := svc.Process(context.Background(), uuid.New(), "big.csv", strings.NewReader(body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit")
}

func TestProcessRequiresActiveCheckingAccount(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := newTestService(store)

	// verified user with a savings account but no checking account
	now := time.Now()
	user := &entities.User{
		ID:         uuid.New(),
		Email:      "savings-only@example.com",
		FullName:   "Savings Only",
		NationalID: "33300000001",
		Role:       entities.RoleCustomer,
		KYCStatus:  entities.KYCStatusVerified,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	store.SeedUser(user)
	require.NoError(t, store.Accounts().Create(ctx, &entities.Account{
		ID:            uuid.New(),
		UserID:        user.ID,
		AccountNumber: entities.GenerateAccountNumber(entities.AccountTypeSavings, now),
		AccountType:   entities.AccountTypeSavings,
		Status:        entities.AccountStatusActive,
		Balance:       decimal.Zero,
		Currency:      "USD",
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}))

	file := "NationalId,Amount,Operation\n33300000001,10.00,DEPOSIT\n"
	summary, err := svc.Process(ctx, uuid.New(), "ops.csv", strings.NewReader(file))
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.False(t, summary.Results[0].Success)
	assert.Contains(t, summary.Results[0].Error, "no active checking account")
}

func TestRowKeysAreDeterministicPerSubmission(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := newTestService(store)
	account := seedCustomer(t, store, "44400000001", "0.00", entities.KYCStatusVerified, true)

	file := "NationalId,Amount,Operation\n44400000001,10.00,DEPOSIT\n44400000001,10.00,DEPOSIT\n"
	summary, err := svc.Process(ctx, uuid.New(), "twice.csv", strings.NewReader(file))
	require.NoError(t, err)

	// distinct rows get distinct keys, so both deposits land
	assert.Equal(t, 2, summary.SuccessCount)
	fresh, err := store.Accounts().GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, fresh.Balance.Equal(decimal.RequireFromString("20.00")))
}
