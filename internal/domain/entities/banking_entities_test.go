package entities

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAccountNumber(t *testing.T) {
	at := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		accountType AccountType
		prefix      string
	}{
		{AccountTypeChecking, "CHK"},
		{AccountTypeSavings, "SAV"},
		{AccountTypeBusiness, "BUS"},
	}

	pattern := regexp.MustCompile(`^(CHK|SAV|BUS)-20240315-[0-9A-F]{6}$`)

	for _, tt := range tests {
		t.Run(string(tt.accountType), func(t *testing.T) {
			number := GenerateAccountNumber(tt.accountType, at)
			assert.Len(t, number, 19)
			assert.True(t, strings.HasPrefix(number, tt.prefix+"-"))
			assert.Regexp(t, pattern, number)
		})
	}

	// consecutive numbers should differ in the random suffix
	a := GenerateAccountNumber(AccountTypeChecking, at)
	b := GenerateAccountNumber(AccountTypeChecking, at)
	assert.NotEqual(t, a, b)
}

func TestValidateOperationKey(t *testing.T) {
	assert.Error(t, ValidateOperationKey(""))
	assert.NoError(t, ValidateOperationKey("k"))
	assert.NoError(t, ValidateOperationKey(strings.Repeat("x", MaxOperationKeyLength)))
	assert.Error(t, ValidateOperationKey(strings.Repeat("x", MaxOperationKeyLength+1)))
}

func TestJournalEntryValidate(t *testing.T) {
	base := func() *JournalEntry {
		return &JournalEntry{
			ID:           uuid.New(),
			AccountID:    uuid.New(),
			Amount:       decimal.RequireFromString("25.00"),
			EntryType:    JournalEntryTypeDeposit,
			Status:       JournalEntryStatusCompleted,
			BalanceAfter: decimal.RequireFromString("125.00"),
			CreatedAt:    time.Now(),
		}
	}

	t.Run("valid deposit", func(t *testing.T) {
		require.NoError(t, base().Validate())
	})

	t.Run("zero amount rejected", func(t *testing.T) {
		e := base()
		e.Amount = decimal.Zero
		assert.Error(t, e.Validate())
	})

	t.Run("transfer leg requires transfer id", func(t *testing.T) {
		e := base()
		e.EntryType = JournalEntryTypeTransferDebit
		e.Amount = e.Amount.Neg()
		assert.Error(t, e.Validate())

		transferID := uuid.New()
		e.TransferID = &transferID
		assert.NoError(t, e.Validate())
	})

	t.Run("non-transfer leg must not carry transfer id", func(t *testing.T) {
		e := base()
		transferID := uuid.New()
		e.TransferID = &transferID
		assert.Error(t, e.Validate())
	})
}

func TestTransferStateTransitions(t *testing.T) {
	transfer := &Transfer{
		ID:                   uuid.New(),
		SourceAccountID:      uuid.New(),
		DestinationAccountID: uuid.New(),
		Amount:               decimal.RequireFromString("10.00"),
		Currency:             "USD",
		Status:               TransferStatusPending,
		OperationKey:         "op-1",
		CreatedAt:            time.Now(),
	}

	transfer.MarkCompleted()
	assert.Equal(t, TransferStatusCompleted, transfer.Status)
	require.NotNil(t, transfer.CompletedAt)

	failed := &Transfer{Status: TransferStatusPending}
	failed.MarkFailed("insufficient funds")
	assert.Equal(t, TransferStatusFailed, failed.Status)
	require.NotNil(t, failed.FailureReason)
	assert.Equal(t, "insufficient funds", *failed.FailureReason)
}

func TestAccountOwnershipAndStatus(t *testing.T) {
	owner := uuid.New()
	account := &Account{
		ID:            uuid.New(),
		UserID:        owner,
		AccountNumber: GenerateAccountNumber(AccountTypeChecking, time.Now()),
		AccountType:   AccountTypeChecking,
		Status:        AccountStatusActive,
		Balance:       decimal.Zero,
		Currency:      "USD",
		Version:       1,
	}

	assert.True(t, account.IsOwnedBy(owner))
	assert.False(t, account.IsOwnedBy(uuid.New()))
	assert.True(t, account.IsActive())

	account.Status = AccountStatusFrozen
	assert.False(t, account.IsActive())
}
