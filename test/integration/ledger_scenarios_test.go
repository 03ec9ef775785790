package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/vertex-bank/banking_service/internal/domain/entities"
	apperrors "github.com/vertex-bank/banking_service/internal/domain/errors"
	"github.com/vertex-bank/banking_service/internal/domain/services/banking"
	"github.com/vertex-bank/banking_service/internal/domain/services/reconciliation"
	"github.com/vertex-bank/banking_service/internal/infrastructure/repositories/memstore"
	"github.com/vertex-bank/banking_service/pkg/logger"
)

// LedgerScenarioSuite runs the engine and reconciler together over the
// in-memory store, checking the balance identity after each flow.
type LedgerScenarioSuite struct {
	suite.Suite
	store      *memstore.MemStore
	engine     *banking.Service
	reconciler *reconciliation.Service
	userID     uuid.UUID
}

func (suite *LedgerScenarioSuite) SetupTest() {
	log := logger.NewNop()
	suite.store = memstore.New()
	suite.engine = banking.NewService(suite.store, banking.Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		IdempotencyTTL: time.Hour,
	}, log)
	suite.reconciler = reconciliation.NewService(suite.store, suite.store.Accounts(), 100, log)
	suite.userID = uuid.New()
}

func (suite *LedgerScenarioSuite) seedAccount(userID uuid.UUID, balance string) *entities.Account {
	now := time.Now()
	account := &entities.Account{
		ID:            uuid.New(),
		UserID:        userID,
		AccountNumber: entities.GenerateAccountNumber(entities.AccountTypeChecking, now),
		AccountType:   entities.AccountTypeChecking,
		Status:        entities.AccountStatusActive,
		Balance:       decimal.RequireFromString(balance),
		Currency:      "USD",
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	suite.Require().NoError(suite.store.Accounts().Create(context.Background(), account))
	return account
}

func (suite *LedgerScenarioSuite) reconcile(accountID uuid.UUID) *entities.ReconciliationResult {
	result, err := suite.reconciler.ReconcileAccount(context.Background(), accountID)
	suite.Require().NoError(err)
	return result
}

func (suite *LedgerScenarioSuite) TestSimpleDeposit() {
	account := suite.seedAccount(suite.userID, "0.00")

	result, err := suite.engine.Deposit(context.Background(), suite.userID, account.ID, &entities.DepositRequest{
		Amount:      "100.00",
		Description: "test",
	})
	suite.Require().NoError(err)

	assert.True(suite.T(), result.Amount.Equal(decimal.RequireFromString("100.00")))
	assert.True(suite.T(), result.Balance.Equal(decimal.RequireFromString("100.00")))

	recon := suite.reconcile(account.ID)
	assert.True(suite.T(), recon.Reconciled)
	assert.True(suite.T(), recon.CachedBalance.Equal(decimal.RequireFromString("100.00")))
	assert.Equal(suite.T(), int64(1), recon.EntryCount)
}

func (suite *LedgerScenarioSuite) TestInsufficientWithdrawalLeavesNoTrace() {
	account := suite.seedAccount(suite.userID, "50.00")

	_, err := suite.engine.Withdraw(context.Background(), suite.userID, account.ID, &entities.WithdrawRequest{
		Amount: "100.00",
	})
	suite.Require().Error(err)
	assert.Equal(suite.T(), apperrors.CodeInsufficientFunds, apperrors.GetErrorCode(err))

	current, err := suite.store.GetAccountByID(context.Background(), account.ID)
	suite.Require().NoError(err)
	assert.True(suite.T(), current.Balance.Equal(decimal.RequireFromString("50.00")))

	recon := suite.reconcile(account.ID)
	assert.True(suite.T(), recon.Reconciled)
	assert.Zero(suite.T(), recon.EntryCount)
}

func (suite *LedgerScenarioSuite) TestTransferMovesMoneyAtomically() {
	other := uuid.New()
	source := suite.seedAccount(suite.userID, "500.00")
	dest := suite.seedAccount(other, "200.00")

	result, err := suite.engine.Transfer(context.Background(), suite.userID, &entities.TransferRequest{
		SourceAccountNumber:      source.AccountNumber,
		DestinationAccountNumber: dest.AccountNumber,
		Amount:                   "150.00",
		OperationKey:             "k1",
	})
	suite.Require().NoError(err)
	assert.Equal(suite.T(), entities.TransferStatusCompleted, result.Status)

	finalSource, err := suite.store.GetAccountByID(context.Background(), source.ID)
	suite.Require().NoError(err)
	finalDest, err := suite.store.GetAccountByID(context.Background(), dest.ID)
	suite.Require().NoError(err)

	assert.True(suite.T(), finalSource.Balance.Equal(decimal.RequireFromString("350.00")))
	assert.True(suite.T(), finalDest.Balance.Equal(decimal.RequireFromString("350.00")))
	assert.True(suite.T(), finalSource.Balance.Add(finalDest.Balance).Equal(decimal.RequireFromString("700.00")))

	// both legs reconcile independently
	assert.True(suite.T(), suite.reconcile(source.ID).Reconciled)
	assert.True(suite.T(), suite.reconcile(dest.ID).Reconciled)
}

func (suite *LedgerScenarioSuite) TestTransferReplayMovesMoneyOnce() {
	other := uuid.New()
	source := suite.seedAccount(suite.userID, "500.00")
	dest := suite.seedAccount(other, "200.00")

	req := &entities.TransferRequest{
		SourceAccountNumber:      source.AccountNumber,
		DestinationAccountNumber: dest.AccountNumber,
		Amount:                   "200.00",
		OperationKey:             "k2",
	}

	first, err := suite.engine.Transfer(context.Background(), suite.userID, req)
	suite.Require().NoError(err)
	second, err := suite.engine.Transfer(context.Background(), suite.userID, req)
	suite.Require().NoError(err)

	assert.Equal(suite.T(), first.TransferID, second.TransferID)
	assert.True(suite.T(), first.SourceBalance.Equal(second.SourceBalance))

	finalSource, err := suite.store.GetAccountByID(context.Background(), source.ID)
	suite.Require().NoError(err)
	assert.True(suite.T(), finalSource.Balance.Equal(decimal.RequireFromString("300.00")))

	_, count, err := suite.store.SumCompletedEntries(context.Background(), source.ID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), int64(1), count)
}

func (suite *LedgerScenarioSuite) TestMixedOperationsReconcile() {
	ctx := context.Background()
	account := suite.seedAccount(suite.userID, "0.00")

	_, err := suite.engine.Deposit(ctx, suite.userID, account.ID, &entities.DepositRequest{Amount: "1000"})
	suite.Require().NoError(err)
	_, err = suite.engine.Withdraw(ctx, suite.userID, account.ID, &entities.WithdrawRequest{Amount: "250"})
	suite.Require().NoError(err)
	_, err = suite.engine.Deposit(ctx, suite.userID, account.ID, &entities.DepositRequest{Amount: "75.50"})
	suite.Require().NoError(err)

	current, err := suite.store.GetAccountByID(ctx, account.ID)
	suite.Require().NoError(err)
	assert.True(suite.T(), current.Balance.Equal(decimal.RequireFromString("825.50")))

	recon := suite.reconcile(account.ID)
	assert.True(suite.T(), recon.Reconciled)
	assert.True(suite.T(), recon.LedgerBalance.Equal(decimal.RequireFromString("825.50")))
	assert.Equal(suite.T(), int64(3), recon.EntryCount)
}

func TestLedgerScenarioSuite(t *testing.T) {
	suite.Run(t, new(LedgerScenarioSuite))
}
