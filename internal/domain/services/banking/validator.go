package banking

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vertex-bank/banking_service/internal/domain/entities"
	apperrors "github.com/vertex-bank/banking_service/internal/domain/errors"
)

// maxOperationAmount caps a single monetary operation
var maxOperationAmount = decimal.New(1_000_000_000, 0)

// ParseAmount parses a client-supplied amount string and applies the
// monetary rules: positive, at most two decimal places, and within the
// single-operation cap.
func ParseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, apperrors.InvalidAmountError("amount must be a decimal number")
	}
	return CheckAmount(amount)
}

// CheckAmount validates an already-parsed amount
func CheckAmount(amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, apperrors.InvalidAmountError("amount must be greater than zero")
	}
	if !amount.Equal(amount.Truncate(2)) {
		return decimal.Zero, apperrors.InvalidAmountError("amount cannot have more than 2 decimal places")
	}
	if amount.GreaterThan(maxOperationAmount) {
		return decimal.Zero, apperrors.InvalidAmountError("amount exceeds the maximum operation size")
	}
	return amount, nil
}

// CheckAccountAccess verifies the account exists, belongs to the user, and
// accepts monetary operations
func CheckAccountAccess(account *entities.Account, userID uuid.UUID) error {
	if account == nil {
		return apperrors.AccountNotFoundError()
	}
	if !account.IsOwnedBy(userID) {
		return apperrors.UnauthorizedAccessError()
	}
	return CheckAccountStatus(account)
}

// CheckAccountStatus rejects frozen and closed accounts
func CheckAccountStatus(account *entities.Account) error {
	switch account.Status {
	case entities.AccountStatusFrozen:
		return apperrors.AccountFrozenError()
	case entities.AccountStatusClosed:
		return apperrors.AccountClosedError()
	}
	return nil
}

// CheckSufficientFunds verifies the cached balance covers the debit
func CheckSufficientFunds(account *entities.Account, amount decimal.Decimal) error {
	if account.Balance.LessThan(amount) {
		return apperrors.InsufficientFundsError().WithDetails(map[string]interface{}{
			"available": account.Balance.String(),
			"requested": amount.String(),
		})
	}
	return nil
}
