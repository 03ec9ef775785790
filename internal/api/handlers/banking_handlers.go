package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/vertex-bank/banking_service/internal/domain/entities"
	"github.com/vertex-bank/banking_service/pkg/logger"
)

// BankingServiceInterface defines the interface for monetary operations
type BankingServiceInterface interface {
	Deposit(ctx context.Context, userID, accountID uuid.UUID, req *entities.DepositRequest) (*entities.OperationResult, error)
	Withdraw(ctx context.Context, userID, accountID uuid.UUID, req *entities.WithdrawRequest) (*entities.OperationResult, error)
	Transfer(ctx context.Context, userID uuid.UUID, req *entities.TransferRequest) (*entities.TransferResult, error)
}

// BankingHandlers handles deposits, withdrawals, and transfers
type BankingHandlers struct {
	bankingService BankingServiceInterface
	validator      *validator.Validate
	logger         *logger.Logger
}

// NewBankingHandlers creates a new BankingHandlers instance
func NewBankingHandlers(bankingService BankingServiceInterface, logger *logger.Logger) *BankingHandlers {
	return &BankingHandlers{
		bankingService: bankingService,
		validator:      validator.New(),
		logger:         logger,
	}
}

// headerOperationKey falls back to the Idempotency-Key header when the body
// carries no operation key
func headerOperationKey(c *gin.Context, bodyKey string) string {
	if bodyKey != "" {
		return bodyKey
	}
	return strings.TrimSpace(c.GetHeader("Idempotency-Key"))
}

// Deposit handles POST /api/v1/accounts/:id/deposit
// @Summary Deposit cash into an account
// @Description Appends a journal entry and updates the cached balance. Repeating an operation key replays the stored result.
// @Tags banking
// @Accept json
// @Produce json
// @Param id path string true "Account ID"
// @Param request body entities.DepositRequest true "Deposit details"
// @Success 200 {object} entities.OperationResult
// @Failure 400 {object} entities.ErrorResponse
// @Failure 404 {object} entities.ErrorResponse
// @Failure 409 {object} entities.ErrorResponse
// @Failure 422 {object} entities.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/accounts/{id}/deposit [post]
func (h *BankingHandlers) Deposit(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		return
	}
	accountID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req entities.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendBadRequest(c, ErrCodeInvalidRequest, MsgInvalidRequest)
		return
	}
	req.OperationKey = headerOperationKey(c, req.OperationKey)
	if err := h.validator.Struct(req); err != nil {
		SendBadRequest(c, ErrCodeValidationError, "Request validation failed", map[string]interface{}{"error": err.Error()})
		return
	}

	result, err := h.bankingService.Deposit(c.Request.Context(), userID, accountID, &req)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	SendSuccess(c, result)
}

// Withdraw handles POST /api/v1/accounts/:id/withdraw
// @Summary Withdraw cash from an account
// @Description Appends a negative journal entry after checking funds. Repeating an operation key replays the stored result.
// @Tags banking
// @Accept json
// @Produce json
// @Param id path string true "Account ID"
// @Param request body entities.WithdrawRequest true "Withdrawal details"
// @Success 200 {object} entities.OperationResult
// @Failure 400 {object} entities.ErrorResponse
// @Failure 404 {object} entities.ErrorResponse
// @Failure 409 {object} entities.ErrorResponse
// @Failure 422 {object} entities.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/accounts/{id}/withdraw [post]
func (h *BankingHandlers) Withdraw(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		return
	}
	accountID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req entities.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendBadRequest(c, ErrCodeInvalidRequest, MsgInvalidRequest)
		return
	}
	req.OperationKey = headerOperationKey(c, req.OperationKey)
	if err := h.validator.Struct(req); err != nil {
		SendBadRequest(c, ErrCodeValidationError, "Request validation failed", map[string]interface{}{"error": err.Error()})
		return
	}

	result, err := h.bankingService.Withdraw(c.Request.Context(), userID, accountID, &req)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	SendSuccess(c, result)
}

// Transfer handles POST /api/v1/transfers
// @Summary Transfer money between accounts
// @Description Moves money atomically from a source account the caller owns to a destination account, by account number. The operation key is mandatory.
// @Tags banking
// @Accept json
// @Produce json
// @Param request body entities.TransferRequest true "Transfer details"
// @Success 200 {object} entities.TransferResult
// @Failure 400 {object} entities.ErrorResponse
// @Failure 403 {object} entities.ErrorResponse
// @Failure 404 {object} entities.ErrorResponse
// @Failure 409 {object} entities.ErrorResponse
// @Failure 422 {object} entities.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/transfers [post]
func (h *BankingHandlers) Transfer(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		return
	}

	var req entities.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendBadRequest(c, ErrCodeInvalidRequest, MsgInvalidRequest)
		return
	}
	req.OperationKey = headerOperationKey(c, req.OperationKey)
	if err := h.validator.Struct(req); err != nil {
		SendBadRequest(c, ErrCodeValidationError, "Request validation failed", map[string]interface{}{"error": err.Error()})
		return
	}

	result, err := h.bankingService.Transfer(c.Request.Context(), userID, &req)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	SendSuccess(c, result)
}
