package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/vertex-bank/banking_service/internal/domain/entities"
	"github.com/vertex-bank/banking_service/pkg/logger"
)

// AccountServiceInterface defines the interface for account operations
type AccountServiceInterface interface {
	Open(ctx context.Context, userID uuid.UUID, req *entities.OpenAccountRequest) (*entities.Account, error)
	Get(ctx context.Context, userID, accountID uuid.UUID) (*entities.Account, error)
	List(ctx context.Context, userID uuid.UUID) ([]*entities.Account, error)
	Entries(ctx context.Context, userID, accountID uuid.UUID, limit, offset int) (*entities.JournalEntryPage, error)
}

// ReconciliationServiceInterface defines the ownership-checked reconciliation
// entry point exposed to customers
type ReconciliationServiceInterface interface {
	ReconcileOwnedAccount(ctx context.Context, userID, accountID uuid.UUID) (*entities.ReconciliationResult, error)
}

// AccountHandlers handles account lifecycle and journal reads
type AccountHandlers struct {
	accountService AccountServiceInterface
	reconciler     ReconciliationServiceInterface
	validator      *validator.Validate
	logger         *logger.Logger
}

// NewAccountHandlers creates a new AccountHandlers instance
func NewAccountHandlers(accountService AccountServiceInterface, reconciler ReconciliationServiceInterface, logger *logger.Logger) *AccountHandlers {
	return &AccountHandlers{
		accountService: accountService,
		reconciler:     reconciler,
		validator:      validator.New(),
		logger:         logger,
	}
}

// OpenAccount handles POST /api/v1/accounts
// @Summary Open a new account
// @Description Creates an account of the requested type for the caller and returns its generated account number
// @Tags accounts
// @Accept json
// @Produce json
// @Param request body entities.OpenAccountRequest true "Account type and optional currency"
// @Success 201 {object} entities.Account
// @Failure 400 {object} entities.ErrorResponse
// @Failure 403 {object} entities.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/accounts [post]
func (h *AccountHandlers) OpenAccount(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		return
	}

	var req entities.OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendBadRequest(c, ErrCodeInvalidRequest, MsgInvalidRequest)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		SendBadRequest(c, ErrCodeValidationError, "Request validation failed", map[string]interface{}{"error": err.Error()})
		return
	}

	account, err := h.accountService.Open(c.Request.Context(), userID, &req)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	SendCreated(c, account)
}

// GetAccount handles GET /api/v1/accounts/:id
func (h *AccountHandlers) GetAccount(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		return
	}
	accountID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	account, err := h.accountService.Get(c.Request.Context(), userID, accountID)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	SendSuccess(c, account)
}

// ListAccounts handles GET /api/v1/accounts
func (h *AccountHandlers) ListAccounts(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		return
	}

	accounts, err := h.accountService.List(c.Request.Context(), userID)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	SendSuccess(c, gin.H{"accounts": accounts})
}

// ListEntries handles GET /api/v1/accounts/:id/entries
func (h *AccountHandlers) ListEntries(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		return
	}
	accountID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	limit, offset := pageParams(c, 20)
	page, err := h.accountService.Entries(c.Request.Context(), userID, accountID, limit, offset)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	SendSuccess(c, page)
}

// ReconcileAccount handles GET /api/v1/accounts/:id/reconcile
// @Summary Reconcile an account
// @Description Recomputes the account balance from its journal and reports whether it matches the cached balance
// @Tags accounts
// @Produce json
// @Param id path string true "Account ID"
// @Success 200 {object} entities.ReconciliationResult
// @Failure 403 {object} entities.ErrorResponse
// @Failure 404 {object} entities.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/accounts/{id}/reconcile [get]
func (h *AccountHandlers) ReconcileAccount(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		return
	}
	accountID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	result, err := h.reconciler.ReconcileOwnedAccount(c.Request.Context(), userID, accountID)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	SendSuccess(c, result)
}
