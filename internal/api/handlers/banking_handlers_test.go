package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertex-bank/banking_service/internal/domain/entities"
	apperrors "github.com/vertex-bank/banking_service/internal/domain/errors"
	"github.com/vertex-bank/banking_service/pkg/logger"
)

// stubBankingService records the arguments it was called with and returns
// canned results
type stubBankingService struct {
	gotUserID    uuid.UUID
	gotAccountID uuid.UUID
	gotDeposit   *entities.DepositRequest
	gotWithdraw  *entities.WithdrawRequest
	gotTransfer  *entities.TransferRequest

	opResult       *entities.OperationResult
	transferResult *entities.TransferResult
	err            error
}

func (s *stubBankingService) Deposit(ctx context.Context, userID, accountID uuid.UUID, req *entities.DepositRequest) (*entities.OperationResult, error) {
	s.gotUserID, s.gotAccountID, s.gotDeposit = userID, accountID, req
	if s.err != nil {
		return nil, s.err
	}
	return s.opResult, nil
}

func (s *stubBankingService) Withdraw(ctx context.Context, userID, accountID uuid.UUID, req *entities.WithdrawRequest) (*entities.OperationResult, error) {
	s.gotUserID, s.gotAccountID, s.gotWithdraw = userID, accountID, req
	if s.err != nil {
		return nil, s.err
	}
	return s.opResult, nil
}

func (s *stubBankingService) Transfer(ctx context.Context, userID uuid.UUID, req *entities.TransferRequest) (*entities.TransferResult, error) {
	s.gotUserID, s.gotTransfer = userID, req
	if s.err != nil {
		return nil, s.err
	}
	return s.transferResult, nil
}

func newBankingRouter(svc BankingServiceInterface, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)

	h := NewBankingHandlers(svc, logger.NewNop())
	router := gin.New()
	authed := router.Group("", func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	})
	authed.POST("/api/v1/accounts/:id/deposit", h.Deposit)
	authed.POST("/api/v1/accounts/:id/withdraw", h.Withdraw)
	authed.POST("/api/v1/transfers", h.Transfer)
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestDeposit_Success(t *testing.T) {
	userID := uuid.New()
	accountID := uuid.New()

	svc := &stubBankingService{
		opResult: &entities.OperationResult{
			EntryID:       uuid.New(),
			AccountID:     accountID,
			AccountNumber: "CHK-20250101-A1B2C3",
			EntryType:     entities.JournalEntryTypeDeposit,
			Amount:        decimal.RequireFromString("100.50"),
			Balance:       decimal.RequireFromString("150.50"),
			CreatedAt:     time.Now(),
		},
	}
	router := newBankingRouter(svc, userID)

	w := postJSON(t, router, "/api/v1/accounts/"+accountID.String()+"/deposit", map[string]string{
		"amount":        "100.50",
		"operation_key": "dep-001",
	}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID, svc.gotUserID)
	assert.Equal(t, accountID, svc.gotAccountID)
	assert.Equal(t, "100.50", svc.gotDeposit.Amount)
	assert.Equal(t, "dep-001", svc.gotDeposit.OperationKey)

	var result entities.OperationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Balance.Equal(decimal.RequireFromString("150.50")))
}

func TestDeposit_IdempotencyKeyHeaderFallback(t *testing.T) {
	userID := uuid.New()
	accountID := uuid.New()

	svc := &stubBankingService{opResult: &entities.OperationResult{}}
	router := newBankingRouter(svc, userID)

	// No operation_key in the body: the header supplies it
	w := postJSON(t, router, "/api/v1/accounts/"+accountID.String()+"/deposit", map[string]string{
		"amount": "25.00",
	}, map[string]string{"Idempotency-Key": "hdr-key-7"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hdr-key-7", svc.gotDeposit.OperationKey)
}

func TestDeposit_BodyKeyWinsOverHeader(t *testing.T) {
	userID := uuid.New()
	accountID := uuid.New()

	svc := &stubBankingService{opResult: &entities.OperationResult{}}
	router := newBankingRouter(svc, userID)

	w := postJSON(t, router, "/api/v1/accounts/"+accountID.String()+"/deposit", map[string]string{
		"amount":        "25.00",
		"operation_key": "body-key",
	}, map[string]string{"Idempotency-Key": "hdr-key"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "body-key", svc.gotDeposit.OperationKey)
}

func TestDeposit_RejectsBadRequests(t *testing.T) {
	userID := uuid.New()
	accountID := uuid.New()

	tests := []struct {
		name           string
		path           string
		body           map[string]string
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "Missing amount",
			path:           "/api/v1/accounts/" + accountID.String() + "/deposit",
			body:           map[string]string{"description": "no amount"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_REQUEST",
		},
		{
			name:           "Account id not a UUID",
			path:           "/api/v1/accounts/not-a-uuid/deposit",
			body:           map[string]string{"amount": "10.00"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_ID",
		},
		{
			name:           "Operation key over the length cap",
			path:           "/api/v1/accounts/" + accountID.String() + "/deposit",
			body:           map[string]string{"amount": "10.00", "operation_key": strings.Repeat("k", 101)},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubBankingService{opResult: &entities.OperationResult{}}
			router := newBankingRouter(svc, userID)

			w := postJSON(t, router, tt.path, tt.body, nil)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedCode)
			assert.Nil(t, svc.gotDeposit, "service must not be reached")
		})
	}
}

func TestDeposit_RequiresAuthentication(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := NewBankingHandlers(&stubBankingService{}, logger.NewNop())
	router := gin.New()
	router.POST("/api/v1/accounts/:id/deposit", h.Deposit)

	w := postJSON(t, router, "/api/v1/accounts/"+uuid.NewString()+"/deposit", map[string]string{
		"amount": "10.00",
	}, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
}

func TestDeposit_MapsDomainErrors(t *testing.T) {
	userID := uuid.New()
	accountID := uuid.New()

	tests := []struct {
		name           string
		serviceErr     error
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "Insufficient funds",
			serviceErr:     apperrors.InsufficientFundsError(),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   "INSUFFICIENT_FUNDS",
		},
		{
			name:           "Account frozen",
			serviceErr:     apperrors.AccountFrozenError(),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   "ACCOUNT_FROZEN",
		},
		{
			name:           "Account not found",
			serviceErr:     apperrors.AccountNotFoundError(),
			expectedStatus: http.StatusNotFound,
			expectedCode:   "ACCOUNT_NOT_FOUND",
		},
		{
			name:           "Not the account owner",
			serviceErr:     apperrors.UnauthorizedAccessError(),
			expectedStatus: http.StatusForbidden,
			expectedCode:   "UNAUTHORIZED_ACCESS",
		},
		{
			name:           "Duplicate operation key",
			serviceErr:     apperrors.DuplicateOperationError(),
			expectedStatus: http.StatusConflict,
			expectedCode:   "DUPLICATE_OPERATION",
		},
		{
			name:           "Concurrent writers exhausted retries",
			serviceErr:     apperrors.ConcurrencyConflictError(),
			expectedStatus: http.StatusConflict,
			expectedCode:   "CONCURRENCY_CONFLICT",
		},
		{
			name:           "Invalid amount",
			serviceErr:     apperrors.InvalidAmountError("amount must be positive"),
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_AMOUNT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubBankingService{err: tt.serviceErr}
			router := newBankingRouter(svc, userID)

			w := postJSON(t, router, "/api/v1/accounts/"+accountID.String()+"/deposit", map[string]string{
				"amount": "10.00",
			}, nil)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var resp entities.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectedCode, resp.Code)
		})
	}
}

func TestDeposit_UnexpectedErrorIsOpaque(t *testing.T) {
	userID := uuid.New()
	accountID := uuid.New()

	svc := &stubBankingService{err: errors.New("pq: connection refused on 10.0.0.3")}
	router := newBankingRouter(svc, userID)

	w := postJSON(t, router, "/api/v1/accounts/"+accountID.String()+"/deposit", map[string]string{
		"amount": "10.00",
	}, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp entities.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INTERNAL_ERROR", resp.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.3")
	assert.Nil(t, resp.Details)
}

func TestWithdraw_Success(t *testing.T) {
	userID := uuid.New()
	accountID := uuid.New()

	svc := &stubBankingService{
		opResult: &entities.OperationResult{
			AccountID: accountID,
			EntryType: entities.JournalEntryTypeWithdrawal,
			Amount:    decimal.RequireFromString("-40.00"),
			Balance:   decimal.RequireFromString("60.00"),
		},
	}
	router := newBankingRouter(svc, userID)

	w := postJSON(t, router, "/api/v1/accounts/"+accountID.String()+"/withdraw", map[string]string{
		"amount":        "40.00",
		"operation_key": "wd-001",
	}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "40.00", svc.gotWithdraw.Amount)

	var result entities.OperationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Amount.IsNegative())
}

func TestTransfer_Success(t *testing.T) {
	userID := uuid.New()

	svc := &stubBankingService{
		transferResult: &entities.TransferResult{
			TransferID:               uuid.New(),
			SourceAccountNumber:      "CHK-20250101-AAAAAA",
			DestinationAccountNumber: "CHK-20250101-BBBBBB",
			Amount:                   decimal.RequireFromString("75.00"),
			Currency:                 "USD",
			Status:                   entities.TransferStatusCompleted,
			OperationKey:             "tr-001",
			SourceBalance:            decimal.RequireFromString("25.00"),
		},
	}
	router := newBankingRouter(svc, userID)

	w := postJSON(t, router, "/api/v1/transfers", map[string]string{
		"source_account_number":      "CHK-20250101-AAAAAA",
		"destination_account_number": "CHK-20250101-BBBBBB",
		"amount":                     "75.00",
		"operation_key":              "tr-001",
	}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID, svc.gotUserID)

	var result entities.TransferResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, entities.TransferStatusCompleted, result.Status)
	assert.True(t, result.SourceBalance.Equal(decimal.RequireFromString("25.00")))
}

func TestTransfer_SelfTransferMapsTo400(t *testing.T) {
	userID := uuid.New()

	svc := &stubBankingService{err: apperrors.SelfTransferError()}
	router := newBankingRouter(svc, userID)

	w := postJSON(t, router, "/api/v1/transfers", map[string]string{
		"source_account_number":      "CHK-20250101-AAAAAA",
		"destination_account_number": "CHK-20250101-AAAAAA",
		"amount":                     "10.00",
		"operation_key":              "tr-self",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "SELF_TRANSFER")
}

func TestTransfer_MissingFields(t *testing.T) {
	userID := uuid.New()

	svc := &stubBankingService{}
	router := newBankingRouter(svc, userID)

	w := postJSON(t, router, "/api/v1/transfers", map[string]string{
		"amount": "10.00",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_REQUEST")
	assert.Nil(t, svc.gotTransfer)
}
