package banking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/vertex-bank/banking_service/internal/domain/entities"
	apperrors "github.com/vertex-bank/banking_service/internal/domain/errors"
)

// Operation keys are scoped per user and per operation kind, so a deposit
// key can never replay a withdrawal response.
const (
	opDeposit  = "deposit"
	opWithdraw = "withdraw"
	opTransfer = "transfer"
)

// beginIdempotent looks up a prior run of this operation key before any
// money moves. It returns the stored response body when the operation
// already completed, nil when the key is free. An unfinished record means
// another request holds the key right now; a key reused for a different
// operation kind is treated the same way.
func (s *Service) beginIdempotent(ctx context.Context, userID uuid.UUID, key, operation string) (json.RawMessage, error) {
	record, err := s.store.GetIdempotencyRecord(ctx, key, userID)
	if err != nil {
		return nil, apperrors.StorageError(err)
	}
	if record == nil || record.IsExpired(time.Now()) {
		return nil, nil
	}
	if !record.Completed || record.RequestPath != operation {
		return nil, apperrors.DuplicateOperationError()
	}
	return record.ResponseBody, nil
}

// recordIdempotency stores the operation response once the transaction has
// committed. The money has already moved at this point, so recording is
// best-effort: a failure only weakens replay for this key and is logged
// rather than returned.
func (s *Service) recordIdempotency(ctx context.Context, userID uuid.UUID, key, operation string, result interface{}) {
	body, err := json.Marshal(result)
	if err != nil {
		s.logger.Warn("Failed to encode idempotency result",
			"user_id", userID.String(),
			"operation_key", key,
			"error", err.Error())
		return
	}

	record := &entities.IdempotencyRecord{
		ID:           uuid.New(),
		OperationKey: key,
		UserID:       userID,
		RequestPath:  operation,
		Completed:    true,
		ResponseBody: body,
		ExpiresAt:    time.Now().Add(s.idempotencyTTL),
	}
	if err := s.store.SaveIdempotencyRecord(ctx, record); err != nil {
		s.logger.Warn("Failed to save idempotency record",
			"user_id", userID.String(),
			"operation_key", key,
			"error", err.Error())
	}
}
