// Package bulkops turns uploaded CSV instruction files into individual
// engine operations. Rows are independent: a failing row is reported in the
// summary and never aborts the batch.
package bulkops

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vertex-bank/banking_service/internal/domain/entities"
	apperrors "github.com/vertex-bank/banking_service/internal/domain/errors"
	"github.com/vertex-bank/banking_service/internal/domain/repositories"
	"github.com/vertex-bank/banking_service/internal/domain/services/banking"
	"github.com/vertex-bank/banking_service/pkg/logger"
	"github.com/vertex-bank/banking_service/pkg/metrics"
	"github.com/vertex-bank/banking_service/pkg/security"
)

const (
	// MaxUploadBytes caps the size of an accepted file
	MaxUploadBytes = 5 << 20

	// operation keys are capped at 100 characters, so the filename part of
	// a row key is bounded
	maxKeyFilenameLen = 60

	opDeposit  = "DEPOSIT"
	opWithdraw = "WITHDRAW"
)

// Engine is the slice of the banking engine the processor drives
type Engine interface {
	Deposit(ctx context.Context, userID, accountID uuid.UUID, req *entities.DepositRequest) (*entities.OperationResult, error)
	Withdraw(ctx context.Context, userID, accountID uuid.UUID, req *entities.WithdrawRequest) (*entities.OperationResult, error)
}

// Service parses bulk CSV files and executes one engine operation per row
type Service struct {
	engine   Engine
	users    repositories.UserRepository
	accounts repositories.AccountRepository
	logger   *logger.Logger
	maxBytes int64
}

// NewService creates a bulk operations service. maxBytes <= 0 selects the
// default upload cap.
func NewService(engine Engine, users repositories.UserRepository, accounts repositories.AccountRepository, maxBytes int64, log *logger.Logger) *Service {
	if maxBytes <= 0 {
		maxBytes = MaxUploadBytes
	}
	return &Service{
		engine:   engine,
		users:    users,
		accounts: accounts,
		logger:   log,
		maxBytes: maxBytes,
	}
}

// Process reads a CSV stream of the form
//
//	NationalId,Amount,Operation
//	12345678901,100.00,DEPOSIT
//
// and runs each data row through the engine. The header match is case- and
// whitespace-insensitive. Row operation keys embed the submission timestamp,
// so re-uploading the same file executes every row again; duplicate
// protection within one submission comes from the per-row key.
func (s *Service) Process(ctx context.Context, submitterID uuid.UUID, filename string, input io.Reader) (*entities.BulkSummary, error) {
	tracer := otel.Tracer("banking-service/bulkops")
	ctx, span := tracer.Start(ctx, "bulkops.process_file")
	defer span.End()

	rows, err := s.parse(input)
	if err != nil {
		return nil, err
	}

	name := sanitizeFilename(filename)
	batchTS := time.Now().Unix()
	metrics.BulkFilesTotal.Inc()
	s.logger.Info("Bulk file accepted",
		"submitter_id", submitterID.String(),
		"filename", name,
		"rows", len(rows))

	summary := &entities.BulkSummary{
		Total:   len(rows),
		Results: make([]entities.BulkRowResult, 0, len(rows)),
	}
	for i, fields := range rows {
		rowNum := i + 1
		key := fmt.Sprintf("CSV-%s-%d-%d", name, rowNum, batchTS)
		result := s.processRow(ctx, rowNum, fields, name, key)
		if result.Success {
			summary.SuccessCount++
			metrics.BulkRowsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
		} else {
			summary.FailureCount++
			metrics.BulkRowsTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		}
		summary.Results = append(summary.Results, result)
	}

	span.SetAttributes(
		attribute.Int("bulk.rows", summary.Total),
		attribute.Int("bulk.failed", summary.FailureCount),
	)
	s.logger.Info("Bulk file processed",
		"submitter_id", submitterID.String(),
		"filename", name,
		"total", summary.Total,
		"succeeded", summary.SuccessCount,
		"failed", summary.FailureCount)
	return summary, nil
}

// parse splits the stream into trimmed per-row field slices. Blank lines are
// skipped; the first non-blank line must be the expected header.
func (s *Service) parse(input io.Reader) ([][]string, error) {
	data, err := io.ReadAll(io.LimitReader(input, s.maxBytes+1))
	if err != nil {
		return nil, apperrors.ValidationError("file", "could not read the uploaded file")
	}
	if int64(len(data)) > s.maxBytes {
		return nil, apperrors.ValidationError("file",
			fmt.Sprintf("file exceeds the %d MiB limit", s.maxBytes>>20))
	}

	var rows [][]string
	headerSeen := false
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" {
			continue
		}
		if !headerSeen {
			if !isExpectedHeader(line) {
				return nil, apperrors.ValidationError("file",
					"header must be NationalId,Amount,Operation")
			}
			headerSeen = true
			continue
		}
		rows = append(rows, strings.Split(line, ","))
	}
	if !headerSeen {
		return nil, apperrors.ValidationError("file", "file is empty")
	}
	if len(rows) == 0 {
		return nil, apperrors.ValidationError("file", "file contains no data rows")
	}
	return rows, nil
}

// processRow resolves one data row to an account and runs the operation.
// Every failure path produces a row result, never an error.
func (s *Service) processRow(ctx context.Context, rowNum int, fields []string, filename, key string) entities.BulkRowResult {
	result := entities.BulkRowResult{Row: rowNum}

	if len(fields) != 3 {
		result.Error = fmt.Sprintf("expected 3 fields, got %d", len(fields))
		return result
	}

	result.NationalID = strings.TrimSpace(fields[0])
	rawAmount := strings.TrimSpace(fields[1])
	result.Operation = strings.ToUpper(strings.TrimSpace(fields[2]))

	if result.NationalID == "" {
		result.Error = "national id is required"
		return result
	}
	amount, err := banking.ParseAmount(rawAmount)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Amount = amount
	if result.Operation != opDeposit && result.Operation != opWithdraw {
		result.Error = "operation must be DEPOSIT or WITHDRAW"
		return result
	}

	user, err := s.users.GetByNationalID(ctx, result.NationalID)
	if err != nil {
		result.Error = "could not look up user"
		return result
	}
	if user == nil {
		result.Error = "no user found for national id"
		return result
	}
	if !user.IsActive {
		result.Error = "user account is deactivated"
		return result
	}
	if !user.IsVerified() {
		result.Error = "user identity is not verified"
		return result
	}

	account, err := s.accounts.GetActiveByUserAndType(ctx, user.ID, entities.AccountTypeChecking)
	if err != nil {
		result.Error = "could not look up account"
		return result
	}
	if account == nil {
		result.Error = "no active checking account for user"
		return result
	}

	var opResult *entities.OperationResult
	switch result.Operation {
	case opDeposit:
		opResult, err = s.engine.Deposit(ctx, user.ID, account.ID, &entities.DepositRequest{
			Amount:       rawAmount,
			Description:  fmt.Sprintf("Bulk deposit from %s", filename),
			OperationKey: key,
		})
	case opWithdraw:
		opResult, err = s.engine.Withdraw(ctx, user.ID, account.ID, &entities.WithdrawRequest{
			Amount:       rawAmount,
			Description:  fmt.Sprintf("Bulk withdrawal from %s", filename),
			OperationKey: key,
		})
	}
	if err != nil {
		result.Error = err.Error()
		s.logger.Warn("Bulk row failed",
			"row", rowNum,
			"national_id", security.MaskNationalID(result.NationalID),
			"operation", result.Operation,
			"error_code", apperrors.GetErrorCode(err))
		return result
	}

	result.Success = true
	result.AccountNumber = opResult.AccountNumber
	result.Balance = &opResult.Balance
	return result
}

// isExpectedHeader matches the three column names ignoring case and any
// embedded whitespace
func isExpectedHeader(line string) bool {
	fields := strings.Split(line, ",")
	if len(fields) != 3 {
		return false
	}
	want := []string{"nationalid", "amount", "operation"}
	for i, f := range fields {
		cleaned := strings.ToLower(strings.Join(strings.Fields(f), ""))
		if cleaned != want[i] {
			return false
		}
	}
	return true
}

// sanitizeFilename reduces an upload name to a short path-free token safe to
// embed in operation keys
func sanitizeFilename(filename string) string {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "upload"
	}
	name = strings.ReplaceAll(name, " ", "_")
	if len(name) > maxKeyFilenameLen {
		name = name[:maxKeyFilenameLen]
	}
	return name
}
