package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vertex-bank/banking_service/internal/domain/entities"
	"github.com/vertex-bank/banking_service/internal/domain/services/bulkops"
	"github.com/vertex-bank/banking_service/pkg/logger"
)

// BulkServiceInterface defines the interface for bulk CSV processing
type BulkServiceInterface interface {
	Process(ctx context.Context, submitterID uuid.UUID, filename string, input io.Reader) (*entities.BulkSummary, error)
}

// BulkHandlers handles employee bulk operation uploads
type BulkHandlers struct {
	bulkService BulkServiceInterface
	logger      *logger.Logger
}

// NewBulkHandlers creates a new BulkHandlers instance
func NewBulkHandlers(bulkService BulkServiceInterface, logger *logger.Logger) *BulkHandlers {
	return &BulkHandlers{
		bulkService: bulkService,
		logger:      logger,
	}
}

// ProcessFile handles POST /api/v1/operations/bulk. The route is gated to
// employee roles; the file arrives as multipart form field "file".
func (h *BulkHandlers) ProcessFile(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		SendBadRequest(c, ErrCodeInvalidRequest, "A CSV file is required in the 'file' field")
		return
	}
	if fileHeader.Size > bulkops.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, entities.ErrorResponse{
			Code:    ErrCodeFileTooLarge,
			Message: "File exceeds the 5 MiB limit",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file",
			"error", err,
			"filename", fileHeader.Filename)
		SendInternalError(c, ErrCodeInternalError, "Could not read uploaded file")
		return
	}
	defer file.Close()

	summary, err := h.bulkService.Process(c.Request.Context(), userID, fileHeader.Filename, file)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	SendSuccess(c, summary)
}
