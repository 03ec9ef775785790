package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// extractUserID reads the authenticated user's ID set by the auth
// middleware. On failure it writes the error response itself.
func extractUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		SendUnauthorized(c, "User not authenticated")
		return uuid.Nil, false
	}

	switch v := userIDVal.(type) {
	case uuid.UUID:
		return v, true
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			SendInternalError(c, ErrCodeInternalError, "Invalid user ID format")
			return uuid.Nil, false
		}
		return id, true
	default:
		SendInternalError(c, ErrCodeInternalError, "Invalid user ID format")
		return uuid.Nil, false
	}
}

// pathUUID parses a UUID route parameter, responding on failure
func pathUUID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		SendBadRequest(c, ErrCodeInvalidID, "Invalid "+param+" format")
		return uuid.Nil, false
	}
	return id, true
}

// getRequestID extracts the request ID set by the request-id middleware
func getRequestID(c *gin.Context) string {
	if reqID, exists := c.Get("request_id"); exists {
		if id, ok := reqID.(string); ok {
			return id
		}
	}
	return ""
}

// pageParams reads limit/offset query parameters with defaults. Range
// clamping happens in the services.
func pageParams(c *gin.Context, defaultLimit int) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}
