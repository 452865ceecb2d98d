package utils

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Stable error codes surfaced on the REST API.
const (
	CodeSessionNotFound  = "SESSION_001"
	CodeMemoryExtract    = "MEMORY_001"
	CodeMemorySearch     = "MEMORY_002"
	CodeDocumentNotFound = "DOCUMENT_001"
	CodeDocumentFailed   = "DOCUMENT_002"
	CodeDocumentTooLarge = "DOCUMENT_003"
	CodeLLMUnavailable   = "LLM_001"
	CodeLLMRateLimited   = "LLM_002"
	CodeLLMStream        = "LLM_003"
	CodeSearchFailed     = "SEARCH_001"
	CodeSearchIndex      = "SEARCH_002"
	CodeValidation       = "VALIDATION_001"
	CodeInternal         = "INTERNAL_001"
)

// ErrorResponse is the standard REST error envelope.
type ErrorResponse struct {
	ErrorID   string      `json:"error_id"`
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Path      string      `json:"path"`
}

// RespondWithError sends a standardized error response and returns the
// generated error id for correlation with logs.
func RespondWithError(c *gin.Context, statusCode int, code, message string, details interface{}) string {
	errorID := uuid.NewString()
	c.JSON(statusCode, ErrorResponse{
		ErrorID:   errorID,
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		Path:      c.Request.URL.Path,
	})
	return errorID
}

// RespondWithValidationError sends a 400 with the validation code.
func RespondWithValidationError(c *gin.Context, message string, details interface{}) string {
	return RespondWithError(c, http.StatusBadRequest, CodeValidation, message, details)
}

// RespondWithNotFound sends a 404 with the given code.
func RespondWithNotFound(c *gin.Context, code, message string) string {
	return RespondWithError(c, http.StatusNotFound, code, message, nil)
}

// RespondWithInternalError sends a 500 with the internal code.
func RespondWithInternalError(c *gin.Context, message string, details interface{}) string {
	return RespondWithError(c, http.StatusInternalServerError, CodeInternal, message, details)
}
