package handlers

import (
	"errors"
	"net/http"
	"strings"

	"aijudge-backend/extractor"
	"aijudge-backend/models"
	"aijudge-backend/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// respondServiceError translates a service error into status, code and message
func respondServiceError(c *gin.Context, logger *zap.Logger, err error) {
	status, code, message := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("code", code),
			zap.Error(err))
	}
	respondError(c, status, code, message)
}

func classify(err error) (int, string, string) {
	var batchErr *service.BatchError
	switch {
	case errors.As(err, &batchErr):
		return http.StatusBadRequest, "UPLOAD_FAILED", batchErr.Error()
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest, "INVALID_REQUEST", userMessage(err, models.ErrValidation)
	case errors.Is(err, extractor.ErrUnsupportedMediaType):
		return http.StatusBadRequest, "UNSUPPORTED_MEDIA_TYPE", err.Error()
	case errors.Is(err, extractor.ErrEmptyContent):
		return http.StatusBadRequest, "EMPTY_CONTENT", err.Error()
	case errors.Is(err, extractor.ErrUnreadableDocument):
		return http.StatusBadRequest, "UPLOAD_FAILED", err.Error()
	case errors.Is(err, models.ErrCaseNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Case not found"
	case errors.Is(err, service.ErrOriginalUnavailable):
		return http.StatusNotFound, "NOT_FOUND", "Original file is not available"
	case errors.Is(err, models.ErrDocumentsIncomplete):
		return http.StatusConflict, "DOCUMENTS_INCOMPLETE", "Both sides must submit documents before judgment can be rendered"
	case errors.Is(err, models.ErrJudgmentRequired):
		return http.StatusConflict, "JUDGMENT_REQUIRED", "Initial verdict must be rendered before arguments can be submitted"
	case errors.Is(err, models.ErrArgumentQuotaExceeded):
		return http.StatusConflict, "ARGUMENT_QUOTA_EXCEEDED", userMessage(err, models.ErrPreconditionFailed)
	case errors.Is(err, service.ErrReasoningEngineUnavailable):
		return http.StatusServiceUnavailable, "ENGINE_UNAVAILABLE", "AI judge is not configured"
	case errors.Is(err, service.ErrReasoningEngineError):
		return http.StatusBadGateway, "ENGINE_ERROR", "AI judge request failed"
	case errors.Is(err, models.ErrStorage):
		return http.StatusInternalServerError, "STORAGE_ERROR", "Storage operation failed"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"
	}
}

// userMessage strips the sentinel prefix and capitalizes what remains
func userMessage(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
