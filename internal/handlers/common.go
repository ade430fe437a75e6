package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-attempt-service/internal/middleware"
	"github.com/SAP-F-2025/exam-attempt-service/internal/services"
	"github.com/SAP-F-2025/exam-attempt-service/internal/utils"
)

// ===== COMMON RESPONSE STRUCTURES =====

// ErrorResponse represents an error response
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ===== BASE HANDLER STRUCT =====

// BaseHandler provides common logging functionality for all handlers
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// log returns the request-scoped logger carrying request_id, method and path.
func (h *BaseHandler) log(c *gin.Context) utils.Logger {
	l := utils.LoggerFrom(c, h.logger)
	if userID := middleware.UserID(c); userID != "" {
		l = l.With("user_id", userID)
	}
	return l
}

func (h *BaseHandler) LogRequest(c *gin.Context, message string, additionalFields ...interface{}) {
	h.log(c).Info(message, additionalFields...)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, message string, additionalFields ...interface{}) {
	h.log(c).LogError(err, message, additionalFields...)
}

func (h *BaseHandler) LogWarn(c *gin.Context, message string, additionalFields ...interface{}) {
	h.log(c).Warn(message, additionalFields...)
}

// RespondWithError sends a consistent error response and logs it
func (h *BaseHandler) RespondWithError(c *gin.Context, statusCode int, message string, err error, details ...interface{}) {
	h.respondWithCode(c, statusCode, message, "", err, details...)
}

func (h *BaseHandler) respondWithCode(c *gin.Context, statusCode int, message, code string, err error, details ...interface{}) {
	resp := ErrorResponse{Message: message, Code: code}
	if len(details) > 0 {
		resp.Details = details[0]
	}

	switch {
	case statusCode >= http.StatusInternalServerError:
		h.LogError(c, err, message, "status_code", statusCode)
	case err != nil:
		h.LogWarn(c, message, "status_code", statusCode, "error", err)
	default:
		h.LogWarn(c, message, "status_code", statusCode)
	}

	c.AbortWithStatusJSON(statusCode, resp)
}

// RespondWithSuccess sends a consistent success response and logs it
func (h *BaseHandler) RespondWithSuccess(c *gin.Context, statusCode int, message string, data interface{}, additionalFields ...interface{}) {
	fields := append([]interface{}{"status_code", statusCode}, additionalFields...)
	h.LogRequest(c, message, fields...)

	c.JSON(statusCode, SuccessResponse{Message: message, Data: data})
}

// handleServiceError maps service errors onto status codes. Temporal
// rejections carry a machine readable code so clients can redirect.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		h.respondWithCode(c, http.StatusBadRequest, "Validation failed", "validation_failed", err, validationErrors)
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		h.respondWithCode(c, http.StatusUnprocessableEntity, businessRuleError.Message, businessRuleError.Rule, err,
			map[string]interface{}{
				"rule":    businessRuleError.Rule,
				"context": businessRuleError.Context,
			})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		h.respondWithCode(c, http.StatusForbidden, "Access denied", "forbidden", err,
			map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			})
		return
	}

	switch {
	case services.IsTemporal(err):
		h.respondWithCode(c, http.StatusConflict, err.Error(), services.TemporalCode(err), err)
	case errors.Is(err, services.ErrAttemptFinalized):
		h.respondWithCode(c, http.StatusLocked, err.Error(), "finalized", err)
	case errors.Is(err, services.ErrGradingNotAllowed):
		h.respondWithCode(c, http.StatusUnprocessableEntity, err.Error(), "not_gradable", err)
	case errors.Is(err, services.ErrExamNotActive):
		h.respondWithCode(c, http.StatusUnprocessableEntity, err.Error(), "exam_inactive", err)
	case services.IsNotFound(err):
		h.respondWithCode(c, http.StatusNotFound, err.Error(), "not_found", err)
	case services.IsUnauthorized(err):
		h.respondWithCode(c, http.StatusForbidden, err.Error(), "forbidden", err)
	case errors.Is(err, services.ErrConflict):
		h.respondWithCode(c, http.StatusConflict, err.Error(), "conflict", err)
	default:
		h.RespondWithError(c, http.StatusInternalServerError, "Internal server error", err)
	}
}

func (h *BaseHandler) bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		h.respondWithCode(c, http.StatusBadRequest, "Invalid request payload", "invalid_payload", err, err.Error())
		return false
	}
	return true
}

// parseIDParam returns 0 after responding when the path parameter is not a positive integer.
func (h *BaseHandler) parseIDParam(c *gin.Context, param string) uint {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		h.respondWithCode(c, http.StatusBadRequest, "Invalid "+param, "invalid_param", err)
		return 0
	}
	return uint(id)
}

func (h *BaseHandler) parseIntQuery(c *gin.Context, param string, defaultValue int) int {
	raw := c.Query(param)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return value
}

func caller(c *gin.Context) services.Caller {
	return services.Caller{UserID: middleware.UserID(c), Role: middleware.Role(c)}
}
