package services

import (
	"errors"
	"fmt"

	apperrors "github.com/SAP-F-2025/exam-attempt-service/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized access")
	ErrForbidden    = errors.New("forbidden - insufficient permissions")
	ErrConflict     = errors.New("resource conflict")

	// Exam errors
	ErrExamNotFound     = errors.New("exam not found")
	ErrExamNotActive    = errors.New("exam is not open for attempts")
	ErrQuestionNotFound = errors.New("question not found")

	// Attempt errors
	ErrAttemptNotFound     = errors.New("attempt not found")
	ErrAttemptAccessDenied = errors.New("access denied to attempt")
	ErrAttemptFinalized    = errors.New("attempt is finalized and locked")

	// Phase clock errors. Clients redirect on these instead of retrying.
	ErrPhaseExpired    = errors.New("phase time has expired")
	ErrPhaseNotStarted = errors.New("phase has not been started")
	ErrPhaseOrder      = errors.New("phase 1 must be finished before phase 2")
	ErrPhaseFinished   = errors.New("phase is already finished")

	// Grading errors
	ErrAnswerNotFound          = errors.New("answer not found")
	ErrGradingNotAllowed       = errors.New("only long response answers take a human grade")
	ErrGradingPermissionDenied = errors.New("permission denied for grading")
)

// ===== CUSTOM ERROR TYPES =====

type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

type BusinessRuleError struct {
	Rule    string                 `json:"rule"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (bre *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule violation (%s): %s", bre.Rule, bre.Message)
}

type PermissionError struct {
	UserID     string `json:"user_id"`
	ResourceID uint   `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (pe *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %d - %s",
		pe.UserID, pe.Action, pe.Resource, pe.ResourceID, pe.Reason)
}

// ===== ERROR HELPERS =====

func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{
		Rule:    rule,
		Message: message,
		Context: context,
	}
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrExamNotFound) ||
		errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, ErrAttemptNotFound) ||
		errors.Is(err, ErrAnswerNotFound)
}

func IsUnauthorized(err error) bool {
	var pe *PermissionError
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrAttemptAccessDenied) ||
		errors.Is(err, ErrGradingPermissionDenied) ||
		errors.As(err, &pe)
}

func IsValidation(err error) bool {
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}

func IsBusinessRule(err error) bool {
	var bre *BusinessRuleError
	return errors.As(err, &bre)
}

// IsTemporal covers the phase clock rejections.
func IsTemporal(err error) bool {
	return errors.Is(err, ErrPhaseExpired) ||
		errors.Is(err, ErrPhaseNotStarted) ||
		errors.Is(err, ErrPhaseOrder) ||
		errors.Is(err, ErrPhaseFinished)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) || IsTemporal(err)
}

// TemporalCode is the machine readable code sent with a temporal rejection.
func TemporalCode(err error) string {
	switch {
	case errors.Is(err, ErrPhaseExpired):
		return "expired"
	case errors.Is(err, ErrPhaseNotStarted):
		return "phase_not_started"
	case errors.Is(err, ErrPhaseOrder):
		return "phase_order"
	case errors.Is(err, ErrPhaseFinished):
		return "phase_finished"
	}
	return ""
}
