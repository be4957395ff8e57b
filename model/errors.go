package model

import "fmt"

// Standard error codes.
const (
	ErrBadRequest         = "BAD_REQUEST"
	ErrUnauthorized       = "UNAUTHORIZED"
	ErrForbidden          = "FORBIDDEN"
	ErrNotFound           = "NOT_FOUND"
	ErrConflict           = "CONFLICT"
	ErrValidationError    = "VALIDATION_ERROR"
	ErrInternalError      = "INTERNAL_ERROR"
	ErrBackendUnavailable = "BACKEND_UNAVAILABLE"
	ErrBackendTimeout     = "BACKEND_TIMEOUT"
)

// Domain-specific error codes.
const (
	// ErrDefaultExists signals that saving a configuration with
	// isDefault=true would demote another default; the caller must confirm
	// the demotion explicitly.
	ErrDefaultExists = "DEFAULT_EXISTS"

	// ErrStepConditionFailed signals that an active completion condition
	// blocked forward navigation in the wizard.
	ErrStepConditionFailed = "STEP_CONDITION_FAILED"

	// ErrSessionNotActive signals a mutation against a completed or
	// abandoned wizard session.
	ErrSessionNotActive = "SESSION_NOT_ACTIVE"

	// ErrReferenceConflict signals an entity delete blocked by dependents;
	// the envelope carries recovery actions.
	ErrReferenceConflict = "REFERENCE_CONFLICT"
)

// ErrorEnvelope is the standard error response envelope. It implements
// the error interface.
type ErrorEnvelope struct {
	Code     string           `json:"code"`
	Message  string           `json:"message"`
	Details  []FieldError     `json:"details,omitempty"`
	Recovery []RecoveryAction `json:"recovery,omitempty"`
	TraceID  string           `json:"traceId,omitempty"`
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a field-level validation error.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewBadRequestError returns a BAD_REQUEST error.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Message: msg}
}

// NewUnauthorizedError returns an UNAUTHORIZED error.
func NewUnauthorizedError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrUnauthorized, Message: msg}
}

// NewForbiddenError returns a FORBIDDEN error.
func NewForbiddenError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrForbidden, Message: msg}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotFound, Message: msg}
}

// NewConflictError returns a CONFLICT error.
func NewConflictError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrConflict, Message: msg}
}

// NewValidationError returns a VALIDATION_ERROR with field-level details.
func NewValidationError(details []FieldError) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrValidationError,
		Message: "One or more fields are invalid",
		Details: details,
	}
}

// NewDefaultExistsError returns a DEFAULT_EXISTS error naming the
// configuration that currently holds the default slot.
func NewDefaultExistsError(entityType, currentDefault string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code: ErrDefaultExists,
		Message: fmt.Sprintf(
			"configuration %q is already the default for %q; pass confirmDefault=true to demote it",
			currentDefault, entityType,
		),
	}
}

// NewStepConditionError returns a STEP_CONDITION_FAILED error carrying
// the condition's configured message.
func NewStepConditionError(msg string) *ErrorEnvelope {
	if msg == "" {
		msg = "Step completion requirements are not met"
	}
	return &ErrorEnvelope{Code: ErrStepConditionFailed, Message: msg}
}

// NewSessionNotActiveError returns a SESSION_NOT_ACTIVE error.
func NewSessionNotActiveError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrSessionNotActive, Message: msg}
}

// NewReferenceConflictError returns a REFERENCE_CONFLICT error with
// recovery actions for the caller to offer.
func NewReferenceConflictError(msg string, recovery []RecoveryAction) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:     ErrReferenceConflict,
		Message:  msg,
		Recovery: recovery,
	}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInternalError,
		Message: "An unexpected error occurred",
	}
}

// NewBackendUnavailableError returns a BACKEND_UNAVAILABLE error.
func NewBackendUnavailableError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrBackendUnavailable,
		Message: "The content backend is temporarily unavailable",
	}
}

// NewBackendTimeoutError returns a BACKEND_TIMEOUT error.
func NewBackendTimeoutError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrBackendTimeout,
		Message: "The content backend did not respond in time",
	}
}
