package services

import (
	"errors"
	"fmt"
)

// ErrorType classifies service failures for transport mapping
type ErrorType string

const (
	ErrorTypeValidation           ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound             ErrorType = "NOT_FOUND"
	ErrorTypeNotOwner             ErrorType = "NOT_OWNER"
	ErrorTypeDraftLocked          ErrorType = "DRAFT_LOCKED"
	ErrorTypeInvalidTransition    ErrorType = "INVALID_TRANSITION"
	ErrorTypeAlreadyVoted         ErrorType = "ALREADY_VOTED"
	ErrorTypeConcurrentActivation ErrorType = "CONCURRENT_ACTIVATION"
	ErrorTypeNoActiveConfig       ErrorType = "NO_ACTIVE_CONFIG"
	ErrorTypeForbidden            ErrorType = "FORBIDDEN"
	ErrorTypeInternal             ErrorType = "INTERNAL_ERROR"
)

// ServiceError is the error type returned across the service boundary
type ServiceError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// ===============================
// CONSTRUCTORS
// ===============================

// NewValidationError creates a validation error
func NewValidationError(message, details string) *ServiceError {
	return &ServiceError{Type: ErrorTypeValidation, Message: message, Details: details}
}

// NewNotFoundError creates a not-found error. Cross-community lookups use
// this same error so resource existence is never revealed across scopes.
func NewNotFoundError(resource string) *ServiceError {
	return &ServiceError{Type: ErrorTypeNotFound, Message: fmt.Sprintf("%s not found", resource)}
}

// NewNotOwnerError signals an edit by someone other than the draft's creator
func NewNotOwnerError() *ServiceError {
	return &ServiceError{Type: ErrorTypeNotOwner, Message: "only the creator may modify this draft"}
}

// NewDraftLockedError signals an edit against a submitted or non-draft design
func NewDraftLockedError() *ServiceError {
	return &ServiceError{Type: ErrorTypeDraftLocked, Message: "design is locked and cannot be modified"}
}

// NewInvalidTransitionError signals an operation invalid for the current state
func NewInvalidTransitionError(from, attempted string) *ServiceError {
	return &ServiceError{
		Type:    ErrorTypeInvalidTransition,
		Message: "operation not valid in current state",
		Details: fmt.Sprintf("cannot %s while %s", attempted, from),
	}
}

// NewAlreadyVotedError signals a second ballot from the same voter
func NewAlreadyVotedError() *ServiceError {
	return &ServiceError{Type: ErrorTypeAlreadyVoted, Message: "you have already voted on this proposal"}
}

// NewConcurrentActivationError signals a lost activation race
func NewConcurrentActivationError() *ServiceError {
	return &ServiceError{Type: ErrorTypeConcurrentActivation, Message: "another design was activated concurrently"}
}

// NewNoActiveConfigError signals a community without an activated design
func NewNoActiveConfigError() *ServiceError {
	return &ServiceError{Type: ErrorTypeNoActiveConfig, Message: "community has no active game design"}
}

// NewForbiddenError signals insufficient standing for an operation
func NewForbiddenError(message string) *ServiceError {
	return &ServiceError{Type: ErrorTypeForbidden, Message: message}
}

// NewInternalError wraps an unexpected failure
func NewInternalError(message string, cause error) *ServiceError {
	return &ServiceError{Type: ErrorTypeInternal, Message: message, Cause: cause}
}

// ===============================
// CHECKERS
// ===============================

func errorIsType(err error, t ErrorType) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Type == t
	}
	return false
}

func IsValidationError(err error) bool    { return errorIsType(err, ErrorTypeValidation) }
func IsNotFoundError(err error) bool      { return errorIsType(err, ErrorTypeNotFound) }
func IsNotOwnerError(err error) bool      { return errorIsType(err, ErrorTypeNotOwner) }
func IsDraftLockedError(err error) bool   { return errorIsType(err, ErrorTypeDraftLocked) }
func IsInvalidTransition(err error) bool  { return errorIsType(err, ErrorTypeInvalidTransition) }
func IsAlreadyVoted(err error) bool       { return errorIsType(err, ErrorTypeAlreadyVoted) }
func IsConcurrentActivation(err error) bool {
	return errorIsType(err, ErrorTypeConcurrentActivation)
}
func IsNoActiveConfig(err error) bool { return errorIsType(err, ErrorTypeNoActiveConfig) }
func IsForbiddenError(err error) bool { return errorIsType(err, ErrorTypeForbidden) }
