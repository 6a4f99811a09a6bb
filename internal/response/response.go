package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"civicforge/internal/contextutils"
	"civicforge/internal/services"

	"go.uber.org/zap"
)

// APIResponse is the JSON envelope for every API reply
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// APIError carries the error payload of a failed reply
type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Builder writes enveloped JSON responses
type Builder struct {
	logger *zap.Logger
}

// NewBuilder creates a response builder
func NewBuilder(logger *zap.Logger) *Builder {
	return &Builder{logger: logger}
}

// Success writes a successful reply with the given status and payload
func (b *Builder) Success(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	b.write(w, r, status, &APIResponse{
		Success:   true,
		Data:      data,
		RequestID: contextutils.GetRequestID(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}

// Error maps a service error onto an HTTP status and writes the envelope
func (b *Builder) Error(w http.ResponseWriter, r *http.Request, err error) {
	status, apiErr := classify(err)
	if status >= http.StatusInternalServerError {
		b.logger.Error("Request failed",
			zap.String("request_id", contextutils.GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	b.write(w, r, status, &APIResponse{
		Success:   false,
		Error:     apiErr,
		RequestID: contextutils.GetRequestID(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}

// BadRequest writes a validation failure for malformed request payloads
func (b *Builder) BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	b.write(w, r, http.StatusBadRequest, &APIResponse{
		Success:   false,
		Error:     &APIError{Type: string(services.ErrorTypeValidation), Message: message},
		RequestID: contextutils.GetRequestID(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}

func (b *Builder) write(w http.ResponseWriter, r *http.Request, status int, resp *APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		b.logger.Error("Failed to encode response",
			zap.String("path", r.URL.Path), zap.Error(err))
	}
}

func classify(err error) (int, *APIError) {
	var svcErr *services.ServiceError
	if !errors.As(err, &svcErr) {
		return http.StatusInternalServerError, &APIError{
			Type:    string(services.ErrorTypeInternal),
			Message: "an unexpected error occurred",
		}
	}

	apiErr := &APIError{
		Type:    string(svcErr.Type),
		Message: svcErr.Message,
		Details: svcErr.Details,
	}

	switch svcErr.Type {
	case services.ErrorTypeValidation:
		return http.StatusBadRequest, apiErr
	case services.ErrorTypeNotFound:
		return http.StatusNotFound, apiErr
	case services.ErrorTypeNotOwner, services.ErrorTypeForbidden:
		return http.StatusForbidden, apiErr
	case services.ErrorTypeDraftLocked, services.ErrorTypeInvalidTransition:
		return http.StatusConflict, apiErr
	case services.ErrorTypeAlreadyVoted, services.ErrorTypeConcurrentActivation:
		return http.StatusConflict, apiErr
	case services.ErrorTypeNoActiveConfig:
		return http.StatusNotFound, apiErr
	default:
		apiErr.Message = "an unexpected error occurred"
		apiErr.Details = ""
		return http.StatusInternalServerError, apiErr
	}
}
