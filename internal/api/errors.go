package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/p-arndt/labkasten/internal/catalog"
	"github.com/p-arndt/labkasten/internal/driver"
	"github.com/p-arndt/labkasten/internal/ports"
	"github.com/p-arndt/labkasten/internal/session"
)

// Error codes returned in API responses
const (
	ErrCodeLabNotFound         = "LAB_NOT_FOUND"
	ErrCodeNotContainerized    = "NOT_CONTAINERIZED"
	ErrCodeSessionNotRunning   = "SESSION_NOT_RUNNING"
	ErrCodeRuntimeUnavailable  = "RUNTIME_UNAVAILABLE"
	ErrCodePullFailed          = "PULL_FAILED"
	ErrCodeStartFailed         = "START_FAILED"
	ErrCodeNameConflict        = "NAME_CONFLICT"
	ErrCodePortExhausted       = "PORT_EXHAUSTED"
	ErrCodeRuntimeTimeout      = "RUNTIME_TIMEOUT"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeInternalError       = "INTERNAL_ERROR"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	runtimeUnavailableGuidance = "the container runtime is not reachable; check that the docker daemon is running and this service can access it"
)

// APIError represents a structured API error response
type APIError struct {
	Code    string         `json:"error_code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// toAPIError maps err onto a response body and HTTP status.
func toAPIError(err error) (APIError, int) {
	switch {
	case errors.Is(err, session.ErrInvalidKey):
		return APIError{Code: ErrCodeInvalidRequest, Message: err.Error()}, http.StatusBadRequest

	case errors.Is(err, session.ErrUnknownResource), errors.Is(err, catalog.ErrNotFound):
		return APIError{Code: ErrCodeLabNotFound, Message: err.Error()}, http.StatusNotFound

	case errors.Is(err, session.ErrNotContainerized):
		return APIError{Code: ErrCodeNotContainerized, Message: err.Error()}, http.StatusUnprocessableEntity

	case errors.Is(err, session.ErrSessionNotRunning):
		return APIError{Code: ErrCodeSessionNotRunning, Message: "session is not running; start it first"}, http.StatusConflict

	case errors.Is(err, driver.ErrRuntimeUnavailable):
		return APIError{
			Code:    ErrCodeRuntimeUnavailable,
			Message: runtimeUnavailableGuidance,
			Details: map[string]any{"diagnostic": driver.Diagnostic(err)},
		}, http.StatusServiceUnavailable

	case errors.Is(err, driver.ErrPullFailed):
		return APIError{
			Code:    ErrCodePullFailed,
			Message: err.Error(),
			Details: map[string]any{"diagnostic": driver.Diagnostic(err)},
		}, http.StatusBadGateway

	case errors.Is(err, driver.ErrStartFailed):
		return APIError{
			Code:    ErrCodeStartFailed,
			Message: err.Error(),
			Details: map[string]any{"diagnostic": driver.Diagnostic(err)},
		}, http.StatusBadGateway

	case errors.Is(err, driver.ErrNameConflict):
		return APIError{Code: ErrCodeNameConflict, Message: err.Error()}, http.StatusConflict

	case errors.Is(err, driver.ErrTimeout):
		return APIError{Code: ErrCodeRuntimeTimeout, Message: err.Error()}, http.StatusGatewayTimeout

	case errors.Is(err, ports.ErrExhausted):
		return APIError{Code: ErrCodePortExhausted, Message: err.Error()}, http.StatusServiceUnavailable

	default:
		return APIError{Code: ErrCodeInternalError, Message: err.Error()}, http.StatusInternalServerError
	}
}

// writeAPIError writes a structured error response with appropriate HTTP status
func writeAPIError(w http.ResponseWriter, err error) {
	apiErr, status := toAPIError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiErr)
}

// writeValidationError writes a 400 Bad Request with validation details
func writeValidationError(w http.ResponseWriter, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(APIError{
		Code:    ErrCodeInvalidRequest,
		Message: message,
		Details: details,
	})
}

func writeUnauthorizedError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(APIError{
		Code:    ErrCodeUnauthorized,
		Message: message,
	})
}

func writeRateLimitedError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "1")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(APIError{
		Code:    ErrCodeRateLimited,
		Message: "too many commands; slow down",
	})
}
