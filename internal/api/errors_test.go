package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/p-arndt/labkasten/internal/catalog"
	"github.com/p-arndt/labkasten/internal/driver"
	"github.com/p-arndt/labkasten/internal/ports"
	"github.com/p-arndt/labkasten/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAPIError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid key",
			err:        fmt.Errorf("%w: owner is required", session.ErrInvalidKey),
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeInvalidRequest,
		},
		{
			name:       "unknown lab",
			err:        fmt.Errorf("%w: nope", session.ErrUnknownResource),
			wantStatus: http.StatusNotFound,
			wantCode:   ErrCodeLabNotFound,
		},
		{
			name:       "catalog not found",
			err:        fmt.Errorf("wrap: %w", catalog.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantCode:   ErrCodeLabNotFound,
		},
		{
			name:       "not containerized",
			err:        fmt.Errorf("%w: r2", session.ErrNotContainerized),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   ErrCodeNotContainerized,
		},
		{
			name:       "session not running",
			err:        session.ErrSessionNotRunning,
			wantStatus: http.StatusConflict,
			wantCode:   ErrCodeSessionNotRunning,
		},
		{
			name:       "runtime unavailable",
			err:        &driver.Error{Op: "ping", Kind: driver.ErrRuntimeUnavailable},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   ErrCodeRuntimeUnavailable,
		},
		{
			name:       "pull failed",
			err:        fmt.Errorf("start: %w", &driver.Error{Op: "pull", Kind: driver.ErrPullFailed}),
			wantStatus: http.StatusBadGateway,
			wantCode:   ErrCodePullFailed,
		},
		{
			name:       "name conflict",
			err:        &driver.Error{Op: "create", Kind: driver.ErrNameConflict},
			wantStatus: http.StatusConflict,
			wantCode:   ErrCodeNameConflict,
		},
		{
			name:       "timeout",
			err:        &driver.Error{Op: "run", Kind: driver.ErrTimeout},
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   ErrCodeRuntimeTimeout,
		},
		{
			name:       "port exhausted",
			err:        fmt.Errorf("start: %w", ports.ErrExhausted),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   ErrCodePortExhausted,
		},
		{
			name:       "generic error",
			err:        errors.New("something unexpected"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   ErrCodeInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeAPIError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var apiErr APIError
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.NotEmpty(t, apiErr.Message)
		})
	}
}

func TestRuntimeUnavailableCarriesGuidance(t *testing.T) {
	apiErr, _ := toAPIError(&driver.Error{Op: "ping", Kind: driver.ErrRuntimeUnavailable, Diagnostic: "dial unix /var/run/docker.sock"})

	assert.Contains(t, apiErr.Message, "docker daemon")
	assert.Equal(t, "dial unix /var/run/docker.sock", apiErr.Details["diagnostic"])
}

func TestWriteValidationError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeValidationError(rec, "command is required", map[string]any{"field": "command"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var apiErr APIError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
	assert.Equal(t, ErrCodeInvalidRequest, apiErr.Code)
	assert.Equal(t, "command", apiErr.Details["field"])
}
