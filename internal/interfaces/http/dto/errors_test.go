package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/erp/integration-hub/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{integration.ErrConnectorNotFound.Code, http.StatusNotFound},
		{integration.ErrMessageNotFound.Code, http.StatusNotFound},
		{integration.ErrDeadLetterNotFound.Code, http.StatusNotFound},
		{shared.ErrNotFound.Code, http.StatusNotFound},
		{integration.ErrConnectorAlreadyExists.Code, http.StatusConflict},
		{integration.ErrDeadLetterAlreadyReprocessed.Code, http.StatusConflict},
		{shared.ErrConcurrencyConflict.Code, http.StatusConflict},
		{integration.ErrInvalidConnectorCode.Code, http.StatusBadRequest},
		{integration.ErrInvalidPath.Code, http.StatusBadRequest},
		{ErrCodeValidation, http.StatusBadRequest},
		{integration.ErrConnectorInactive.Code, http.StatusUnprocessableEntity},
		{integration.ErrMessageAlreadyCompleted.Code, http.StatusUnprocessableEntity},
		{shared.ErrInvalidState.Code, http.StatusUnprocessableEntity},
		{ErrCodeTokenExpired, http.StatusUnauthorized},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeServiceUnavailable, http.StatusServiceUnavailable},
		{"WIDGET_NOT_FOUND", http.StatusNotFound},
		{"INVALID_WIDGET", http.StatusBadRequest},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, GetHTTPStatus(tt.code))
		})
	}
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	resp := NewSuccessResponseWithMeta([]int{1, 2}, 41, 2, 20)

	assert.True(t, resp.Success)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 3, resp.Meta.TotalPages)
	assert.Equal(t, 2, resp.Meta.Page)

	empty := NewSuccessResponseWithMeta(nil, 0, 1, 0)
	assert.Equal(t, 0, empty.Meta.TotalPages)
}

func TestErrorEnvelopeJSON(t *testing.T) {
	resp := NewValidationErrorResponse("Request validation failed", "req-1", []ValidationDetail{
		{Field: "messageId", Message: "This field is required"},
	})

	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, false, decoded["success"])
	assert.NotContains(t, decoded, "data")

	errObj := decoded["error"].(map[string]any)
	assert.Equal(t, ErrCodeValidation, errObj["code"])
	assert.Equal(t, "req-1", errObj["request_id"])
	assert.Len(t, errObj["details"], 1)
}
