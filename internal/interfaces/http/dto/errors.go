package dto

import (
	"net/http"
	"strings"
)

// Transport level error codes. Domain errors keep the code they were raised
// with; these cover failures that happen before a service is reached.
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeTokenExpired       = "TOKEN_EXPIRED"
	ErrCodeInvalidToken       = "INVALID_TOKEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeRequestTooLarge    = "REQUEST_TOO_LARGE"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// errorCodeToHTTPStatus maps codes to the status they are served with
var errorCodeToHTTPStatus = map[string]int{
	// 400
	ErrCodeValidation:        http.StatusBadRequest,
	ErrCodeBadRequest:        http.StatusBadRequest,
	"INVALID_INPUT":          http.StatusBadRequest,
	"INVALID_CONNECTOR":      http.StatusBadRequest,
	"INVALID_CONNECTOR_CODE": http.StatusBadRequest,
	"INVALID_MESSAGE":        http.StatusBadRequest,
	"INVALID_TRANSFORMATION": http.StatusBadRequest,
	"INVALID_PATH":           http.StatusBadRequest,
	"INVALID_RETRY_POLICY":   http.StatusBadRequest,

	// 401 / 403
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeInvalidToken: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,

	// 404
	ErrCodeNotFound:            http.StatusNotFound,
	"CONNECTOR_NOT_FOUND":      http.StatusNotFound,
	"MESSAGE_NOT_FOUND":        http.StatusNotFound,
	"TRANSFORMATION_NOT_FOUND": http.StatusNotFound,
	"DEAD_LETTER_NOT_FOUND":    http.StatusNotFound,

	// 409
	"ALREADY_EXISTS":       http.StatusConflict,
	"CONNECTOR_EXISTS":     http.StatusConflict,
	"CONCURRENCY_CONFLICT": http.StatusConflict,
	"ALREADY_REPROCESSED":  http.StatusConflict,

	// 413
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	// 422
	"INVALID_STATE":      http.StatusUnprocessableEntity,
	"CONNECTOR_INACTIVE": http.StatusUnprocessableEntity,
	"MESSAGE_TERMINAL":   http.StatusUnprocessableEntity,
	"MESSAGE_COMPLETED":  http.StatusUnprocessableEntity,

	// 5xx
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status for an error code. Unlisted codes
// fall back on their suffix and finally on 500.
func GetHTTPStatus(code string) int {
	if status, ok := errorCodeToHTTPStatus[code]; ok {
		return status
	}
	switch {
	case strings.HasSuffix(code, "_NOT_FOUND"):
		return http.StatusNotFound
	case strings.HasPrefix(code, "INVALID_"):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
