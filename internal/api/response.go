package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/zapponejosh/lunar-calendar-api/internal/astro"
	"github.com/zapponejosh/lunar-calendar-api/internal/calendar"
	"github.com/zapponejosh/lunar-calendar-api/internal/database"
)

// Response represents a standard API response.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details.
type ErrorInfo struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, status int, message string, code ...string) error {
	errInfo := ErrorInfo{
		Message: message,
	}
	if len(code) > 0 {
		errInfo.Code = code[0]
	}

	return WriteJSON(w, status, Response{
		Success: false,
		Error:   &errInfo,
	})
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) error {
	return WriteError(w, http.StatusNotFound, message, "NOT_FOUND")
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string) error {
	return WriteError(w, http.StatusBadRequest, message, "BAD_REQUEST")
}

// WriteConflict writes a 409 Conflict response.
func WriteConflict(w http.ResponseWriter, message, code string) error {
	return WriteError(w, http.StatusConflict, message, code)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) error {
	return WriteError(w, http.StatusInternalServerError, message, "INTERNAL_ERROR")
}

// WriteUnauthorized writes a 401 Unauthorized response.
func WriteUnauthorized(w http.ResponseWriter, message string) error {
	return WriteError(w, http.StatusUnauthorized, message, "UNAUTHORIZED")
}

// WriteCalendarError maps an engine error onto a response. Anything it does
// not recognize is logged and reported as a 500 with the given message.
func WriteCalendarError(w http.ResponseWriter, logger *slog.Logger, err error, message string) error {
	switch {
	case errors.Is(err, calendar.ErrNotFound):
		return WriteNotFound(w, "No month anchor covers this date; record a month start first")
	case errors.Is(err, calendar.ErrInvalidAnchor), errors.Is(err, calendar.ErrInvalidLength):
		return WriteBadRequest(w, err.Error())
	case errors.Is(err, calendar.ErrMalformedLedger):
		return WriteConflict(w, err.Error(), "MALFORMED_LEDGER")
	case errors.Is(err, calendar.ErrDuplicateStartDate), errors.Is(err, database.ErrDuplicate):
		return WriteConflict(w, err.Error(), "DUPLICATE")
	case errors.Is(err, astro.ErrCalculation):
		return WriteError(w, http.StatusUnprocessableEntity, err.Error(), "CALCULATION_FAILED")
	}

	logger.Error(message, slog.Any("error", err))
	return WriteInternalError(w, message)
}
