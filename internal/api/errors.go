package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openbooth/booth-core/internal/capture"
	"github.com/openbooth/booth-core/internal/gpio"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeConflict    = "conflict"
	ErrCodeInternal    = "internal_error"
	ErrCodeUnavailable = "device_unavailable"
	ErrCodeUnsupported = "unsupported_operation"
	ErrCodeBusy        = "busy"
	ErrCodeTimeout     = "timeout"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeUnavailable writes a 503 error response.
func writeUnavailable(w http.ResponseWriter, message string) {
	writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}

// writeCaptureError maps capture-domain errors onto HTTP responses.
func writeCaptureError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, capture.ErrBusy):
		writeError(w, http.StatusConflict, ErrCodeBusy, err.Error())
	case errors.Is(err, capture.ErrDeviceUnavailable):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	case errors.Is(err, capture.ErrUnsupportedOperation):
		writeError(w, http.StatusNotImplemented, ErrCodeUnsupported, err.Error())
	case errors.Is(err, capture.ErrConfiguration):
		writeBadRequest(w, err.Error())
	case errors.Is(err, capture.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, ErrCodeTimeout, err.Error())
	case errors.Is(err, capture.ErrNotRecording), errors.Is(err, capture.ErrAlreadyRecording):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}

// writeGPIOError maps pin-domain errors onto HTTP responses.
func writeGPIOError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gpio.ErrPinNotRegistered):
		writeNotFound(w, err.Error())
	case errors.Is(err, gpio.ErrNotOutput), errors.Is(err, gpio.ErrNotInput), errors.Is(err, gpio.ErrInvalidConfig):
		writeBadRequest(w, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
