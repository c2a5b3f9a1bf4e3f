package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clipfetch/clipfetch/internal/domain"
)

// Response represents a standard API response
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error represents an API error
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON writes a JSON response
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := Response{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	json.NewEncoder(w).Encode(response)
}

// JSONError writes an error response
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := Response{
		Success: false,
		Error: &Error{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// HandleError handles common domain errors and writes appropriate responses
func HandleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidVideoID):
		JSONError(w, http.StatusBadRequest, "INVALID_VIDEO_ID", "Video id does not match the source pattern", nil)

	case errors.Is(err, domain.ErrUnsupportedFormat):
		JSONError(w, http.StatusBadRequest, "UNSUPPORTED_FORMAT", "Format must be one of mp4, webm, mkv", nil)

	case errors.Is(err, domain.ErrUnsupportedSource):
		JSONError(w, http.StatusBadRequest, "UNSUPPORTED_SOURCE", "Source must be one of youtube, instagram", nil)

	case errors.Is(err, domain.ErrVideoNotFound):
		JSONError(w, http.StatusNotFound, "VIDEO_NOT_FOUND", "Video not found", nil)

	case errors.Is(err, domain.ErrExecutorBusy):
		JSONError(w, http.StatusServiceUnavailable, "RESOLUTION_BUSY", "Resolution capacity exhausted, try again shortly", nil)

	case errors.Is(err, domain.ErrBrokerUnavailable):
		JSONError(w, http.StatusServiceUnavailable, "NOTIFICATION_UNAVAILABLE", "Could not queue the notification", nil)

	case errors.Is(err, domain.ErrNotFound):
		JSONError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)

	default:
		var resolutionErr domain.ResolutionError
		if errors.As(err, &resolutionErr) {
			status := http.StatusBadRequest
			if resolutionErr.Retryable {
				status = http.StatusBadGateway
			}
			JSONError(w, status, "RESOLUTION_FAILED", resolutionErr.Message, map[string]string{
				"source": string(resolutionErr.Source),
			})
			return
		}

		var validationErr domain.ValidationError
		if errors.As(err, &validationErr) {
			JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", validationErr.Message, map[string]string{
				"field": validationErr.Field,
			})
			return
		}

		JSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", nil)
	}
}
